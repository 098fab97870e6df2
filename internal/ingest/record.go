package ingest

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alvmarrod/artifact-weaver/internal/artifactgraph"
	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
)

// Kind selects the graph operation a record applies
type Kind string

const (
	KindArtifact   Kind = "artifact"
	KindDependency Kind = "dependency"
	KindCounts     Kind = "counts"
	KindClasses    Kind = "classes"
	KindFailure    Kind = "failure"
)

// Record is one line of resolver output
type Record struct {
	Kind       Kind           `json:"kind"`
	Artifact   string         `json:"artifact,omitempty"`
	Source     string         `json:"source,omitempty"`
	Target     string         `json:"target,omitempty"`
	Scope      string         `json:"scope,omitempty"`
	Jar        map[string]int `json:"jar,omitempty"`
	Exceptions map[string]int `json:"exceptions,omitempty"`
	Count      int            `json:"count,omitempty"`

	Line int `json:"-"`
}

// DecodeRecord parses and validates one JSON line
func DecodeRecord(data []byte, line int) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("line %d: failed to parse record: %w", line, err)
	}
	rec.Line = line
	rec.Kind = Kind(strings.ToLower(string(rec.Kind)))

	switch rec.Kind {
	case KindArtifact, KindCounts, KindClasses, KindFailure:
		if rec.Artifact == "" {
			return Record{}, fmt.Errorf("line %d: %s record requires artifact", line, rec.Kind)
		}
	case KindDependency:
		if rec.Source == "" || rec.Target == "" {
			return Record{}, fmt.Errorf("line %d: dependency record requires source and target", line)
		}
	default:
		return Record{}, fmt.Errorf("line %d: unknown record kind %q", line, rec.Kind)
	}
	return rec, nil
}

// dedupKey identifies records whose effect is idempotent; other kinds
// return "" and are always applied
func (r Record) dedupKey() string {
	switch r.Kind {
	case KindArtifact:
		return "artifact|" + strings.TrimSpace(r.Artifact)
	case KindDependency:
		return "dependency|" + strings.TrimSpace(r.Source) + "|" + strings.TrimSpace(r.Target) + "|" + string(artifactgraph.ParseScope(r.Scope))
	default:
		return ""
	}
}

// subject names the record in error messages
func (r Record) subject() string {
	if r.Kind == KindDependency {
		return r.Source + " -> " + r.Target
	}
	return r.Artifact
}

// coordinates parses every coordinate referenced by the record
func (r Record) coordinates() ([]coordinate.Artifact, error) {
	raw := []string{r.Artifact}
	if r.Kind == KindDependency {
		raw = []string{r.Source, r.Target}
	}

	artifacts := make([]coordinate.Artifact, 0, len(raw))
	for _, s := range raw {
		a, err := coordinate.Parse(s)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

func (r Record) jarCounter() (artifactgraph.JarCounter, error) {
	counter := make(artifactgraph.JarCounter, len(r.Jar))
	for name, count := range r.Jar {
		t, err := artifactgraph.ParseJarEntryType(name)
		if err != nil {
			return nil, err
		}
		counter[t] = count
	}
	return counter, nil
}

func (r Record) exceptionCounter() (artifactgraph.ExceptionCounter, error) {
	if r.Exceptions == nil {
		return nil, nil
	}
	counter := make(artifactgraph.ExceptionCounter, len(r.Exceptions))
	for name, count := range r.Exceptions {
		t, err := artifactgraph.ParseExceptionType(name)
		if err != nil {
			return nil, err
		}
		counter[t] = count
	}
	return counter, nil
}
