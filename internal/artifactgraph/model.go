package artifactgraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
	"github.com/alvmarrod/artifact-weaver/internal/storage"
)

// Labels and relationship types persisted in the store
const (
	ArtifactLabel  = "Artifact"
	ExceptionLabel = "Exception"

	DependsOn = "DEPENDS_ON"
	Raises    = "RAISES"
	Next      = "NEXT"
)

// Node and relationship property names
const (
	PropCoordinates   = "coordinates"
	PropGroupID       = "groupId"
	PropArtifactID    = "artifactId"
	PropVersion       = "version"
	PropClassifier    = "classifier"
	PropPackaging     = "packaging"
	PropLastModified  = "lastModified"
	PropExceptionName = "name"
	PropScope         = "scope"
	PropOccurrence    = "occurrence"
)

// Scope qualifies a DEPENDS_ON relationship (compile, runtime, test, ...)
type Scope string

const (
	ScopeCompile  Scope = "compile"
	ScopeRuntime  Scope = "runtime"
	ScopeTest     Scope = "test"
	ScopeProvided Scope = "provided"
	ScopeSystem   Scope = "system"
	ScopeImport   Scope = "import"
)

// ParseScope normalises a scope name; an empty scope means compile
func ParseScope(s string) Scope {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ScopeCompile
	}
	return Scope(s)
}

// JarEntryType classifies entries found when scanning a packaged artifact
type JarEntryType string

const (
	ClassEntry      JarEntryType = "class"
	InterfaceEntry  JarEntryType = "interface"
	AnnotationEntry JarEntryType = "annotation"
	EnumEntry       JarEntryType = "enum"
	ResourceEntry   JarEntryType = "resource"
	OtherEntry      JarEntryType = "other"
)

// JarEntryTypes lists every entry type, in property write order
var JarEntryTypes = []JarEntryType{ClassEntry, InterfaceEntry, AnnotationEntry, EnumEntry, ResourceEntry, OtherEntry}

// ParseJarEntryType accepts entry type names case-insensitively
func ParseJarEntryType(s string) (JarEntryType, error) {
	for _, t := range JarEntryTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown jar entry type %q", s)
}

// JarCounter holds per-entry-type counts; missing types count as zero
type JarCounter map[JarEntryType]int

// ExceptionType is a failure category recorded against artifacts
type ExceptionType string

const (
	ResolutionException ExceptionType = "RESOLUTION"
	CollectionException ExceptionType = "COLLECTION"
	ParseException      ExceptionType = "PARSE"
	ZipException        ExceptionType = "ZIP"
	IOException         ExceptionType = "IO"
	OtherException      ExceptionType = "OTHER"
)

// ExceptionTypes lists every exception type, in edge creation order
var ExceptionTypes = []ExceptionType{
	ResolutionException, CollectionException, ParseException, ZipException, IOException, OtherException,
}

// ParseExceptionType accepts exception type names case-insensitively
func ParseExceptionType(s string) (ExceptionType, error) {
	for _, t := range ExceptionTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown exception type %q", s)
}

// ExceptionCounter holds per-exception-type occurrence counts
type ExceptionCounter map[ExceptionType]int

// ArtifactNode is the domain view of an artifact node
type ArtifactNode struct {
	ID           int64
	Coordinates  string
	GroupID      string
	ArtifactID   string
	Version      string
	Classifier   string
	Packaging    string
	LastModified *time.Time
	JarCounts    JarCounter
}

// ClassCount is the CLASS jar counter
func (n *ArtifactNode) ClassCount() int {
	return n.JarCounts[ClassEntry]
}

// Artifact returns the identity of the node as coordinates
func (n *ArtifactNode) Artifact() coordinate.Artifact {
	return coordinate.Artifact{
		GroupID:    n.GroupID,
		ArtifactID: n.ArtifactID,
		Version:    n.Version,
		Classifier: n.Classifier,
	}
}

func newArtifactNode(n *storage.Node) *ArtifactNode {
	an := &ArtifactNode{
		ID:          n.ID,
		Coordinates: n.String(PropCoordinates),
		GroupID:     n.String(PropGroupID),
		ArtifactID:  n.String(PropArtifactID),
		Version:     n.String(PropVersion),
		Classifier:  n.String(PropClassifier),
		Packaging:   n.String(PropPackaging),
		JarCounts:   make(JarCounter),
	}
	if ts, ok := n.Time(PropLastModified); ok {
		an.LastModified = &ts
	}
	for _, t := range JarEntryTypes {
		if count, ok := n.Int(string(t)); ok {
			an.JarCounts[t] = int(count)
		}
	}
	return an
}

func identityProperties(a coordinate.Artifact) map[string]any {
	var classifier any
	if a.Classifier != "" {
		classifier = a.Classifier
	}
	return map[string]any{
		PropCoordinates: a.Key(),
		PropGroupID:     a.GroupID,
		PropArtifactID:  a.ArtifactID,
		PropVersion:     a.Version,
		PropClassifier:  classifier,
		PropPackaging:   a.Packaging(),
	}
}
