package artifactgraph

import (
	"context"
	"fmt"
	"sort"

	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/alvmarrod/artifact-weaver/internal/versioning"
	"github.com/sirupsen/logrus"
)

// NextReleasePolicy decides whether next immediately follows prev as a release.
// It is only consulted for neighbours in sorted order.
type NextReleasePolicy func(prev, next *ArtifactNode) (bool, error)

// AdjacentPolicy links neighbours of the same artifact and classifier
func AdjacentPolicy(prev, next *ArtifactNode) (bool, error) {
	return sameLine(prev, next), nil
}

// StrictlyGreaterPolicy is AdjacentPolicy restricted to pairs whose versions
// are strictly ordered (1.0 and 1.0.0 are not linked)
func StrictlyGreaterPolicy(cmp versioning.Comparator) NextReleasePolicy {
	return func(prev, next *ArtifactNode) (bool, error) {
		if !sameLine(prev, next) {
			return false, nil
		}
		rel, err := cmp.Compare(prev.Version, next.Version)
		if err != nil {
			return false, err
		}
		return rel < 0, nil
	}
}

// PolicyByName returns the policy configured as "adjacent" (default) or "strict"
func PolicyByName(name string, cmp versioning.Comparator) (NextReleasePolicy, error) {
	switch name {
	case "", "adjacent":
		return AdjacentPolicy, nil
	case "strict":
		return StrictlyGreaterPolicy(cmp), nil
	default:
		return nil, fmt.Errorf("unknown precedence policy %q", name)
	}
}

func sameLine(prev, next *ArtifactNode) bool {
	return prev.GroupID == next.GroupID &&
		prev.ArtifactID == next.ArtifactID &&
		prev.Classifier == next.Classifier
}

// PrecedenceBuilder links consecutive releases of each artifact with NEXT edges
type PrecedenceBuilder struct {
	store  *storage.Storage
	cmp    versioning.Comparator
	policy NextReleasePolicy
}

// NewPrecedenceBuilder creates a builder; a nil policy means AdjacentPolicy
func NewPrecedenceBuilder(store *storage.Storage, cmp versioning.Comparator, policy NextReleasePolicy) *PrecedenceBuilder {
	if policy == nil {
		policy = AdjacentPolicy
	}
	return &PrecedenceBuilder{store: store, cmp: cmp, policy: policy}
}

// Build scans every group label in a single transaction and creates the
// missing NEXT edges. It returns the number of edges created. Any version
// that cannot be parsed aborts the whole build.
func (b *PrecedenceBuilder) Build(ctx context.Context) (int, error) {
	logrus.Info("Creating artifact version precedence")

	var created int
	err := b.store.Update(ctx, func(tx *storage.Tx) error {
		created = 0

		labels, err := tx.LabelsInUse()
		if err != nil {
			return err
		}

		for _, label := range labels {
			if label == ArtifactLabel || label == ExceptionLabel {
				continue
			}
			n, err := b.linkLabel(tx, label)
			if err != nil {
				return fmt.Errorf("label %s: %w", label, err)
			}
			created += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("build precedence: %w", err)
	}

	logrus.Infof("Precedence complete: %d NEXT edges created", created)
	return created, nil
}

func (b *PrecedenceBuilder) linkLabel(tx *storage.Tx, label string) (int, error) {
	nodes, err := tx.NodesByLabel(label)
	if err != nil {
		return 0, err
	}
	if len(nodes) < 2 {
		return 0, nil
	}

	artifacts := make([]*ArtifactNode, 0, len(nodes))
	for _, n := range nodes {
		artifacts = append(artifacts, newArtifactNode(n))
	}
	if err := b.sortReleases(artifacts); err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < len(artifacts)-1; i++ {
		prev, next := artifacts[i], artifacts[i+1]

		ok, err := b.policy(prev, next)
		if err != nil {
			return created, fmt.Errorf("policy %s -> %s: %w", prev.Coordinates, next.Coordinates, err)
		}
		if !ok {
			continue
		}

		existing, err := tx.FindRelationship(prev.ID, next.ID, Next)
		if err != nil {
			return created, err
		}
		if existing != nil {
			continue
		}

		if _, err := tx.CreateRelationship(prev.ID, next.ID, Next, nil); err != nil {
			return created, err
		}
		created++
		logrus.Debugf("Next: %s -> %s", prev.Coordinates, next.Coordinates)
	}

	return created, nil
}

// sortReleases orders by artifact id, then classifier, then version
func (b *PrecedenceBuilder) sortReleases(nodes []*ArtifactNode) error {
	// Every version must parse before sorting starts
	for _, n := range nodes {
		if _, err := b.cmp.Compare(n.Version, n.Version); err != nil {
			return fmt.Errorf("node %s: %w", n.Coordinates, err)
		}
	}

	var sortErr error
	sort.SliceStable(nodes, func(i, j int) bool {
		a, c := nodes[i], nodes[j]
		if a.ArtifactID != c.ArtifactID {
			return a.ArtifactID < c.ArtifactID
		}
		if a.Classifier != c.Classifier {
			return a.Classifier < c.Classifier
		}
		rel, err := versioning.CompareStrict(b.cmp, a.Version, c.Version)
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return rel < 0
	})
	return sortErr
}
