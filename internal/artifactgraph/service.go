package artifactgraph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
	"github.com/alvmarrod/artifact-weaver/internal/metrics"
	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/sirupsen/logrus"
)

// maxCreateAttempts bounds retries after losing a node creation race
const maxCreateAttempts = 3

// MetadataSource resolves the Last-Modified time of a published artifact
type MetadataSource interface {
	LastModified(ctx context.Context, a coordinate.Artifact) (time.Time, error)
}

// Service maintains artifact nodes and their relationships in the graph store
type Service struct {
	store    *storage.Storage
	labels   *labelRegistry
	metadata MetadataSource
	tracker  *metrics.Tracker
}

// Option configures a Service
type Option func(*Service)

// WithMetadataSource enables best-effort Last-Modified lookups for new nodes
func WithMetadataSource(src MetadataSource) Option {
	return func(s *Service) {
		s.metadata = src
	}
}

// WithTracker reports graph mutations to tracker
func WithTracker(tracker *metrics.Tracker) Option {
	return func(s *Service) {
		s.tracker = tracker
	}
}

// NewService creates a Service over store
func NewService(store *storage.Storage, opts ...Option) *Service {
	s := &Service{
		store:   store,
		labels:  newLabelRegistry(store),
		tracker: metrics.NewTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreateArtifactNode returns the node for artifact, creating it on first reference.
// The node carries the Artifact label and a label equal to its group id.
func (s *Service) GetOrCreateArtifactNode(ctx context.Context, a coordinate.Artifact) (*ArtifactNode, error) {
	key := a.Key()
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("get or create %s: %w", key, err)
	}
	if err := s.labels.ensure(ctx, ArtifactLabel, PropCoordinates); err != nil {
		return nil, fmt.Errorf("get or create %s: %w", key, err)
	}
	if err := s.labels.ensure(ctx, a.GroupID, PropCoordinates); err != nil {
		return nil, fmt.Errorf("get or create %s: %w", key, err)
	}

	var node *storage.Node
	var created bool

	for attempt := 1; ; attempt++ {
		err := s.store.Update(ctx, func(tx *storage.Tx) error {
			node, created = nil, false

			existing, err := tx.FindNode(ArtifactLabel, PropCoordinates, key)
			if err != nil {
				return err
			}
			if existing != nil {
				node = existing
				// Older nodes may predate their group label
				return tx.AddLabel(existing.ID, a.GroupID)
			}

			logrus.Debugf("Adding artifact %s", key)
			n, err := tx.CreateNode(ArtifactLabel)
			if err != nil {
				return err
			}
			if err := tx.SetProperties(n.ID, identityProperties(a)); err != nil {
				return err
			}
			if err := tx.AddLabel(n.ID, a.GroupID); err != nil {
				return err
			}

			node, created = n, true
			return nil
		})

		if errors.Is(err, storage.ErrConstraintViolation) && attempt < maxCreateAttempts {
			// Another writer created the node first; look it up instead
			logrus.Debugf("Lost creation race for %s, retrying as lookup", key)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get or create %s: %w", key, err)
		}
		break
	}

	if created {
		s.tracker.IncrementNodesCreated()
		if err := s.recordLastModified(ctx, a, node.ID); err != nil {
			return nil, fmt.Errorf("get or create %s: %w", key, err)
		}
	}

	return s.loadArtifactNode(ctx, node.ID)
}

// CreateNode ensures a node exists for artifact
func (s *Service) CreateNode(ctx context.Context, a coordinate.Artifact) error {
	_, err := s.GetOrCreateArtifactNode(ctx, a)
	return err
}

// recordLastModified fetches metadata outside any transaction and writes it
// in a short follow-up transaction. Fetch failures leave the property unset.
func (s *Service) recordLastModified(ctx context.Context, a coordinate.Artifact, nodeID int64) error {
	if s.metadata == nil {
		return nil
	}

	modified, err := s.metadata.LastModified(ctx, a)
	if err != nil {
		s.tracker.RecordMetadataFetch(false)
		logrus.Warnf("Failed to fetch last-modified for %s: %v", a.Key(), err)
		return nil
	}
	s.tracker.RecordMetadataFetch(true)

	return s.store.Update(ctx, func(tx *storage.Tx) error {
		return tx.SetProperty(nodeID, PropLastModified, modified)
	})
}

func (s *Service) loadArtifactNode(ctx context.Context, id int64) (*ArtifactNode, error) {
	var node *storage.Node
	err := s.store.View(ctx, func(tx *storage.Tx) error {
		var err error
		node, err = tx.NodeByID(id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load node %d: %w", id, err)
	}
	if node == nil {
		return nil, fmt.Errorf("node %d not found", id)
	}
	return newArtifactNode(node), nil
}

// AddDependency records source DEPENDS_ON target with scope. Calling it again
// with the same arguments leaves exactly one edge.
func (s *Service) AddDependency(ctx context.Context, source, target coordinate.Artifact, scope Scope) error {
	src, err := s.GetOrCreateArtifactNode(ctx, source)
	if err != nil {
		return fmt.Errorf("add dependency %s -> %s: %w", source.Key(), target.Key(), err)
	}
	dst, err := s.GetOrCreateArtifactNode(ctx, target)
	if err != nil {
		return fmt.Errorf("add dependency %s -> %s: %w", source.Key(), target.Key(), err)
	}

	var added bool
	err = s.store.Update(ctx, func(tx *storage.Tx) error {
		added = false

		existing, err := tx.FindIndexedRelationship(DependsOn, PropScope, string(scope), src.ID, dst.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		rel, err := tx.CreateRelationship(src.ID, dst.ID, DependsOn, map[string]any{PropScope: string(scope)})
		if err != nil {
			return err
		}
		if err := tx.IndexRelationship(DependsOn, PropScope, string(scope), rel); err != nil {
			return err
		}
		added = true
		return nil
	})
	if err != nil {
		return fmt.Errorf("add dependency %s -> %s (%s): %w", src.Coordinates, dst.Coordinates, scope, err)
	}

	s.tracker.IncrementDependencies(added)
	if added {
		logrus.Debugf("Dependency %s -> %s (%s)", src.Coordinates, dst.Coordinates, scope)
	}
	return nil
}

// UpdateCounts overwrites every jar counter of artifact (missing types are
// written as zero). When exceptions is non-nil, one RAISES edge carrying the
// occurrence count is added per positive exception count; repeated calls add
// further edges.
func (s *Service) UpdateCounts(ctx context.Context, a coordinate.Artifact, jar JarCounter, exceptions ExceptionCounter) error {
	node, err := s.GetOrCreateArtifactNode(ctx, a)
	if err != nil {
		return fmt.Errorf("update counts %s: %w", a.Key(), err)
	}
	if exceptions != nil {
		if err := s.labels.ensure(ctx, ExceptionLabel, PropExceptionName); err != nil {
			return fmt.Errorf("update counts %s: %w", a.Key(), err)
		}
	}

	var edges int
	err = s.store.Update(ctx, func(tx *storage.Tx) error {
		edges = 0

		n, err := tx.FindNode(ArtifactLabel, PropCoordinates, node.Coordinates)
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("node %s vanished", node.Coordinates)
		}

		for _, t := range JarEntryTypes {
			if err := tx.SetProperty(n.ID, string(t), jar[t]); err != nil {
				return err
			}
		}

		for _, t := range ExceptionTypes {
			count := exceptions[t]
			if count <= 0 {
				continue
			}
			if err := s.createExceptionRelationship(tx, n.ID, t, &count); err != nil {
				return err
			}
			edges++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update counts %s: %w", node.Coordinates, err)
	}

	s.tracker.IncrementCountersUpdated()
	s.tracker.AddExceptionEdges(edges)
	return nil
}

// UpdateClassCount sets the CLASS counter of artifact. If the node cannot be
// resolved inside the update transaction, nothing is written and nil is returned.
func (s *Service) UpdateClassCount(ctx context.Context, a coordinate.Artifact, count int) error {
	node, err := s.GetOrCreateArtifactNode(ctx, a)
	if err != nil {
		return fmt.Errorf("update class count %s: %w", a.Key(), err)
	}

	err = s.store.Update(ctx, func(tx *storage.Tx) error {
		n, err := tx.FindNode(ArtifactLabel, PropCoordinates, node.Coordinates)
		if err != nil {
			return err
		}
		if n == nil {
			logrus.Warnf("Node %s missing while updating class count, skipping", node.Coordinates)
			return storage.ErrRollback
		}
		return tx.SetProperty(n.ID, string(ClassEntry), count)
	})
	if err != nil {
		return fmt.Errorf("update class count %s: %w", node.Coordinates, err)
	}
	return nil
}

// RecordResolutionFailure adds a RAISES edge from artifact to the RESOLUTION
// exception node. Every call adds an edge.
func (s *Service) RecordResolutionFailure(ctx context.Context, a coordinate.Artifact) error {
	node, err := s.GetOrCreateArtifactNode(ctx, a)
	if err != nil {
		return fmt.Errorf("record resolution failure %s: %w", a.Key(), err)
	}
	if err := s.labels.ensure(ctx, ExceptionLabel, PropExceptionName); err != nil {
		return fmt.Errorf("record resolution failure %s: %w", a.Key(), err)
	}

	err = s.store.Update(ctx, func(tx *storage.Tx) error {
		n, err := tx.FindNode(ArtifactLabel, PropCoordinates, node.Coordinates)
		if err != nil {
			return err
		}
		if n == nil {
			return fmt.Errorf("node %s vanished", node.Coordinates)
		}
		return s.createExceptionRelationship(tx, n.ID, ResolutionException, nil)
	})
	if err != nil {
		return fmt.Errorf("record resolution failure %s: %w", node.Coordinates, err)
	}

	s.tracker.IncrementResolutionFailures()
	s.tracker.AddExceptionEdges(1)
	return nil
}

// createExceptionRelationship links nodeID to the exception node of type t,
// with an occurrence property when occurrence is non-nil
func (s *Service) createExceptionRelationship(tx *storage.Tx, nodeID int64, t ExceptionType, occurrence *int) error {
	exception, err := getOrCreateExceptionNode(tx, t)
	if err != nil {
		return err
	}

	props := map[string]any{}
	if occurrence != nil {
		props[PropOccurrence] = *occurrence
	}
	_, err = tx.CreateRelationship(nodeID, exception.ID, Raises, props)
	return err
}

func getOrCreateExceptionNode(tx *storage.Tx, t ExceptionType) (*storage.Node, error) {
	existing, err := tx.FindNode(ExceptionLabel, PropExceptionName, string(t))
	if err != nil || existing != nil {
		return existing, err
	}

	n, err := tx.CreateNode(ExceptionLabel)
	if err != nil {
		return nil, err
	}
	if err := tx.SetProperty(n.ID, PropExceptionName, string(t)); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateIndexes creates a coordinates index for every label known to the
// store. Pre-existing indexes are logged and skipped.
func (s *Service) CreateIndexes(ctx context.Context) error {
	logrus.Info("Creating per-label index on artifact coordinates")

	labels, err := s.store.Labels(ctx)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}

	for _, label := range labels {
		err := s.store.CreateIndex(ctx, label, PropCoordinates)
		if errors.Is(err, storage.ErrIndexExists) {
			logrus.Infof("Index on :%s(%s) already exists", label, PropCoordinates)
			continue
		}
		if err != nil {
			return fmt.Errorf("create indexes: %w", err)
		}
	}

	logrus.Info("Index creation finished")
	return nil
}
