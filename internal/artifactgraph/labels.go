package artifactgraph

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// labelRegistry remembers which label uniqueness constraints are initialised.
// Concurrent first use of a label creates its constraint exactly once.
type labelRegistry struct {
	store *storage.Storage
	mu    sync.RWMutex
	ready map[string]bool // "label(property)" -> constraint initialised
	group singleflight.Group
}

func newLabelRegistry(store *storage.Storage) *labelRegistry {
	return &labelRegistry{
		store: store,
		ready: make(map[string]bool),
	}
}

// ensure makes property unique within label, creating the constraint on first use
func (r *labelRegistry) ensure(ctx context.Context, label, property string) error {
	key := constraintKey(label, property)
	if r.isReady(key) {
		return nil
	}

	_, err, _ := r.group.Do(key, func() (any, error) {
		if r.isReady(key) {
			return nil, nil
		}

		err := r.store.CreateUniqueConstraint(ctx, label, property)
		switch {
		case errors.Is(err, storage.ErrConstraintExists):
			logrus.Debugf("Constraint %s already exists", key)
		case err != nil:
			return nil, fmt.Errorf("failed to create constraint %s: %w", key, err)
		default:
			logrus.Debugf("Created constraint %s", key)
		}

		r.mu.Lock()
		r.ready[key] = true
		r.mu.Unlock()
		return nil, nil
	})
	return err
}

func (r *labelRegistry) isReady(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready[key]
}

// size returns the number of initialised constraints
func (r *labelRegistry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ready)
}

func constraintKey(label, property string) string {
	return label + "(" + property + ")"
}
