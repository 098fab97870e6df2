package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStorage_CreateAndFindNode(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	modified := time.Date(2021, 3, 4, 5, 6, 7, 0, time.UTC)

	var created *Node
	err := store.Update(ctx, func(tx *Tx) error {
		n, err := tx.CreateNode("Artifact", "org.example")
		if err != nil {
			return err
		}
		created = n
		return tx.SetProperties(n.ID, map[string]any{
			"coordinates":  "org.example:lib:1.0",
			"classifier":   nil,
			"class":        42,
			"lastModified": modified,
		})
	})
	require.NoError(t, err)

	err = store.View(ctx, func(tx *Tx) error {
		found, err := tx.FindNode("Artifact", "coordinates", "org.example:lib:1.0")
		require.NoError(t, err)
		require.NotNil(t, found)

		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, []string{"Artifact", "org.example"}, found.Labels)
		assert.True(t, found.HasLabel("org.example"))
		assert.Equal(t, "org.example:lib:1.0", found.String("coordinates"))
		assert.Nil(t, found.Properties["classifier"])

		count, ok := found.Int("class")
		assert.True(t, ok)
		assert.Equal(t, int64(42), count)

		ts, ok := found.Time("lastModified")
		assert.True(t, ok)
		assert.True(t, modified.Equal(ts))

		missing, err := tx.FindNode("Artifact", "coordinates", "nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		wrongLabel, err := tx.FindNode("Exception", "coordinates", "org.example:lib:1.0")
		require.NoError(t, err)
		assert.Nil(t, wrongLabel)
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_UpdateRollsBackOnError(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx *Tx) error {
		if _, err := tx.CreateNode("Artifact"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	count, err := store.CountNodes(ctx, "Artifact")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_ErrRollbackIsSilent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	err := store.Update(ctx, func(tx *Tx) error {
		if _, err := tx.CreateNode("Artifact"); err != nil {
			return err
		}
		return ErrRollback
	})
	assert.NoError(t, err)

	count, err := store.CountNodes(ctx, "Artifact")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStorage_UniqueConstraint(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUniqueConstraint(ctx, "Artifact", "coordinates"))

	err := store.CreateUniqueConstraint(ctx, "Artifact", "coordinates")
	assert.ErrorIs(t, err, ErrConstraintExists)

	create := func() error {
		return store.Update(ctx, func(tx *Tx) error {
			n, err := tx.CreateNode("Artifact")
			if err != nil {
				return err
			}
			return tx.SetProperty(n.ID, "coordinates", "g:a:1.0")
		})
	}

	require.NoError(t, create())
	assert.ErrorIs(t, create(), ErrConstraintViolation)

	count, err := store.CountNodes(ctx, "Artifact")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_UniqueConstraintOnLabelAddedLater(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateUniqueConstraint(ctx, "g", "coordinates"))

	var first int64
	require.NoError(t, store.Update(ctx, func(tx *Tx) error {
		n, err := tx.CreateNode("Artifact")
		if err != nil {
			return err
		}
		first = n.ID
		if err := tx.SetProperty(n.ID, "coordinates", "g:a:1.0"); err != nil {
			return err
		}
		return tx.AddLabel(n.ID, "g")
	}))

	// Re-adding the same label to the same node is a no-op
	require.NoError(t, store.Update(ctx, func(tx *Tx) error {
		return tx.AddLabel(first, "g")
	}))

	// Rewriting the same value on the same node is a no-op
	require.NoError(t, store.Update(ctx, func(tx *Tx) error {
		return tx.SetProperty(first, "coordinates", "g:a:1.0")
	}))

	err := store.Update(ctx, func(tx *Tx) error {
		n, err := tx.CreateNode("Artifact")
		if err != nil {
			return err
		}
		if err := tx.SetProperty(n.ID, "coordinates", "g:a:1.0"); err != nil {
			return err
		}
		return tx.AddLabel(n.ID, "g")
	})
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestStorage_CreateIndex(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "Artifact", "coordinates"))
	assert.ErrorIs(t, store.CreateIndex(ctx, "Artifact", "coordinates"), ErrIndexExists)
	require.NoError(t, store.CreateIndex(ctx, "org.example", "coordinates"))

	labels, err := store.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Artifact", "org.example"}, labels)
}

func TestStorage_Relationships(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	var a, b *Node
	require.NoError(t, store.Update(ctx, func(tx *Tx) error {
		var err error
		if a, err = tx.CreateNode("Artifact"); err != nil {
			return err
		}
		if b, err = tx.CreateNode("Artifact"); err != nil {
			return err
		}
		rel, err := tx.CreateRelationship(a.ID, b.ID, "DEPENDS_ON", map[string]any{"scope": "compile"})
		if err != nil {
			return err
		}
		return tx.IndexRelationship("DEPENDS_ON", "scope", "compile", rel)
	}))

	err := store.View(ctx, func(tx *Tx) error {
		rel, err := tx.FindIndexedRelationship("DEPENDS_ON", "scope", "compile", a.ID, b.ID)
		require.NoError(t, err)
		require.NotNil(t, rel)
		assert.Equal(t, "compile", rel.Properties["scope"])

		none, err := tx.FindIndexedRelationship("DEPENDS_ON", "scope", "test", a.ID, b.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		reversed, err := tx.FindRelationship(b.ID, a.ID, "DEPENDS_ON")
		require.NoError(t, err)
		assert.Nil(t, reversed)

		out, err := tx.Relationships(a.ID, "DEPENDS_ON", Outgoing)
		require.NoError(t, err)
		assert.Len(t, out, 1)

		in, err := tx.Relationships(a.ID, "DEPENDS_ON", Incoming)
		require.NoError(t, err)
		assert.Empty(t, in)

		both, err := tx.Relationships(b.ID, "DEPENDS_ON", Both)
		require.NoError(t, err)
		assert.Len(t, both, 1)
		return nil
	})
	require.NoError(t, err)

	count, err := store.CountRelationships(ctx, "DEPENDS_ON")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_NodesByLabelAndLabelsInUse(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(tx *Tx) error {
		for _, v := range []string{"1.0", "1.1"} {
			n, err := tx.CreateNode("Artifact", "g")
			if err != nil {
				return err
			}
			if err := tx.SetProperty(n.ID, "version", v); err != nil {
				return err
			}
		}
		_, err := tx.CreateNode("Exception")
		return err
	}))

	err := store.View(ctx, func(tx *Tx) error {
		nodes, err := tx.NodesByLabel("g")
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "1.0", nodes[0].String("version"))
		assert.Equal(t, "1.1", nodes[1].String("version"))
		assert.Equal(t, []string{"Artifact", "g"}, nodes[0].Labels)

		labels, err := tx.LabelsInUse()
		require.NoError(t, err)
		assert.Equal(t, []string{"Artifact", "Exception", "g"}, labels)
		return nil
	})
	require.NoError(t, err)
}

func TestStorage_UnsupportedPropertyType(t *testing.T) {
	store := newTestStorage(t)
	err := store.Update(context.Background(), func(tx *Tx) error {
		n, err := tx.CreateNode("Artifact")
		if err != nil {
			return err
		}
		return tx.SetProperty(n.ID, "bad", 1.5)
	})
	assert.Error(t, err)
}
