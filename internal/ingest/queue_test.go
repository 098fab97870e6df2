package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DeduplicatesIdempotentRecords(t *testing.T) {
	q := NewQueue()

	dep := Record{Kind: KindDependency, Source: "g:a:1", Target: "g:b:1"}
	assert.True(t, q.Push(dep))
	assert.False(t, q.Push(dep))

	// Empty scope and compile are the same edge
	dep.Scope = "compile"
	assert.False(t, q.Push(dep))
	dep.Scope = "test"
	assert.True(t, q.Push(dep))

	failure := Record{Kind: KindFailure, Artifact: "g:a:1"}
	assert.True(t, q.Push(failure))
	assert.True(t, q.Push(failure))

	assert.Equal(t, 4, q.Size())
}

func TestQueue_FIFOAndStop(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Push(Record{Kind: KindArtifact, Artifact: "g:a:1", Line: 1}))
	require.True(t, q.Push(Record{Kind: KindArtifact, Artifact: "g:a:2", Line: 2}))
	q.Stop()

	assert.False(t, q.Push(Record{Kind: KindArtifact, Artifact: "g:a:3"}))

	rec, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, rec.Line)
	rec, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, rec.Line)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_PopBlocksUntilPushOrStop(t *testing.T) {
	q := NewQueue()
	got := make(chan bool, 2)

	go func() {
		_, ok := q.Pop()
		got <- ok
		_, ok = q.Pop()
		got <- ok
	}()

	select {
	case <-got:
		t.Fatal("Pop returned on an empty running queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Push(Record{Kind: KindArtifact, Artifact: "g:a:1"})
	assert.True(t, <-got)

	q.Stop()
	assert.False(t, <-got)
}
