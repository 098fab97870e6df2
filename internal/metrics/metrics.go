package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/storage"
)

// Tracker holds and manages ingestion metrics
type Tracker struct {
	mu   sync.Mutex
	data storage.Metrics
}

// NewTracker creates a new metrics tracker
func NewTracker() *Tracker {
	return &Tracker{
		data: storage.Metrics{
			StartTime: time.Now(),
		},
	}
}

// IncrementRecordsProcessed increments the applied records counter
func (t *Tracker) IncrementRecordsProcessed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RecordsProcessed++
}

// IncrementRecordsSkipped increments the filtered/duplicate records counter
func (t *Tracker) IncrementRecordsSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.RecordsSkipped++
}

// IncrementNodesCreated increments the created artifact nodes counter
func (t *Tracker) IncrementNodesCreated() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NodesCreated++
}

// IncrementDependencies increments the DEPENDS_ON counter, or the duplicate
// counter when the edge already existed
func (t *Tracker) IncrementDependencies(added bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if added {
		t.data.DependenciesRecorded++
	} else {
		t.data.DependenciesDuplicate++
	}
}

// IncrementCountersUpdated increments the jar counter update counter
func (t *Tracker) IncrementCountersUpdated() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.CountersUpdated++
}

// AddExceptionEdges adds n RAISES edges
func (t *Tracker) AddExceptionEdges(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ExceptionEdges += n
}

// IncrementResolutionFailures increments the resolution failure counter
func (t *Tracker) IncrementResolutionFailures() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.ResolutionFailures++
}

// AddNextEdges adds n NEXT edges
func (t *Tracker) AddNextEdges(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data.NextEdges += n
}

// RecordMetadataFetch counts a Last-Modified lookup outcome
func (t *Tracker) RecordMetadataFetch(ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ok {
		t.data.MetadataFetched++
	} else {
		t.data.MetadataFailed++
	}
}

// GetSnapshot returns a copy of current metrics
func (t *Tracker) GetSnapshot() storage.Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data
}

// WriteToFile exports metrics to a JSON file
func (t *Tracker) WriteToFile(path, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Finalize metrics
	t.data.EndTime = time.Now()
	t.data.TerminationReason = reason

	jsonData, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}

	return nil
}

// LogProgress formats current metrics for periodic console updates
func (t *Tracker) LogProgress() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return fmt.Sprintf("Records: %d processed, %d skipped | Nodes: %d | Deps: %d (+%d dup) | Raises: %d | Next: %d | Metadata: %d ok, %d failed",
		t.data.RecordsProcessed,
		t.data.RecordsSkipped,
		t.data.NodesCreated,
		t.data.DependenciesRecorded,
		t.data.DependenciesDuplicate,
		t.data.ExceptionEdges,
		t.data.NextEdges,
		t.data.MetadataFetched,
		t.data.MetadataFailed,
	)
}
