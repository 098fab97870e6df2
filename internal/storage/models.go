package storage

import "time"

// Node represents a labelled node in the property graph
type Node struct {
	ID         int64
	Labels     []string
	Properties map[string]any
}

// HasLabel reports whether the node carries the given label
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// String returns a string property, "" if absent or of another type
func (n *Node) String(name string) string {
	s, _ := n.Properties[name].(string)
	return s
}

// Int returns an integer property and whether it was set
func (n *Node) Int(name string) (int64, bool) {
	i, ok := n.Properties[name].(int64)
	return i, ok
}

// Time returns a timestamp property and whether it was set
func (n *Node) Time(name string) (time.Time, bool) {
	t, ok := n.Properties[name].(time.Time)
	return t, ok
}

// Relationship represents a directed, typed edge between two nodes
type Relationship struct {
	ID         int64
	Type       string
	FromID     int64
	ToID       int64
	Properties map[string]any
}

// Direction selects which relationships of a node to return
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// Metrics tracks ingestion statistics for export on exit
type Metrics struct {
	StartTime             time.Time `json:"start_time"`
	EndTime               time.Time `json:"end_time"`
	RecordsProcessed      int       `json:"records_processed"`
	RecordsSkipped        int       `json:"records_skipped"`
	NodesCreated          int       `json:"nodes_created"`
	DependenciesRecorded  int       `json:"dependencies_recorded"`
	DependenciesDuplicate int       `json:"dependencies_duplicate"`
	CountersUpdated       int       `json:"counters_updated"`
	ExceptionEdges        int       `json:"exception_edges"`
	ResolutionFailures    int       `json:"resolution_failures"`
	NextEdges             int       `json:"next_edges"`
	MetadataFetched       int       `json:"metadata_fetched"`
	MetadataFailed        int       `json:"metadata_failed"`
	TerminationReason     string    `json:"termination_reason"`
}
