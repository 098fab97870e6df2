package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/alvmarrod/artifact-weaver/internal/artifactgraph"
	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
	"github.com/alvmarrod/artifact-weaver/internal/metrics"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxLineSize = 1 << 20

// Graph is the set of graph mutations records map onto
type Graph interface {
	CreateNode(ctx context.Context, a coordinate.Artifact) error
	AddDependency(ctx context.Context, source, target coordinate.Artifact, scope artifactgraph.Scope) error
	UpdateCounts(ctx context.Context, a coordinate.Artifact, jar artifactgraph.JarCounter, exceptions artifactgraph.ExceptionCounter) error
	UpdateClassCount(ctx context.Context, a coordinate.Artifact, count int) error
	RecordResolutionFailure(ctx context.Context, a coordinate.Artifact) error
}

// Pipeline applies resolver output to the graph with a bounded worker pool
type Pipeline struct {
	graph   Graph
	filter  *coordinate.GroupFilter
	tracker *metrics.Tracker
	workers int
}

// NewPipeline creates a pipeline; filter may be nil
func NewPipeline(graph Graph, filter *coordinate.GroupFilter, tracker *metrics.Tracker, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if tracker == nil {
		tracker = metrics.NewTracker()
	}
	return &Pipeline{
		graph:   graph,
		filter:  filter,
		tracker: tracker,
		workers: workers,
	}
}

// Run reads JSON-lines records from r and applies them. The first failure
// stops the batch and is returned with its line number.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	queue := NewQueue()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers + 1)

	g.Go(func() error {
		defer queue.Stop()
		return p.produce(gctx, r, queue)
	})

	logrus.Infof("Starting %d ingest workers", p.workers)
	for i := 0; i < p.workers; i++ {
		id := i + 1
		g.Go(func() error {
			return p.worker(gctx, id, queue)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logrus.Info("Ingest complete: " + p.tracker.LogProgress())
	return nil
}

func (p *Pipeline) produce(ctx context.Context, r io.Reader, queue *Queue) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil
		}

		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 || data[0] == '#' {
			continue
		}

		rec, err := DecodeRecord(data, line)
		if err != nil {
			return err
		}

		if p.isExcluded(rec) {
			logrus.Debugf("Line %d: excluded group, skipping %s", line, rec.subject())
			p.tracker.IncrementRecordsSkipped()
			continue
		}

		if !queue.Push(rec) {
			logrus.Debugf("Line %d: duplicate %s record, skipping", line, rec.Kind)
			p.tracker.IncrementRecordsSkipped()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read records after line %d: %w", line, err)
	}
	return nil
}

func (p *Pipeline) worker(ctx context.Context, id int, queue *Queue) error {
	logrus.Debugf("Worker %d started", id)

	for {
		rec, ok := queue.Pop()
		if !ok {
			logrus.Debugf("Worker %d: queue drained, exiting", id)
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		if err := p.apply(ctx, rec); err != nil {
			logrus.Errorf("Worker %d: line %d failed: %v", id, rec.Line, err)
			return fmt.Errorf("line %d (%s %s): %w", rec.Line, rec.Kind, rec.subject(), err)
		}
		p.tracker.IncrementRecordsProcessed()
	}
}

func (p *Pipeline) isExcluded(rec Record) bool {
	if p.filter == nil {
		return false
	}
	artifacts, err := rec.coordinates()
	if err != nil {
		// Left for apply to report with full context
		return false
	}
	for _, a := range artifacts {
		if p.filter.IsExcluded(a) {
			return true
		}
	}
	return false
}

func (p *Pipeline) apply(ctx context.Context, rec Record) error {
	artifacts, err := rec.coordinates()
	if err != nil {
		return err
	}
	a := artifacts[0]

	switch rec.Kind {
	case KindArtifact:
		return p.graph.CreateNode(ctx, a)

	case KindDependency:
		return p.graph.AddDependency(ctx, a, artifacts[1], artifactgraph.ParseScope(rec.Scope))

	case KindCounts:
		jar, err := rec.jarCounter()
		if err != nil {
			return err
		}
		exceptions, err := rec.exceptionCounter()
		if err != nil {
			return err
		}
		return p.graph.UpdateCounts(ctx, a, jar, exceptions)

	case KindClasses:
		return p.graph.UpdateClassCount(ctx, a, rec.Count)

	case KindFailure:
		return p.graph.RecordResolutionFailure(ctx, a)

	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
}
