package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/artifactgraph"
	"github.com/alvmarrod/artifact-weaver/internal/coordinate"
	"github.com/alvmarrod/artifact-weaver/internal/ingest"
	"github.com/alvmarrod/artifact-weaver/internal/metadata"
	"github.com/alvmarrod/artifact-weaver/internal/metrics"
	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/alvmarrod/artifact-weaver/internal/versioning"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func (a *app) ingestCmd() *cobra.Command {
	var withPrecedence, offline bool

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Apply resolver output (JSON lines, - for stdin) to the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tracker := metrics.NewTracker()
			progressCtx, stopProgress := context.WithCancel(ctx)
			defer stopProgress()
			go trackProgress(progressCtx, tracker, 10*time.Second)

			svc := a.newService(store, tracker, offline)
			filter, err := coordinate.NewGroupFilter(a.cfg.ExcludedGroups)
			if err != nil {
				return err
			}

			runErr := ingest.NewPipeline(svc, filter, tracker, a.cfg.ConcurrentWorkers).Run(ctx, in)
			if runErr == nil && withPrecedence {
				runErr = a.buildPrecedence(ctx, store, tracker)
			}

			stopProgress()
			a.writeMetrics(ctx, tracker, runErr)
			return runErr
		},
	}
	cmd.Flags().BoolVar(&withPrecedence, "precedence", false, "Build NEXT edges once ingestion finishes")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip Last-Modified lookups")
	return cmd
}

func (a *app) precedenceCmd() *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "precedence",
		Short: "Link consecutive releases of every artifact with NEXT edges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if policy != "" {
				a.cfg.PrecedencePolicy = policy
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tracker := metrics.NewTracker()
			runErr := a.buildPrecedence(cmd.Context(), store, tracker)
			a.writeMetrics(cmd.Context(), tracker, runErr)
			return runErr
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "Override precedence_policy (adjacent or strict)")
	return cmd
}

func (a *app) indexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Create a coordinates index for every label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			return artifactgraph.NewService(store).CreateIndexes(cmd.Context())
		},
	}
}

func (a *app) newService(store *storage.Storage, tracker *metrics.Tracker, offline bool) *artifactgraph.Service {
	opts := []artifactgraph.Option{artifactgraph.WithTracker(tracker)}
	if a.cfg.Offline || offline {
		logrus.Info("Offline mode: Last-Modified lookups disabled")
		return artifactgraph.NewService(store, opts...)
	}

	src := metadata.NewCentralSource(metadata.Options{
		RepositoryURL:  a.cfg.RepositoryURL,
		RequestTimeout: time.Duration(a.cfg.RequestTimeoutMs) * time.Millisecond,
		RetryAttempts:  a.cfg.RetryAttempts,
		RetryDelay:     time.Duration(a.cfg.RetryDelayMs) * time.Millisecond,
	})
	opts = append(opts, artifactgraph.WithMetadataSource(src))
	return artifactgraph.NewService(store, opts...)
}

func (a *app) buildPrecedence(ctx context.Context, store *storage.Storage, tracker *metrics.Tracker) error {
	scheme := versioning.NewGenericScheme()
	policy, err := artifactgraph.PolicyByName(a.cfg.PrecedencePolicy, scheme)
	if err != nil {
		return err
	}

	created, err := artifactgraph.NewPrecedenceBuilder(store, scheme, policy).Build(ctx)
	if err != nil {
		return err
	}
	tracker.AddNextEdges(created)
	return nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
