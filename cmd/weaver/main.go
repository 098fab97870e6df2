package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alvmarrod/artifact-weaver/internal/config"
	"github.com/alvmarrod/artifact-weaver/internal/metrics"
	"github.com/alvmarrod/artifact-weaver/internal/storage"
	"github.com/alvmarrod/artifact-weaver/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries state shared by subcommands
type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	// Configure logging
	logrus.SetLevel(logrus.InfoLevel)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		logrus.Errorf("%v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "weaver",
		Short:         "Maintain a Maven artifact dependency graph",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.json", "Path to the JSON or YAML configuration file")

	root.AddCommand(a.ingestCmd())
	root.AddCommand(a.precedenceCmd())
	root.AddCommand(a.indexCmd())
	root.AddCommand(versionCmd())
	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	a.cfg = cfg
	logrus.Debugf("Configuration loaded: db=%s, workers=%d, offline=%v",
		cfg.DBPath, cfg.ConcurrentWorkers, cfg.Offline)
	return nil
}

// openStore opens the graph database with the configured retry policy
func (a *app) openStore() (*storage.Storage, error) {
	store, err := storage.NewStorage(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	store.SetRetryPolicy(a.cfg.RetryAttempts, time.Duration(a.cfg.RetryDelayMs)*time.Millisecond)
	logrus.Infof("Database initialized: %s", a.cfg.DBPath)
	return store, nil
}

// trackProgress logs tracker progress every interval until ctx is done
func trackProgress(ctx context.Context, tracker *metrics.Tracker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logrus.Info(tracker.LogProgress())
		case <-ctx.Done():
			return
		}
	}
}

// writeMetrics exports final metrics, tagging how the run ended
func (a *app) writeMetrics(ctx context.Context, tracker *metrics.Tracker, runErr error) {
	reason := "completed"
	switch {
	case ctx.Err() != nil:
		reason = "signal"
	case runErr != nil:
		reason = "error"
	}

	logrus.Info("Final stats: " + tracker.LogProgress())
	if err := tracker.WriteToFile(a.cfg.MetricsPath, reason); err != nil {
		logrus.Errorf("Failed to write metrics: %v", err)
		return
	}
	logrus.Infof("Metrics written to %s", a.cfg.MetricsPath)
}
