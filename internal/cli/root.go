// Package cli implements the rwalk command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/talnish/iiswc21-rwalk/pkg/metrics"
	"github.com/talnish/iiswc21-rwalk/pkg/pipeline"
)

// app carries the state shared by all commands of one invocation.
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string

	cfg     pipeline.Config
	metrics *http.Server
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "rwalk",
		Short: "Temporal random walk node embeddings",
		Long: `rwalk samples time-respecting random walks over a temporal graph and
trains skip-gram node embeddings on the resulting corpus.

Examples:
  rwalk run --config rwalk.yaml          # walks, training and outputs
  rwalk walk --graph edges.wel           # write the walk corpus only
  rwalk train --corpus walks.txt         # train on an existing corpus
  rwalk inspect 42 --binary emb.bin      # print one node vector`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		a.walkCommand(),
		a.trainCommand(),
		a.runCommand(),
		a.inspectCommand(),
	)
	return root
}

// Execute runs the CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := pipeline.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.metricsAddr != "" {
		cfg.MetricsAddr = a.metricsAddr
	}

	level, err := pipeline.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	if cfg.MetricsAddr != "" {
		a.metrics = metrics.Serve(cfg.MetricsAddr)
	}
	a.cfg = cfg
	return nil
}

func (a *app) teardown() error {
	if a.metrics == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.metrics.Shutdown(ctx)
}

// session validates the configuration after flag overrides.
func (a *app) session() (*pipeline.Session, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return pipeline.NewSession(a.cfg), nil
}

// Main is the process entry point used by cmd/rwalk.
func Main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rwalk:", err)
		os.Exit(1)
	}
}
