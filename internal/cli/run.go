package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/config"
	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/metrics"
	"github.com/mera-platform/mera/internal/session"
)

// metricsShutdownTimeout bounds the metrics server's graceful shutdown.
const metricsShutdownTimeout = 5 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string

	// IDGenerator overrides the session id generator (for testing).
	// If nil, defaults to session.UUIDv7Generator.
	IDGenerator session.IDGenerator
}

// RunSummary is printed when a session stops.
type RunSummary struct {
	Report session.Report `json:"report"`
	Ticks  int64          `json:"ticks"`
	Online bool           `json:"online"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a headless learner session",
		Long: `Run a learner session until interrupted.

The session opens the local and remote stores named in the config, recovers
and merges the stored bundles, then ticks the engine and saves every change
to both stores. Backups are written to the remote store at most once per
backup interval. With metrics.addr set, Prometheus metrics are served on
/metrics.

Example:
  mera run --config ./mera.yaml
  MERA_REMOTE_DRIVER=memory mera run --config ./mera.yaml --log-format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions, cfg.Log)

	reg, err := curriculum.Load(cfg.Registry)
	if err != nil {
		return out.Fail(ExitCommandError, CodeRegistry, "failed to load registry", err)
	}
	logger.Info("registry loaded", "path", cfg.Registry, "summary", reg.Summary())

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	m := metrics.New()
	sessOpts := []session.Option{
		session.WithLogger(logger),
		session.WithMetrics(m),
	}
	if opts.IDGenerator != nil {
		sessOpts = append(sessOpts, session.WithIDGenerator(opts.IDGenerator))
	}

	s, err := session.FromConfig(ctx, cfg, reg, sessOpts...)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open session", err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			logger.Error("error closing stores", "error", closeErr)
		}
	}()

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, m, logger)
		if err != nil {
			return out.Fail(ExitCommandError, CodeConfig, "failed to start metrics endpoint", err)
		}
		defer stop()
	}

	rep := s.Report()
	if opts.Format != "json" {
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s started (%s).\n", s.ID(), startKind(rep))
		fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")
	}

	if err := s.Run(ctx); err != nil {
		return out.Fail(ExitFailure, CodeRuntime, "session stopped", err)
	}
	if c := s.Critical(); c != nil {
		return out.Fail(ExitFailure, CodeRuntime, "critical save failure", c)
	}

	summary := RunSummary{Report: rep, Ticks: s.Engine().Ticks(), Online: s.Online()}
	return out.Success(summary,
		fmt.Sprintf("Session %s stopped after %d ticks (online: %t).", s.ID(), summary.Ticks, summary.Online))
}

func startKind(rep session.Report) string {
	switch {
	case rep.Fresh:
		return "fresh progress"
	case rep.Merged:
		return "merged local and remote progress"
	case rep.Remote.Found && !rep.Remote.Discarded:
		return "remote progress"
	default:
		return "local progress"
	}
}

// serveMetrics starts the /metrics endpoint and returns its shutdown func.
func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics endpoint failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics endpoint shutdown", "error", err)
		}
	}, nil
}
