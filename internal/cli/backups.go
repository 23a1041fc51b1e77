package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/config"
	"github.com/mera-platform/mera/internal/save"
	"github.com/mera-platform/mera/internal/session"
)

// BackupsOptions holds flags for the backups commands.
type BackupsOptions struct {
	*RootOptions
	Config string
	Retain int // overrides backups.retain when positive
}

// BackupEntry is one backup in command output.
type BackupEntry struct {
	Key     string    `json:"key"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

// PruneResult is the output of backups prune.
type PruneResult struct {
	Retain  int      `json:"retain"`
	Deleted []string `json:"deleted"`
}

// NewBackupsCommand creates the backups command group.
func NewBackupsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BackupsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Inspect and prune remote backups",
		Long: `Inspect and prune the timestamped bundle backups a session keeps in its
remote store.

Examples:
  mera backups list --config ./mera.yaml
  mera backups prune --config ./mera.yaml --retain 5`,
	}
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file (required)")
	_ = cmd.MarkPersistentFlagRequired("config")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List backups, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupsList(opts, cmd)
		},
	}

	prune := &cobra.Command{
		Use:           "prune",
		Short:         "Delete all but the newest retained backups",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackupsPrune(opts, cmd)
		},
	}
	prune.Flags().IntVar(&opts.Retain, "retain", 0, "backups to keep (default: backups.retain from the config)")

	cmd.AddCommand(list, prune)
	return cmd
}

// withBackups opens the configured remote store and runs fn against its
// backups. The store is closed afterwards.
func withBackups(opts *BackupsOptions, cmd *cobra.Command, fn func(context.Context, *save.Backups, config.Config) error) error {
	out := newFormatter(cmd, opts.RootOptions)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return out.Fail(ExitCommandError, CodeConfig, "failed to load config", err)
	}
	retain := cfg.Backups.Retain
	if opts.Retain > 0 {
		retain = opts.Retain
	}
	cfg.Backups.Retain = retain

	logger := newLogger(cmd.ErrOrStderr(), opts.RootOptions, cfg.Log)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := session.OpenStore(ctx, cfg.Remote, logger)
	if err != nil {
		return out.Fail(ExitCommandError, CodeStorage, "failed to open remote store", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("error closing remote store", "error", err)
		}
	}()

	backups := save.NewBackups(store, save.WithRetain(retain), save.WithBackupLogger(logger))
	return fn(ctx, backups, cfg)
}

func runBackupsList(opts *BackupsOptions, cmd *cobra.Command) error {
	return withBackups(opts, cmd, func(ctx context.Context, b *save.Backups, _ config.Config) error {
		out := newFormatter(cmd, opts.RootOptions)

		list, err := b.List(ctx)
		if err != nil {
			return out.Fail(ExitFailure, CodeStorage, "failed to list backups", err)
		}

		entries := make([]BackupEntry, 0, len(list))
		lines := make([]string, 0, len(list)+1)
		for _, info := range list {
			entries = append(entries, BackupEntry{Key: info.Key, Version: info.Version.String(), Time: info.Time.UTC()})
			lines = append(lines, fmt.Sprintf("%s  %s  %s", info.Time.UTC().Format(time.RFC3339), info.Version, info.Key))
		}
		if len(lines) == 0 {
			lines = append(lines, "No backups found.")
		}
		return out.Success(entries, lines...)
	})
}

func runBackupsPrune(opts *BackupsOptions, cmd *cobra.Command) error {
	return withBackups(opts, cmd, func(ctx context.Context, b *save.Backups, cfg config.Config) error {
		out := newFormatter(cmd, opts.RootOptions)

		deleted, err := b.Prune(ctx)
		if err != nil {
			return out.Fail(ExitFailure, CodeStorage, "failed to prune backups", err)
		}
		if deleted == nil {
			deleted = []string{}
		}

		lines := []string{fmt.Sprintf("Deleted %d backups, keeping the newest %d.", len(deleted), cfg.Backups.Retain)}
		for _, key := range deleted {
			lines = append(lines, "  "+key)
		}
		return out.Success(PruneResult{Retain: cfg.Backups.Retain, Deleted: deleted}, lines...)
	})
}
