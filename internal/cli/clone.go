package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Nano112/db-clone-tool/internal/clone"
	"github.com/Nano112/db-clone-tool/internal/lock"
	"github.com/Nano112/db-clone-tool/internal/sshtunnel"
	"github.com/Nano112/db-clone-tool/internal/util/signalctx"
)

var cloneOpts struct {
	Progress     string
	TempDir      string
	ToolTimeout  time.Duration
	KeepDump     bool
	PgDumpBin    string
	PgRestoreBin string
	PsqlBin      string
}

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Run the clone non-interactively",
	RunE:  runClone,
}

func init() {
	f := cloneCmd.Flags()
	f.StringVar(&cloneOpts.Progress, "progress", "auto", "Progress display mode: auto|bar|plain|none")
	f.StringVar(&cloneOpts.TempDir, "temp-dir", "", "Directory for the intermediate dump (default: system temp)")
	f.DurationVar(&cloneOpts.ToolTimeout, "tool-timeout", 0, "Per-tool timeout, e.g. 30m (0 = no limit)")
	f.BoolVar(&cloneOpts.KeepDump, "keep-dump", false, "Preserve the dump file after the run")
	f.StringVar(&cloneOpts.PgDumpBin, "pg-dump", "", "pg_dump binary (default: resolved via PATH)")
	f.StringVar(&cloneOpts.PgRestoreBin, "pg-restore", "", "pg_restore binary (default: resolved via PATH)")
	f.StringVar(&cloneOpts.PsqlBin, "psql", "", "psql binary (default: resolved via PATH)")
}

func runClone(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if err := promptMissingPasswords(settings); err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	ctx, cancel, sigCh := signalctx.WithSignals(cmd.Context())
	defer cancel()
	go func() {
		if sig, ok := <-sigCh; ok {
			slog.Warn("signal received, shutting down", "signal", sig.String())
		}
	}()

	source := settings.Source
	if settings.SSH.Enabled() {
		tun, port, err := sshtunnel.Open(ctx, settings.SSH.TunnelConfig(), source.Addr())
		if err != nil {
			return fmt.Errorf("ssh tunnel: %w", err)
		}
		defer func() { _ = tun.Close() }()
		source.Host = "127.0.0.1"
		source.Port = port
		slog.Info("source rerouted through tunnel", "local", tun.Addr())
	}

	lk := lock.New(settings.Target.Redacted())
	locked, err := lk.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another clone into %s is already running", settings.Target.Redacted())
	}
	defer func() { _ = lk.Unlock() }()

	rep, err := newRunReporter(cloneOpts.Progress)
	if err != nil {
		return err
	}

	cfg := &clone.Config{
		Source:       source,
		Target:       settings.Target,
		PgDumpBin:    cloneOpts.PgDumpBin,
		PgRestoreBin: cloneOpts.PgRestoreBin,
		PsqlBin:      cloneOpts.PsqlBin,
		TempDir:      cloneOpts.TempDir,
		ToolTimeout:  cloneOpts.ToolTimeout,
		KeepDump:     cloneOpts.KeepDump,
	}

	clone.Preflight(ctx, cfg, rep)

	err = clone.Run(ctx, cfg, rep)
	rep.finish(err == nil)
	return err
}
