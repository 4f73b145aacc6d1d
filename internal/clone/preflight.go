package clone

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/util/disk"
	"github.com/Nano112/db-clone-tool/internal/util/fs"
)

// preflightTimeout bounds the advisory size check so a slow source cannot
// stall the run before it starts.
const preflightTimeout = 10 * time.Second

// Preflight compares the source database size against the free space in the
// dump directory and warns when the dump might not fit. Purely advisory:
// custom-format dumps compress well, and a source that is unreachable here
// fails properly in the dump phase, so nothing in this check blocks the run.
func Preflight(ctx context.Context, cfg *Config, rep Reporter) {
	if rep == nil {
		rep = NopReporter{}
	}
	ctx, cancel := context.WithTimeout(ctx, preflightTimeout)
	defer cancel()

	conn, err := postgres.Connect(ctx, cfg.Source)
	if err != nil {
		slog.Warn("preflight: source connect", "err", err)
		return
	}
	defer func() { _ = conn.Close(ctx) }()

	size, err := postgres.DatabaseSize(ctx, conn, cfg.Source.Database)
	if err != nil {
		slog.Warn("preflight: database size", "err", err)
		return
	}
	slog.Info("source database size", "size", postgres.PrettyBytes(size))

	dir := cfg.TempDir
	if dir == "" {
		dir = os.TempDir()
	} else if err := fs.MkdirP(dir); err != nil {
		slog.Warn("preflight: temp dir", "err", err)
		return
	}
	if err := disk.EnsureSpace(map[string]uint64{dir: uint64(size)}); err != nil {
		rep.Log("⚠️  " + err.Error())
		slog.Warn("preflight: disk space", "err", err)
	}
}
