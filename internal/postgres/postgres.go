package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Connect opens a single control connection for check/verify/preflight
// queries. The clone data path never goes through this connection; bulk work
// belongs to the external tools.
func Connect(ctx context.Context, p Profile) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, p.DirectURI())
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.Redacted(), err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("ping %s: %w", p.Redacted(), err)
	}
	return conn, nil
}

// Ping dials the endpoint and closes it right away. Used by connection tests
// where the caller only wants the yes/no.
func Ping(ctx context.Context, p Profile) error {
	conn, err := Connect(ctx, p)
	if err != nil {
		return err
	}
	return conn.Close(ctx)
}

// ServerVersion returns the human-readable server version string.
func ServerVersion(ctx context.Context, q queryer) (string, error) {
	var ver string
	if err := q.QueryRow(ctx, "SHOW server_version").Scan(&ver); err != nil {
		return "", fmt.Errorf("query version: %w", err)
	}
	return ver, nil
}

// DatabaseSize returns pg_database_size(name) in bytes. Used by the preflight
// space check; custom-format dumps compress, so this is an upper bound on the
// temp file size.
func DatabaseSize(ctx context.Context, q queryer, name string) (int64, error) {
	var size int64
	if err := q.QueryRow(ctx, "SELECT pg_database_size($1)", name).Scan(&size); err != nil {
		return 0, fmt.Errorf("query database size: %w", err)
	}
	return size, nil
}

// PrettyBytes converts bytes to human-readable IEC units similar to pg_size_pretty.
func PrettyBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d bytes", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	value := float64(b) / float64(div)
	suffix := []string{"kB", "MB", "GB", "TB", "PB", "EB"}[exp]
	return fmt.Sprintf("%.2f %s", value, suffix)
}
