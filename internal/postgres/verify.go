package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Counts summarizes what landed in the target after a restore.
type Counts struct {
	Tables    int64
	Sequences int64
}

func (c Counts) String() string {
	return fmt.Sprintf("%d tables, %d sequences", c.Tables, c.Sequences)
}

// CountPublic counts tables and sequences in the public schema of whatever q
// is connected to. Both queries run on the same connection; any error aborts
// the count and is reported to the caller (the orchestrator downgrades it to
// a warning).
func CountPublic(ctx context.Context, q queryer) (Counts, error) {
	var c Counts
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public'`).Scan(&c.Tables); err != nil {
		return Counts{}, fmt.Errorf("count tables: %w", err)
	}
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM pg_sequences WHERE schemaname = 'public'`).Scan(&c.Sequences); err != nil {
		return Counts{}, fmt.Errorf("count sequences: %w", err)
	}
	return c, nil
}

// VerifyTarget connects to the target profile and counts restored objects.
func VerifyTarget(ctx context.Context, p Profile) (Counts, error) {
	conn, err := Connect(ctx, p)
	if err != nil {
		return Counts{}, err
	}
	defer func() { _ = conn.Close(ctx) }()
	return CountPublic(ctx, conn)
}
