package clone

import (
	"time"

	"github.com/Nano112/db-clone-tool/internal/postgres"
)

// Default tool names, resolved through PATH unless overridden in Config.
const (
	DefaultPgDump    = "pg_dump"
	DefaultPgRestore = "pg_restore"
	DefaultPsql      = "psql"
)

// Config collects parameters required by the clone orchestrator.
// It is a subset/superset of CLI flags but lives in a standalone package to avoid import cycles.
type Config struct {
	Source postgres.Profile
	Target postgres.Profile

	// Binary overrides; empty means the default name resolved via PATH.
	PgDumpBin    string
	PgRestoreBin string
	PsqlBin      string

	// TempDir receives the intermediate dump file; empty means the system
	// temp directory.
	TempDir string

	// ToolTimeout bounds each external tool invocation. Zero preserves the
	// original behavior: wait indefinitely.
	ToolTimeout time.Duration

	// KeepDump preserves the dump file after the run instead of deleting it.
	KeepDump bool
}

func (c *Config) pgDump() string {
	if c.PgDumpBin != "" {
		return c.PgDumpBin
	}
	return DefaultPgDump
}

func (c *Config) pgRestore() string {
	if c.PgRestoreBin != "" {
		return c.PgRestoreBin
	}
	return DefaultPgRestore
}

func (c *Config) psql() string {
	if c.PsqlBin != "" {
		return c.PsqlBin
	}
	return DefaultPsql
}
