package clone

import (
	"strconv"

	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/process"
)

// resetSequencesSQL realigns every sequence in the public schema with the
// MAX(id) of the table its name points at (<table>_id_seq naming convention).
// GREATEST pins empty tables to 1; setval stores the next value directly.
const resetSequencesSQL = `DO $$
DECLARE seq_record RECORD; table_name TEXT; max_val BIGINT;
BEGIN
  FOR seq_record IN SELECT schemaname, sequencename FROM pg_sequences WHERE schemaname = 'public' LOOP
    table_name := regexp_replace(seq_record.sequencename, '_id_seq$', '');
    EXECUTE format('SELECT COALESCE(MAX(id), 0) FROM %I', table_name) INTO max_val;
    EXECUTE format('SELECT setval(%L, %s)', seq_record.schemaname || '.' || seq_record.sequencename, GREATEST(max_val + 1, 1));
  END LOOP;
END $$;`

// dumpCommand builds the pg_dump invocation writing a custom-format archive
// to dumpPath. The source URI carries the password, so LogArgs swaps it for
// the redacted form.
func dumpCommand(bin string, src postgres.Profile, dumpPath string) process.Command {
	args := []string{
		src.URI(),
		"--format=custom",
		"--no-owner",
		"--no-privileges",
		"--verbose",
		"-f", dumpPath,
	}
	logArgs := append([]string{src.Redacted()}, args[1:]...)
	return process.Command{Bin: bin, Args: args, Env: src.Env(), LogArgs: logArgs}
}

// restoreCommand builds the pg_restore invocation loading dumpPath into the
// target. Triggers are disabled during load; --clean --if-exists drops
// conflicting objects first.
func restoreCommand(bin string, dst postgres.Profile, dumpPath string) process.Command {
	args := []string{
		"--disable-triggers",
		"--clean",
		"--if-exists",
		"--no-owner",
		"--no-privileges",
		"--verbose",
		"-h", dst.Host,
		"-p", strconv.Itoa(dst.Port),
		"-U", dst.Username,
		"-d", dst.Database,
		dumpPath,
	}
	return process.Command{Bin: bin, Args: args, Env: dst.Env()}
}

// psqlCommand builds a psql execute-and-exit invocation against the target.
func psqlCommand(bin string, dst postgres.Profile, sql string) process.Command {
	args := []string{
		"-h", dst.Host,
		"-p", strconv.Itoa(dst.Port),
		"-U", dst.Username,
		"-d", dst.Database,
		"-c", sql,
	}
	return process.Command{Bin: bin, Args: args, Env: dst.Env()}
}
