package clone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Nano112/db-clone-tool/internal/debug"
	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/process"
)

// State of the clone pipeline. States only move forward. Failed is terminal
// and reachable from Dumping and Restoring; the later phases degrade to
// warnings instead of failing the job.
type State int

const (
	StateIdle State = iota
	StateDumping
	StateRestoring
	StateResettingSequences
	StateVerifying
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDumping:
		return "dumping"
	case StateRestoring:
		return "restoring"
	case StateResettingSequences:
		return "resetting_sequences"
	case StateVerifying:
		return "verifying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Progress milestones emitted at phase boundaries.
const (
	progressStarted   = 10
	progressDumped    = 40
	progressRestored  = 70
	progressSequences = 90
	progressVerified  = 100
)

// stderrPreview caps how much tool stderr lands in a warning line.
const stderrPreview = 200

// Runner executes one external tool; process.Run is the production Runner.
type Runner func(ctx context.Context, c process.Command) process.Result

// Verifier counts restored objects on the target; postgres.VerifyTarget is
// the production Verifier.
type Verifier func(ctx context.Context, p postgres.Profile) (postgres.Counts, error)

// Orchestrator keeps state across clone steps.
type Orchestrator struct {
	cfg *Config

	run    Runner
	verify Verifier
	rep    Reporter

	job   *Job
	state State
}

// New builds an orchestrator with production wiring: real subprocesses and a
// real driver connection for verification.
func New(cfg *Config, rep Reporter) *Orchestrator {
	if rep == nil {
		rep = NopReporter{}
	}
	return &Orchestrator{
		cfg:    cfg,
		run:    process.Run,
		verify: postgres.VerifyTarget,
		rep:    rep,
	}
}

// Run executes the full clone pipeline: dump, restore, sequence reset,
// verify, cleanup.
func Run(ctx context.Context, cfg *Config, rep Reporter) error {
	return New(cfg, rep).Run(ctx)
}

// Run drives the phases in strict sequence. A dump failure (or a restore that
// never spawned) aborts the job; everything after a completed restore only
// ever produces warnings. Temp artifacts are removed on every exit path.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.job = NewJob(o.cfg.KeepDump)
	defer o.Close()

	slog.Info("clone starting", "job", o.job.ID,
		"source", o.cfg.Source.Redacted(), "target", o.cfg.Target.Redacted())

	o.state = StateDumping
	o.rep.Log("🚀 Starting database clone process...")
	o.rep.Progress(progressStarted)

	dumpPath, err := o.stepDump(ctx)
	if err != nil {
		return o.fail(err)
	}
	o.rep.Progress(progressDumped)
	debug.StopIf(ctx, "dump_done")

	o.state = StateRestoring
	o.rep.Log("📥 Restoring to target database...")
	if err := o.stepRestore(ctx, dumpPath); err != nil {
		return o.fail(err)
	}
	o.rep.Progress(progressRestored)

	o.state = StateResettingSequences
	o.rep.Log("🔄 Resetting sequences...")
	o.stepResetSequences(ctx)
	o.rep.Progress(progressSequences)

	o.state = StateVerifying
	o.rep.Log("✅ Verifying clone...")
	o.stepVerify(ctx)
	o.rep.Progress(progressVerified)

	o.state = StateDone
	o.rep.Log("🎉 Database clone completed successfully!")
	slog.Info("clone finished", "job", o.job.ID)
	return nil
}

// State returns the last state the pipeline reached.
func (o *Orchestrator) State() State { return o.state }

// Close releases run resources; safe to call multiple times. With KeepDump
// the surviving artifacts are logged so the user can find them.
func (o *Orchestrator) Close() {
	if o.job == nil {
		return
	}
	if o.cfg.KeepDump {
		for _, p := range o.job.Artifacts() {
			slog.Info("dump kept", "job", o.job.ID, "path", p)
		}
	}
	o.job.Cleanup()
	o.job = nil
}

func (o *Orchestrator) fail(err error) error {
	o.state = StateFailed
	o.rep.Log("❌ Error during clone process: " + err.Error())
	slog.Error("clone failed", "err", err)
	return err
}

// stepDump writes a custom-format archive of the source into a fresh temp
// file. Any non-zero exit is fatal.
func (o *Orchestrator) stepDump(ctx context.Context) (string, error) {
	o.rep.Log(fmt.Sprintf("📊 Creating dump from %s/%s...", o.cfg.Source.Host, o.cfg.Source.Database))

	dumpPath, err := o.job.TempFile(o.cfg.TempDir, "db_clone_*.custom")
	if err != nil {
		return "", err
	}

	res := o.runTool(ctx, dumpCommand(o.cfg.pgDump(), o.cfg.Source, dumpPath))
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("pg_dump interrupted: %w", err)
	}
	if errors.Is(res.Err, context.DeadlineExceeded) {
		return "", fmt.Errorf("pg_dump timed out after %s", o.cfg.ToolTimeout)
	}
	if !res.Started() {
		return "", fmt.Errorf("pg_dump failed to start: %w", res.Err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("pg_dump failed: %s", res.Stderr)
	}

	if fi, err := os.Stat(dumpPath); err == nil {
		slog.Info("dump complete", "job", o.job.ID, "size", postgres.PrettyBytes(fi.Size()))
	}
	o.rep.Log("✓ Database dump created successfully")
	return dumpPath, nil
}

// stepRestore loads the dump into the target. The exit code is never
// consulted: pg_restore exits non-zero for benign reasons under --clean
// (objects that already do not exist, absent owner roles). Real trouble still
// shows up in stderr, which is surfaced as a warning. Only a process that
// never spawned, an interrupt mid-restore, or the per-tool timeout is fatal.
func (o *Orchestrator) stepRestore(ctx context.Context, dumpPath string) error {
	o.rep.Log(fmt.Sprintf("📦 Restoring to %s/%s...", o.cfg.Target.Host, o.cfg.Target.Database))

	res := o.runTool(ctx, restoreCommand(o.cfg.pgRestore(), o.cfg.Target, dumpPath))
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pg_restore interrupted: %w", err)
	}
	if errors.Is(res.Err, context.DeadlineExceeded) {
		return fmt.Errorf("pg_restore timed out after %s", o.cfg.ToolTimeout)
	}
	if !res.Started() {
		return fmt.Errorf("pg_restore failed to start: %w", res.Err)
	}

	o.rep.Log("✓ Database restore completed")

	if stderr := string(res.Stderr); containsAlert(stderr) {
		o.rep.Log("⚠️  Restore warnings/errors (often ignorable): " + truncate(stderr, stderrPreview) + "...")
	}
	return nil
}

// stepResetSequences runs the realignment block through psql. Never fatal.
func (o *Orchestrator) stepResetSequences(ctx context.Context) {
	res := o.runTool(ctx, psqlCommand(o.cfg.psql(), o.cfg.Target, resetSequencesSQL))
	if res.Err != nil || res.ExitCode != 0 {
		msg := string(res.Stderr)
		if msg == "" && res.Err != nil {
			msg = res.Err.Error()
		}
		o.rep.Log("⚠️  Sequence reset warnings: " + msg)
		return
	}
	o.rep.Log("✓ Sequences reset successfully")
}

// stepVerify counts what landed on the target over a direct connection.
// Never fatal.
func (o *Orchestrator) stepVerify(ctx context.Context) {
	counts, err := o.verify(ctx, o.cfg.Target)
	if err != nil {
		o.rep.Log("⚠️  Verification failed: " + err.Error())
		return
	}
	o.rep.Log("✓ Verification complete: " + counts.String())
}

// runTool applies the per-tool timeout around one runner call. Cmd.Wait
// reports a deadline kill as the signal that delivered it ("signal:
// terminated"), not as the deadline, so the deadline is folded back into the
// error; the step gates then classify timeouts via errors.Is.
func (o *Orchestrator) runTool(ctx context.Context, c process.Command) process.Result {
	if o.cfg.ToolTimeout <= 0 {
		return o.run(ctx, c)
	}
	tctx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
	defer cancel()

	res := o.run(tctx, c)
	if res.Err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		res.Err = fmt.Errorf("%w: %w", context.DeadlineExceeded, res.Err)
	}
	return res
}

// containsAlert reports whether tool stderr mentions warnings or errors,
// case-insensitive.
func containsAlert(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "warning") || strings.Contains(s, "error")
}

// truncate caps s at n runes for display; localized tool stderr must not be
// cut mid-rune.
func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
