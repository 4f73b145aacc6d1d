package clone

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Nano112/db-clone-tool/internal/postgres"
	"github.com/Nano112/db-clone-tool/internal/process"
)

// recorder captures Reporter callbacks for assertions.
type recorder struct {
	progress []int
	lines    []string
}

func (r *recorder) Progress(pct int) { r.progress = append(r.progress, pct) }
func (r *recorder) Log(line string)  { r.lines = append(r.lines, line) }

func (r *recorder) line(prefix string) string {
	for _, l := range r.lines {
		if strings.HasPrefix(l, prefix) {
			return l
		}
	}
	return ""
}

type call struct {
	bin  string
	args []string
}

// scriptedRunner returns canned results keyed by binary name and records
// every invocation. A binary without a script entry succeeds silently.
type scriptedRunner struct {
	results map[string]process.Result
	calls   []call
}

func (s *scriptedRunner) run(_ context.Context, c process.Command) process.Result {
	s.calls = append(s.calls, call{bin: c.Bin, args: c.Args})
	res := s.results[c.Bin]
	res.Cmd = c.Bin
	return res
}

func (s *scriptedRunner) called(bin string) bool {
	for _, c := range s.calls {
		if c.bin == bin {
			return true
		}
	}
	return false
}

func (s *scriptedRunner) dumpPath(t *testing.T) string {
	t.Helper()
	for _, c := range s.calls {
		if c.bin != DefaultPgDump {
			continue
		}
		for i, a := range c.args {
			if a == "-f" && i+1 < len(c.args) {
				return c.args[i+1]
			}
		}
	}
	t.Fatal("pg_dump was never invoked with -f")
	return ""
}

func testCloneConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Source:  testSource(),
		Target:  testTarget(),
		TempDir: t.TempDir(),
	}
}

func okVerifier(context.Context, postgres.Profile) (postgres.Counts, error) {
	return postgres.Counts{Tables: 5, Sequences: 3}, nil
}

func newTestOrchestrator(cfg *Config, s *scriptedRunner, v Verifier, rep Reporter) *Orchestrator {
	if v == nil {
		v = okVerifier
	}
	if rep == nil {
		rep = NopReporter{}
	}
	return &Orchestrator{cfg: cfg, run: s.run, verify: v, rep: rep}
}

func TestRunHappyPath(t *testing.T) {
	s := &scriptedRunner{}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o.State() != StateDone {
		t.Fatalf("state = %v, want %v", o.State(), StateDone)
	}

	wantProgress := []int{10, 40, 70, 90, 100}
	if !reflect.DeepEqual(rec.progress, wantProgress) {
		t.Fatalf("progress mismatch\nwant %v\n got %v", wantProgress, rec.progress)
	}

	if rec.lines[0] != "🚀 Starting database clone process..." {
		t.Fatalf("unexpected first line: %q", rec.lines[0])
	}
	if last := rec.lines[len(rec.lines)-1]; last != "🎉 Database clone completed successfully!" {
		t.Fatalf("unexpected last line: %q", last)
	}
	if got := rec.line("✓ Verification complete"); got != "✓ Verification complete: 5 tables, 3 sequences" {
		t.Fatalf("verification line = %q", got)
	}
	// a clean restore must not produce warning lines
	if got := rec.line("⚠️"); got != "" {
		t.Fatalf("unexpected warning line: %q", got)
	}

	if _, err := os.Stat(s.dumpPath(t)); !os.IsNotExist(err) {
		t.Fatalf("dump file should be removed after the run, stat err = %v", err)
	}
}

func TestRunDumpFailureAborts(t *testing.T) {
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPgDump: {ExitCode: 1, Stderr: []byte("connection to server failed: refused")},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "pg_dump failed") || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("error should carry pg_dump stderr, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if s.called(DefaultPgRestore) || s.called(DefaultPsql) {
		t.Fatal("no tool may run after a failed dump")
	}
	if !reflect.DeepEqual(rec.progress, []int{10}) {
		t.Fatalf("progress after dump failure = %v, want [10]", rec.progress)
	}
	if rec.line("❌ Error during clone process: ") == "" {
		t.Fatal("missing failure line")
	}
	if _, err := os.Stat(s.dumpPath(t)); !os.IsNotExist(err) {
		t.Fatalf("dump file should be cleaned up on failure, stat err = %v", err)
	}
}

func TestRunRestoreExitCodeIgnored(t *testing.T) {
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPgRestore: {ExitCode: 1, Stderr: []byte("pg_restore: warning: errors ignored on restore: 7")},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("restore exit code must not fail the run: %v", err)
	}
	if o.State() != StateDone {
		t.Fatalf("state = %v, want %v", o.State(), StateDone)
	}
	if rec.line("✓ Database restore completed") == "" {
		t.Fatal("missing restore completion line")
	}
	warn := rec.line("⚠️  Restore warnings/errors (often ignorable): ")
	if warn == "" {
		t.Fatal("missing restore warning line")
	}
	if !strings.Contains(warn, "errors ignored on restore") || !strings.HasSuffix(warn, "...") {
		t.Fatalf("warning line = %q", warn)
	}
	if !s.called(DefaultPsql) {
		t.Fatal("pipeline must continue past restore warnings")
	}
}

func TestRunRestoreWarningTruncated(t *testing.T) {
	noisy := "ERROR: " + strings.Repeat("x", 1000)
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPgRestore: {Stderr: []byte(noisy)},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	warn := rec.line("⚠️  Restore warnings/errors (often ignorable): ")
	want := "⚠️  Restore warnings/errors (often ignorable): " + noisy[:stderrPreview] + "..."
	if warn != want {
		t.Fatalf("warning line not truncated to %d runes:\n%q", stderrPreview, warn)
	}
}

func TestRunRestoreWarningTruncatesOnRuneBoundary(t *testing.T) {
	// Localized stderr: a byte-indexed cut would split a Cyrillic letter.
	noisy := "pg_restore: warning: " + strings.Repeat("предупреждение ", 30)
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPgRestore: {Stderr: []byte(noisy)},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	warn := rec.line("⚠️  Restore warnings/errors (often ignorable): ")
	want := "⚠️  Restore warnings/errors (often ignorable): " + string([]rune(noisy)[:stderrPreview]) + "..."
	if warn != want {
		t.Fatalf("warning line not truncated to %d runes:\n%q", stderrPreview, warn)
	}
	if !utf8.ValidString(warn) {
		t.Fatalf("warning line carries invalid UTF-8: %q", warn)
	}
}

func TestRunRestoreStartFailureAborts(t *testing.T) {
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPgRestore: {Err: errors.New(`exec: "pg_restore": executable file not found in $PATH`)},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pg_restore failed to start") {
		t.Fatalf("expected start failure, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if s.called(DefaultPsql) {
		t.Fatal("sequence reset must not run after a restore that never spawned")
	}
}

// killedAtDeadline makes bin behave like a tool killed at the context
// deadline: it outlives the child context, and the runner reports the kill
// the way Cmd.Wait does, as an ExitError for the signal rather than the
// deadline.
func killedAtDeadline(s *scriptedRunner, bin string) Runner {
	return func(ctx context.Context, c process.Command) process.Result {
		res := s.run(ctx, c)
		if c.Bin == bin {
			<-ctx.Done()
			res.ExitCode = -1
			res.Err = &exec.ExitError{}
		}
		return res
	}
}

func TestRunDumpTimeoutAborts(t *testing.T) {
	cfg := testCloneConfig(t)
	cfg.ToolTimeout = 10 * time.Millisecond
	s := &scriptedRunner{}
	rec := &recorder{}
	o := &Orchestrator{cfg: cfg, run: killedAtDeadline(s, DefaultPgDump), verify: okVerifier, rep: rec}

	err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pg_dump timed out after 10ms") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if s.called(DefaultPgRestore) {
		t.Fatal("restore must not run after a dump timeout")
	}
}

func TestRunRestoreTimeoutAborts(t *testing.T) {
	cfg := testCloneConfig(t)
	cfg.ToolTimeout = 10 * time.Millisecond
	s := &scriptedRunner{}
	rec := &recorder{}
	o := &Orchestrator{cfg: cfg, run: killedAtDeadline(s, DefaultPgRestore), verify: okVerifier, rep: rec}

	err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pg_restore timed out after 10ms") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if rec.line("✓ Database restore completed") != "" {
		t.Fatal("a restore killed at the deadline must not report completion")
	}
	if s.called(DefaultPsql) {
		t.Fatal("a restore killed by the timeout must not be treated as a noisy success")
	}
}

// fakeTool writes an executable stand-in for one of the Postgres binaries.
func fakeTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faketool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func TestRunRestoreTimeoutWithRealRunner(t *testing.T) {
	cfg := testCloneConfig(t)
	cfg.ToolTimeout = 500 * time.Millisecond
	cfg.PgDumpBin = fakeTool(t, "exit 0")
	cfg.PgRestoreBin = fakeTool(t, "exec sleep 10")

	rec := &recorder{}
	o := &Orchestrator{cfg: cfg, run: process.Run, verify: okVerifier, rep: rec}

	err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pg_restore timed out after 500ms") {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if rec.line("✓ Database restore completed") != "" {
		t.Fatal("a restore killed at the deadline must not report completion")
	}
}

func TestRunSequenceResetFailureIsWarning(t *testing.T) {
	s := &scriptedRunner{results: map[string]process.Result{
		DefaultPsql: {ExitCode: 2, Stderr: []byte(`ERROR:  relation "tags" does not exist`)},
	}}
	rec := &recorder{}
	o := newTestOrchestrator(testCloneConfig(t), s, nil, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("sequence reset failure must not fail the run: %v", err)
	}
	warn := rec.line("⚠️  Sequence reset warnings: ")
	if warn == "" || !strings.Contains(warn, "tags") {
		t.Fatalf("warning line = %q", warn)
	}
	if rec.line("✓ Verification complete") == "" {
		t.Fatal("verification must still run after sequence warnings")
	}
	if !reflect.DeepEqual(rec.progress, []int{10, 40, 70, 90, 100}) {
		t.Fatalf("progress = %v", rec.progress)
	}
}

func TestRunVerifyFailureIsWarning(t *testing.T) {
	s := &scriptedRunner{}
	rec := &recorder{}
	badVerify := func(context.Context, postgres.Profile) (postgres.Counts, error) {
		return postgres.Counts{}, errors.New("connection refused")
	}
	o := newTestOrchestrator(testCloneConfig(t), s, badVerify, rec)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("verification failure must not fail the run: %v", err)
	}
	if o.State() != StateDone {
		t.Fatalf("state = %v, want %v", o.State(), StateDone)
	}
	warn := rec.line("⚠️  Verification failed: ")
	if warn == "" || !strings.Contains(warn, "connection refused") {
		t.Fatalf("warning line = %q", warn)
	}
	if last := rec.lines[len(rec.lines)-1]; last != "🎉 Database clone completed successfully!" {
		t.Fatalf("unexpected last line: %q", last)
	}
}

func TestRunCanceledDuringRestoreAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &scriptedRunner{}
	inner := s.run
	run := func(ctx context.Context, c process.Command) process.Result {
		res := inner(ctx, c)
		if c.Bin == DefaultPgRestore {
			cancel() // simulates Ctrl+C mid-restore
		}
		return res
	}
	rec := &recorder{}
	o := &Orchestrator{cfg: testCloneConfig(t), run: run, verify: okVerifier, rep: rec}

	err := o.Run(ctx)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !strings.Contains(err.Error(), "pg_restore interrupted") {
		t.Fatalf("error = %v", err)
	}
	if o.State() != StateFailed {
		t.Fatalf("state = %v, want %v", o.State(), StateFailed)
	}
	if s.called(DefaultPsql) {
		t.Fatal("sequence reset must not run after an interrupt")
	}
	if _, statErr := os.Stat(s.dumpPath(t)); !os.IsNotExist(statErr) {
		t.Fatalf("dump file should be cleaned up on interrupt, stat err = %v", statErr)
	}
}

func TestRunKeepDumpPreservesArtifact(t *testing.T) {
	cfg := testCloneConfig(t)
	cfg.KeepDump = true
	s := &scriptedRunner{}
	o := newTestOrchestrator(cfg, s, nil, nil)

	if err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(s.dumpPath(t)); err != nil {
		t.Fatalf("dump file should survive with KeepDump: %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:               "idle",
		StateDumping:            "dumping",
		StateRestoring:          "restoring",
		StateResettingSequences: "resetting_sequences",
		StateVerifying:          "verifying",
		StateDone:               "done",
		StateFailed:             "failed",
		State(42):               "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
