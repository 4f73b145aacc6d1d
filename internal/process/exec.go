package process

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// Command описывает один запуск внешней утилиты.
// Env передаётся процессу как есть (nil — унаследовать окружение родителя).
// LogArgs, если задан, подменяет Args в логах — для команд, у которых
// настоящие аргументы содержат пароль.
type Command struct {
	Bin     string
	Args    []string
	Env     []string
	LogArgs []string
}

// Result содержит данные о выполненной команде.
type Result struct {
	Cmd      string
	Args     []string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error
}

// Started reports whether the process was spawned at all. A tool that ran and
// exited non-zero still counts as started; a missing binary or a context that
// was canceled before launch does not.
func (r Result) Started() bool {
	if r.Err == nil {
		return true
	}
	var ee *exec.ExitError
	return errors.As(r.Err, &ee)
}

// TermGrace — сколько времени процесс получает между SIGTERM и SIGKILL
// при отмене контекста.
const TermGrace = 5 * time.Second

// Run выполняет внешний процесс, логируя начало/конец и собирая stdout и
// stderr в отдельные буферы (os/exec вычитывает оба потока параллельно,
// дедлока на одном потоке не возникает). Никаких ретраев и таймаутов:
// ограничение времени — забота вызывающего через ctx.
func Run(ctx context.Context, c Command) Result {
	cmd := exec.CommandContext(ctx, c.Bin, c.Args...)
	cmd.Env = c.Env
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = TermGrace

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	logArgs := c.LogArgs
	if logArgs == nil {
		logArgs = c.Args
	}
	slog.Info("exec start", "cmd", c.Bin, "args", logArgs)
	start := time.Now()

	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	slog.Info("exec done", "cmd", c.Bin, "code", exitCode, "dur", duration, "err", err)

	return Result{
		Cmd:      c.Bin,
		Args:     c.Args,
		Stdout:   outBuf.Bytes(),
		Stderr:   errBuf.Bytes(),
		ExitCode: exitCode,
		Duration: duration,
		Err:      err,
	}
}
