package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/Nano112/db-clone-tool/internal/clone"
)

// runReporter is clone.Reporter plus a teardown hook for the display.
type runReporter interface {
	clone.Reporter
	finish(ok bool)
}

// newRunReporter picks a display for --progress. auto selects the bar when
// stdout is a terminal, plain otherwise.
func newRunReporter(mode string) (runReporter, error) {
	switch mode {
	case "auto":
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return newBarReporter(), nil
		}
		return &plainReporter{out: os.Stdout}, nil
	case "bar":
		return newBarReporter(), nil
	case "plain":
		return &plainReporter{out: os.Stdout}, nil
	case "none":
		return silentReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown progress mode %q (want auto|bar|plain|none)", mode)
	}
}

// silentReporter drops all display output; failures still reach the user
// through the command exit path.
type silentReporter struct{ clone.NopReporter }

func (silentReporter) finish(bool) {}

// plainReporter prints each line as it happens plus a timestamped percentage
// marker per phase boundary. Safe for CI logs and pipes.
type plainReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *plainReporter) Progress(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %3d %%\n", time.Now().Format("2006-01-02 15:04:05"), pct)
}

func (p *plainReporter) Log(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

func (p *plainReporter) finish(bool) {}

// barReporter renders one 0-100 bar. The latest log line is shown after the
// bar; warnings are kept and replayed once the bar is gone so the redraw does
// not eat them.
type barReporter struct {
	p   *mpb.Progress
	bar *mpb.Bar

	mu    sync.Mutex
	phase string
	kept  []string
}

func newBarReporter() *barReporter {
	r := &barReporter{}
	r.p = mpb.New(mpb.WithWidth(40), mpb.WithRefreshRate(100*time.Millisecond))
	name := "clone "
	r.bar = r.p.New(100, mpb.BarStyle().Lbound("|").Rbound("|"),
		mpb.PrependDecorators(decor.Name(name, decor.WC{W: len(name), C: decor.DSyncWidth}), decor.Percentage()),
		mpb.AppendDecorators(decor.Any(func(decor.Statistics) string {
			r.mu.Lock()
			defer r.mu.Unlock()
			return " " + r.phase
		})))
	return r
}

func (r *barReporter) Progress(pct int) {
	if delta := pct - int(r.bar.Current()); delta > 0 {
		r.bar.IncrBy(delta)
	}
}

func (r *barReporter) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = line
	if strings.HasPrefix(line, "⚠️") || strings.HasPrefix(line, "❌") {
		r.kept = append(r.kept, line)
	}
}

func (r *barReporter) finish(ok bool) {
	if ok {
		r.bar.SetTotal(100, true) // mark as complete
	} else {
		r.bar.Abort(false)
	}
	r.p.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.kept {
		fmt.Println(l)
	}
	if ok && strings.HasPrefix(r.phase, "🎉") {
		fmt.Println(r.phase)
	}
}
