package clone

// Reporter consumes step-level output from the orchestrator: an overall
// percentage at each phase boundary and one display line per event. The
// orchestrator calls it from its own goroutine; implementations that hand
// lines to a UI loop must do their own handoff.
type Reporter interface {
	Progress(pct int)
	Log(line string)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) Progress(int) {}
func (NopReporter) Log(string)   {}

// FuncReporter adapts two callbacks; nil callbacks are skipped.
type FuncReporter struct {
	OnProgress func(int)
	OnLog      func(string)
}

func (f FuncReporter) Progress(pct int) {
	if f.OnProgress != nil {
		f.OnProgress(pct)
	}
}

func (f FuncReporter) Log(line string) {
	if f.OnLog != nil {
		f.OnLog(line)
	}
}
