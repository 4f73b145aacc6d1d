package debug

import (
	"context"
	"fmt"
	"os"
)

// StopIf parks the pipeline if the environment variable DBCLONE_TEST_STOP
// equals the provided label. It prints a marker line to stderr so tests can
// wait until the exact stop point is reached before sending signals, and it
// unparks on cancellation so shutdown still unwinds through the normal path.
func StopIf(ctx context.Context, label string) {
	if os.Getenv("DBCLONE_TEST_STOP") != label {
		return
	}
	fmt.Fprintf(os.Stderr, "TEST_stop_point_%s\n", label)
	<-ctx.Done()
}
