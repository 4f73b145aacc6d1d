package signalctx

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestWithSignalsParentCancel(t *testing.T) {
	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel, _ := WithSignals(parent)
	defer cancel()

	parentCancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child context must follow parent cancellation")
	}
}

func TestWithSignalsOnSignal(t *testing.T) {
	ctx, cancel, sigCh := WithSignals(context.Background())
	defer cancel()

	if err := syscall.Kill(os.Getpid(), syscall.SIGINT); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context must cancel on SIGINT")
	}
	select {
	case sig := <-sigCh:
		if sig != syscall.SIGINT {
			t.Fatalf("got signal %v, want SIGINT", sig)
		}
	case <-time.After(time.Second):
		t.Fatal("received signal must be forwarded to the caller")
	}
}
