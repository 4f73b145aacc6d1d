package debug

import (
	"context"
	"testing"
	"time"
)

func TestStopIfLabelMismatch(t *testing.T) {
	t.Setenv("DBCLONE_TEST_STOP", "other_point")

	done := make(chan struct{})
	go func() {
		StopIf(context.Background(), "dump_done")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopIf should return immediately for a non-matching label")
	}
}

func TestStopIfParksUntilCancel(t *testing.T) {
	t.Setenv("DBCLONE_TEST_STOP", "dump_done")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		StopIf(ctx, "dump_done")
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("StopIf returned before cancellation")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopIf should unpark on cancellation")
	}
}
