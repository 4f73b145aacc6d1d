package signalctx

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals возвращает context, который отменяется при получении INT или TERM.
// Возвращает дочерний context с CancelFunc и отдельный channel, куда пишется полученный сигнал.
// После первого сигнала подписка снимается, так что повторный Ctrl+C убивает процесс обычным путём.
func WithSignals(parent context.Context) (ctx context.Context, cancel context.CancelFunc, sigCh <-chan os.Signal) {
	ctx, cancel = context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	out := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(c)
		select {
		case <-parent.Done():
			cancel()
		case <-ctx.Done():
			// already canceled
		case sig := <-c:
			out <- sig
			cancel()
		}
	}()

	return ctx, cancel, out
}
