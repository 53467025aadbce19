//go:build unix

package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pscheid92/pxsession/internal/domain"
)

// WatchSignals maps SIGUSR1 to onscreen and SIGUSR2 to background until ctx
// is done. It blocks.
func WatchSignals(ctx context.Context, hub *Hub) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigChan)

	for {
		select {
		case sig := <-sigChan:
			to := stateForSignal(sig)
			slog.Debug("Lifecycle signal received", "signal", sig.String(), "state", string(to))
			hub.Emit(to)
		case <-ctx.Done():
			return
		}
	}
}

func stateForSignal(sig os.Signal) domain.LifecycleState {
	if sig == syscall.SIGUSR1 {
		return domain.LifecycleOnscreen
	}
	return domain.LifecycleBackground
}
