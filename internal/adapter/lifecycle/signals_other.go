//go:build !unix

package lifecycle

import "context"

// WatchSignals waits for ctx; lifecycle signals exist only on unix.
func WatchSignals(ctx context.Context, _ *Hub) {
	<-ctx.Done()
}
