package gateway

import (
	"context"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// Run starts the HTTP server and, if transport is non-nil, the bot
// long-poll loop alongside it, and blocks until ctx is cancelled or either
// goroutine returns an error. Both are stopped together on shutdown.
func Run(ctx context.Context, httpServer *http.Server, transport BotTransport, router TaskSubmitter, dispatcher *Dispatcher) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			return httpServer.Shutdown(context.Background())
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	if transport != nil {
		g.Go(func() error {
			BotLoop(gctx, transport, router, dispatcher)
			return nil
		})
	}

	return g.Wait()
}
