package ws

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// ListenAndServe serves the upgrade handler at path on addr until ctx is
// done, then disconnects every consumer.
func (t *Transport) ListenAndServe(ctx context.Context, addr, path string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return t.Serve(ctx, ln, path)
}

// Serve is ListenAndServe on an existing listener.
func (t *Transport) Serve(ctx context.Context, ln net.Listener, path string) error {
	mux := http.NewServeMux()
	mux.Handle(path, t.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("websocket listener started", zap.String("addr", ln.Addr().String()), zap.String("path", path))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		t.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	// Shutdown does not wait for hijacked connections, Close handles those.
	err := srv.Shutdown(shutdownCtx)
	t.Close()
	if serveErr := <-errCh; serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return err
}
