package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// HTTPServer serves until ctx is done, then shuts down gracefully.
type HTTPServer struct {
	Server          *http.Server
	ShutdownTimeout time.Duration
}

func (w *HTTPServer) Start(ctx context.Context) error {
	if w.ShutdownTimeout <= 0 {
		w.ShutdownTimeout = 10 * time.Second
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("http: listening", "addr", w.Server.Addr)
		if err := w.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.ShutdownTimeout)
	defer cancel()
	if err := w.Server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("http: stopped")
	return nil
}
