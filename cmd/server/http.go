package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/insight-edu/pageflow/internal/httpapi"
)

// handleHTTPServer starts the httpapi mux on addr and arranges for it to
// shut down gracefully when ctx is cancelled, mirroring the teacher's
// cmd/assistant/http.go lifecycle (listen in a goroutine, report errors onto
// errc, shut down with a bounded timeout on context cancellation).
func handleHTTPServer(ctx context.Context, addr string, api *httpapi.API, wg *sync.WaitGroup, errc chan error) {
	handler := log.HTTP(ctx)(httpapi.NewMux(api))
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 60 * time.Second}

	wg.Add(1)
	go func() {
		defer wg.Done()

		go func() {
			log.Printf(ctx, "HTTP server listening on %q", addr)
			errc <- srv.ListenAndServe()
		}()

		<-ctx.Done()
		log.Printf(ctx, "shutting down HTTP server at %q", addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf(ctx, "failed to shutdown: %v", err)
		}
	}()
}
