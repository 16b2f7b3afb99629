package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"upscale-viewer/internal/database"
	"upscale-viewer/internal/handlers"
	"upscale-viewer/internal/logging"
	"upscale-viewer/internal/metrics"
	"upscale-viewer/internal/middleware"
	"upscale-viewer/internal/startup"
)

type queueStatus = handlers.QueueStatus

// statusServer serves the status API for the lifetime of a command.
type statusServer struct {
	srv       *http.Server
	handlers  *handlers.Handlers
	collector *metrics.Collector
	addr      string
}

func newStatusHandler(h *handlers.Handlers) http.Handler {
	router := handlers.NewRouter(h)
	loggingConfig := middleware.DefaultLoggingConfig()
	return middleware.Logger(loggingConfig)(middleware.Metrics(middleware.DefaultMetricsConfig())(router))
}

// startStatusServer listens on addr and serves in the background. A listen
// failure is logged; the command keeps running without the server.
func startStatusServer(addr string, stats metrics.StatsProvider, q queueStatus, manifest *database.Database) *statusServer {
	opts := handlers.Options{Stats: stats, Queue: q}
	if manifest != nil {
		opts.Manifest = manifest
	}
	h := handlers.New(opts)

	s := &statusServer{
		handlers:  h,
		collector: metrics.NewCollector(stats, collectInterval),
		srv: &http.Server{
			Handler:           newStatusHandler(h),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logging.Error("Status server disabled: %v", err)
		return nil
	}
	s.addr = ln.Addr().String()

	s.collector.Start()
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Status server error: %v", err)
		}
	}()

	h.SetReady(true)
	startup.LogMetricsServerStarted(s.addr)
	return s
}

// Addr returns the bound address.
func (s *statusServer) Addr() string { return s.addr }

// Shutdown stops the collector and the HTTP server.
func (s *statusServer) Shutdown(ctx context.Context) error {
	s.handlers.SetReady(false)
	s.collector.Stop()
	return s.srv.Shutdown(ctx)
}
