package pprofserver

import (
	"context"
	"github.com/myrjola/dossier/internal/errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServer() *http.Server {
	mux := http.NewServeMux()
	Handle(mux)
	return &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: time.Second,
	}
}

// Launch a standard pprof server at ipv6 loopback address ::1 and given port. The server stops when ctx is done.
// Failing to listen is logged and doesn't affect the caller.
func Launch(ctx context.Context, port string, logger *slog.Logger) {
	logger = logger.With("source", "pprof")
	addr := "[::1]" + port
	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.LogAttrs(ctx, slog.LevelWarn, "pprof server disabled",
				errors.SlogError(errors.Wrap(err, "listen", slog.String("addr", addr))))
			return
		}
		srv := newServer()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
		logger.LogAttrs(ctx, slog.LevelInfo, "starting pprof server", slog.String("addr", listener.Addr().String()))
		if err = srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			logger.LogAttrs(ctx, slog.LevelError, "pprof server stopped", errors.SlogError(err))
		}
	}()
}
