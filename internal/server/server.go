package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

var ErrForcedShutdown = errors.New("shutdown did not finish in time")

type Server struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *logger_i.Logger
}

func New(listenAddr string, handler http.Handler) *Server {
	return &Server{
		server: &http.Server{
			Addr:         listenAddr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		shutdownTimeout: config.ShutdownContextTimeout,
		logger:          logger_i.NewLogger("Server"),
	}
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context, drain func()) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln, drain)
}

// Serve accepts connections on ln until ctx is cancelled, then stops taking
// requests and runs drain (stopping the workers). Both steps share one
// shutdown deadline.
func (s *Server) Serve(ctx context.Context, ln net.Listener, drain func()) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server is listening at", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server crashed", "error", err, "addr", ln.Addr().String())
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			s.server.SetKeepAlivesEnabled(false)
			err := s.server.Shutdown(shutdownCtx)
			if err != nil {
				s.logger.Error("Could not shutdown gracefully", "error", err)
			}
			if drain != nil {
				drain()
			}
			done <- err
		}()

		select {
		case err := <-done:
			s.logger.Info("Gracefully shut down")
			return err
		case <-shutdownCtx.Done():
			s.logger.Error("Force Shut down")
			return ErrForcedShutdown
		}
	})

	return g.Wait()
}
