// Package server is a backend that honors the dashboard/overlay message
// contract: it owns the config and combo state and pushes it to clients.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	Addr   string
	Routes RouteOptions
	Hub    HubOptions
	Logger *zap.Logger
}

// Server ties a Hub to an HTTP listener.
type Server struct {
	Hub     *Hub
	handler http.Handler
	opts    Options
	log     *zap.Logger
	stop    chan struct{}
}

func New(ctx context.Context, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Hub.SweepInterval == 0 {
		opts.Hub.SweepInterval = 500 * time.Millisecond
	}
	if opts.Hub.Logger == nil {
		opts.Hub.Logger = opts.Logger
	}
	s := &Server{opts: opts, log: opts.Logger, stop: make(chan struct{})}
	userHook := opts.Hub.OnShutdown
	s.opts.Hub.OnShutdown = func() {
		if userHook != nil {
			userHook()
		}
		s.requestStop()
	}
	s.Hub = NewHub(ctx, s.opts.Hub)
	s.handler = SetupRoutes(s.Hub, opts.Routes, opts.Logger)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) requestStop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Run serves until ctx ends or a client requests shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.handler}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.opts.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.stop:
			s.log.Info("shutdown requested by client")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		_ = s.Hub.Send(Shutdown{})
		select {
		case <-s.Hub.Done():
		case <-shutdownCtx.Done():
			err = multierr.Append(err, fmt.Errorf("hub did not stop: %w", shutdownCtx.Err()))
		}
		return err
	})

	return g.Wait()
}
