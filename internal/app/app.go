package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"infinity_stones/internal/config"
)

type App struct {
	ServiceProvider *ServiceProvider
}

func NewApp() *App {
	return &App{}
}

func (s *App) initServiceProvider() {
	s.ServiceProvider = newServiceProvider()
}

// Run поднимает HTTP сервер и воркер аудита, останавливает оба по SIGINT/SIGTERM
func (s *App) Run() error {
	err := config.Load(".env")
	if err != nil {
		log.Printf("Error loading .env file: %v", err)
	}
	s.initServiceProvider()
	defer s.ServiceProvider.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sp := s.ServiceProvider
	logger := sp.Logger()
	srv := &http.Server{
		Addr:    sp.HTTPCfg().Address(),
		Handler: sp.Router(ctx),
	}
	worker := sp.AuditWorker()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return worker.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), sp.HTTPCfg().ShutdownTimeout())
		defer cancel()

		logger.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if dropped := worker.Dropped(); dropped > 0 {
		logger.Warn("audit records dropped", zap.Int64("count", dropped))
	}
	return err
}
