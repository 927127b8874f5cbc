package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"payout-core/pkg/logger"
)

type Config struct {
	HttpPort        string
	ShutdownTimeout time.Duration
}

// Background 随 HTTP 服务一起启动 / 停止的后台组件 (cron、relay、consumer)
type Background interface {
	Start(ctx context.Context) error
	Stop()
}

type App struct {
	httpServer *http.Server
	background []Background
	timeout    time.Duration
}

func New(cfg Config, httpHandler *gin.Engine, background ...Background) *App {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		background: background,
		timeout:    cfg.ShutdownTimeout,
	}
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, b := range a.background {
		if err := b.Start(ctx); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	var runErr error
	select {
	case <-quit:
		logger.Info("Shutting down server...")
	case runErr = <-errCh:
		logger.Error("HTTP Server failure", zap.Error(runErr))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.timeout)
	defer shutdownCancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	// 先停止接收新任务，再取消后台 ctx
	for i := len(a.background) - 1; i >= 0; i-- {
		a.background[i].Stop()
	}
	cancel()

	logger.Info("Server exited properly")
	return runErr
}
