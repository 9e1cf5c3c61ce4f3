package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ziggly-wallet/pkg/logger"
)

type Config struct {
	HttpPort string
}

// App HTTP 服务 + 一组后台任务, 收到信号后按顺序关闭
type App struct {
	httpServer *http.Server
	background []func(ctx context.Context) error
	shutdown   []func()
}

func New(cfg Config, httpHandler http.Handler) *App {
	return &App{
		httpServer: &http.Server{
			Addr:              ":" + cfg.HttpPort,
			Handler:           httpHandler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Go 注册后台任务 (MQ 消费等), ctx 在关闭时取消
func (a *App) Go(fn func(ctx context.Context) error) {
	a.background = append(a.background, fn)
}

// OnShutdown HTTP 停止后按注册的逆序执行
func (a *App) OnShutdown(fn func()) {
	a.shutdown = append(a.shutdown, fn)
}

// Run 启动服务并阻塞，直到收到关闭信号
func (a *App) Run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	a.run(ctx)
}

func (a *App) run(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 后台任务
	for _, fn := range a.background {
		go func() {
			if err := fn(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task stopped", zap.Error(err))
			}
		}()
	}

	// 2. Start HTTP
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP Server", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 3. 阻塞直到信号或启动失败
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("HTTP Server failure", zap.Error(err))
	}
	logger.Info("Shutting down server...")

	// 4. Graceful Shutdown
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP Server forced to shutdown", zap.Error(err))
	}
	cancel()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
	logger.Info("Server exited properly")
}
