package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"wallet-custody/internal/app"
	"wallet-custody/internal/handler"
	"wallet-custody/internal/server"
	"wallet-custody/pkg/config"
	"wallet-custody/pkg/logger"
)

func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. 组装依赖 (服务端无法交互确认无线设备，prompter 为 nil)
	a, err := app.New(ctx, &config.Global, nil)
	if err != nil {
		logger.Fatal("初始化失败", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("关闭资源失败", zap.Error(err))
		}
	}()

	// 3. 后台对账
	go func() {
		if err := a.Reconciler.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("对账任务退出", zap.Error(err))
		}
	}()

	// 4. HTTP 路由
	router := server.NewHTTPRouter(server.Handlers{
		Wallet: handler.NewWalletHandler(a.Dispatcher, a.Reconciler, a.Vault, a.Records),
		Keys:   handler.NewKeyHandler(a.Vault),
	})

	logger.Info("wallet-server 启动", zap.String("port", config.Global.App.HttpPort))
	if err := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, router).Run(ctx); err != nil {
		logger.Error("HTTP 服务异常退出", zap.Error(err))
	}
}
