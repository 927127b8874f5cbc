package main

import (
	"go.uber.org/zap"

	"payout-core/internal/bootstrap"
	"payout-core/internal/model"
	"payout-core/internal/server"
	"payout-core/pkg/config"
	"payout-core/pkg/logger"
)

// @title Payout Core API
// @version 1.0
// @description Creator wallets, platform fees and automated creator payouts.

// @host localhost:8080
// @BasePath /
func main() {
	// 0. 初始化 Config
	config.Init()

	// 1. 初始化 Logger
	logger.Init(config.Global.App.Env)
	defer logger.Sync()

	// 2. 组装存储 / 网关 / 服务
	c, err := bootstrap.New(config.Global)
	if err != nil {
		logger.Fatal("初始化失败", zap.Error(err))
	}
	defer c.Close()

	// 3. 开发环境自动迁移，生产环境使用 cmd/migrate
	if c.DB != nil && config.Global.App.Env == "development" {
		logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
		if err := c.DB.AutoMigrate(model.AllModels()...); err != nil {
			logger.Fatal("数据库自动迁移失败", zap.Error(err))
		}
	}

	// 4. HTTP + cron + relay + consumer
	r := server.NewHTTPRouter(c.Handlers())
	app := server.New(server.Config{HttpPort: config.Global.App.HttpPort}, r, c.Background()...)

	// 运行 (阻塞)
	if err := app.Run(); err != nil {
		logger.Error("服务异常退出", zap.Error(err))
	}
	logger.Info("系统已退出")
}
