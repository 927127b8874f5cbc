// Package bootstrap 按配置组装存储、网关、服务与后台组件
package bootstrap

import (
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"payout-core/internal/handler"
	"payout-core/internal/processor"
	"payout-core/internal/server"
	"payout-core/internal/service"
	"payout-core/internal/service/connect"
	"payout-core/internal/service/mq"
	"payout-core/internal/service/payout"
	"payout-core/internal/service/platform"
	"payout-core/internal/service/wallet"
	"payout-core/internal/store"
	"payout-core/internal/worker"
	"payout-core/pkg/cache"
	"payout-core/pkg/config"
	"payout-core/pkg/database"
	"payout-core/pkg/logger"
	"payout-core/pkg/utils/lock"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Container struct {
	Config config.Config

	DB    *gorm.DB      // memory 模式为 nil
	Redis *redis.Client // 未启用时为 nil

	Store   store.Store
	Gateway processor.Gateway
	Cache   cache.Cache

	Wallets  *wallet.Service
	Platform *platform.Service
	Connect  *connect.Service
	Payouts  *payout.Service
	// Cron 定时检查与手动触发共用它的锁
	Cron *service.CronService

	Producer mq.Producer
	Consumer mq.Consumer

	closers []func() error
}

// New 连接外部依赖并组装服务；失败时已打开的连接会被关闭
func New(cfg config.Config) (c *Container, err error) {
	c = &Container{Config: cfg}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	feePct := decimal.NewFromFloat(cfg.Fee.DefaultPercentage)
	loc := cfg.Payout.Location()

	if err = c.openStore(feePct); err != nil {
		return nil, err
	}
	if cfg.Redis.Enabled {
		rdb, rerr := database.ConnectRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if rerr != nil {
			return nil, rerr
		}
		c.Redis = rdb
		c.closers = append(c.closers, rdb.Close)
	}

	c.Gateway, err = processor.New(processor.Config{
		Mode:              cfg.Stripe.Mode,
		SecretKey:         cfg.Stripe.SecretKey,
		MaxNetworkRetries: cfg.Stripe.MaxNetworkRetries,
	})
	if err != nil {
		return nil, err
	}

	local := cache.NewMemoryCache(cfg.Payout.StatsCacheTTL, 10*time.Minute)
	c.Cache = local
	if c.Redis != nil {
		c.Cache = cache.NewMultiLevelCache(local, cache.NewRedisCache(c.Redis, "payout:"))
	}

	c.Wallets = wallet.NewService(c.Store, nil, cfg.Payout.DefaultCurrency)
	c.Platform = platform.NewService(c.Store, c.Gateway, c.Cache, platform.Config{
		DefaultCurrency:      cfg.Payout.DefaultCurrency,
		DefaultFeePercentage: feePct,
		ReturnURL:            cfg.Stripe.ReturnURL,
		RefreshURL:           cfg.Stripe.RefreshURL,
		StatsCacheTTL:        cfg.Payout.StatsCacheTTL,
	})
	c.Connect = connect.NewService(c.Gateway, c.Store, connect.Config{
		DefaultFeePercentage: feePct,
		PlatformAccountID:    cfg.Stripe.PlatformAccountID,
		BatchConcurrency:     cfg.Payout.BatchConcurrency,
	})
	c.Payouts = payout.NewService(c.Store, c.Connect, c.Platform, payout.Config{
		JobDeadline: cfg.Payout.JobDeadline,
		Location:    loc,
	})
	var locker lock.DistributedLock
	if c.Redis != nil {
		locker = lock.NewRedisLock(c.Redis)
	}
	c.Cron = service.NewCronService(c.Payouts, locker, cfg.Payout.CronSpec, cfg.Payout.LockTTL, loc)

	if err = c.openMQ(); err != nil {
		return nil, err
	}

	logger.Info("container ready",
		zap.String("driver", cfg.App.Driver),
		zap.String("stripe_mode", cfg.Stripe.Mode),
		zap.Bool("redis", c.Redis != nil),
		zap.String("mq", cfg.Redis.MQType))
	return c, nil
}

func (c *Container) openStore(feePct decimal.Decimal) error {
	opts := store.Options{DefaultFeePercentage: feePct}
	switch c.Config.App.Driver {
	case DriverMemory:
		c.Store = store.NewMemoryStore(opts)
		return nil
	case DriverPostgres, "":
		db, err := database.ConnectPostgres(c.Config.DB.DSN(), c.Config.App.Env)
		if err != nil {
			return err
		}
		c.DB = db
		if sqlDB, err := db.DB(); err == nil {
			c.closers = append(c.closers, sqlDB.Close)
		}
		c.Store = store.NewGormStore(db, opts)
		return nil
	default:
		return fmt.Errorf("unknown app.driver %q", c.Config.App.Driver)
	}
}

// openMQ kafka | redis streams | 进程内 (未启用 Redis 时)
func (c *Container) openMQ() error {
	switch {
	case c.Config.Redis.MQType == "kafka":
		producer := mq.NewKafkaProducer(c.Config.Kafka.Brokers)
		c.Producer = producer
		c.Consumer = mq.NewKafkaConsumer(c.Config.Kafka.Brokers, c.Config.Kafka.ConsumerGroup)
		c.closers = append(c.closers, producer.Close)
	case c.Redis != nil:
		host, _ := os.Hostname()
		c.Producer = mq.NewRedisProducer(c.Redis)
		c.Consumer = mq.NewRedisConsumer(c.Redis, c.Config.Kafka.ConsumerGroup, host)
	default:
		broker := mq.NewMemoryBroker()
		c.Producer = broker
		c.Consumer = broker
	}
	return nil
}

// Handlers HTTP 层依赖
func (c *Container) Handlers() server.Handlers {
	loc := c.Config.Payout.Location()
	return server.Handlers{
		Wallet:   handler.NewWalletHandler(c.Wallets),
		Payment:  handler.NewPaymentHandler(c.Wallets, c.Connect),
		Payout:   handler.NewPayoutHandler(c.Payouts, c.Wallets, c.Cron, loc),
		Platform: handler.NewPlatformHandler(c.Platform, c.Connect),
	}
}

// Background cron + outbox relay + 订阅付款消费者
func (c *Container) Background() []server.Background {
	return []server.Background{
		c.Cron,
		service.NewRelayService(c.Store, c.Producer),
		worker.NewSubscriptionConsumer(c.Consumer, c.Wallets, c.Config.Kafka.TopicSubscriptionPaid),
	}
}

// Close 按打开的逆序关闭
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.Warn("close resource failed", zap.Error(err))
		}
	}
	c.closers = nil
}
