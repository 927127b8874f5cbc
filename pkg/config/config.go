package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Stripe StripeConfig `mapstructure:"stripe"`
	Payout PayoutConfig `mapstructure:"payout"`
	Fee    FeeConfig    `mapstructure:"fee"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	Driver   string `mapstructure:"driver"` // "postgres" or "memory"
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN gorm / pgx 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

// URL golang-migrate 使用的 URL 形式
func (c DBConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
	Enabled  bool   `mapstructure:"enabled"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
	// 上游计费系统发布的订阅付款事件
	TopicSubscriptionPaid string `mapstructure:"topic_subscription_paid"`
}

type StripeConfig struct {
	Mode              string `mapstructure:"mode"` // "live" or "sandbox"
	SecretKey         string `mapstructure:"secret_key"`
	PlatformAccountID string `mapstructure:"platform_account_id"`
	ReturnURL         string `mapstructure:"return_url"`
	RefreshURL        string `mapstructure:"refresh_url"`
	MaxNetworkRetries int64  `mapstructure:"max_network_retries"`
}

type PayoutConfig struct {
	CronSpec         string        `mapstructure:"cron_spec"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
	JobDeadline      time.Duration `mapstructure:"job_deadline"`
	DefaultCurrency  string        `mapstructure:"default_currency"`
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	Timezone         string        `mapstructure:"timezone"`
	StatsCacheTTL    time.Duration `mapstructure:"stats_cache_ttl"`
}

type FeeConfig struct {
	DefaultPercentage float64 `mapstructure:"default_percentage"`
}

var Global Config

func Init() {
	// .env 可选，本地开发时覆盖环境变量
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置: STRIPE_SECRET_KEY -> stripe.secret_key
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Location 自动打款调度使用的时区
func (c PayoutConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")
	viper.SetDefault("app.driver", "postgres")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "payout_user")
	viper.SetDefault("db.password", "payout_password")
	viper.SetDefault("db.name", "payout_db")
	viper.SetDefault("db.sslmode", "disable")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")
	viper.SetDefault("redis.enabled", true)

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.consumer_group", "payout-core")
	viper.SetDefault("kafka.topic_subscription_paid", "billing.subscription_paid")

	viper.SetDefault("stripe.mode", "sandbox")
	viper.SetDefault("stripe.return_url", "http://localhost:3000/admin/platform/connect/return")
	viper.SetDefault("stripe.refresh_url", "http://localhost:3000/admin/platform/connect/refresh")
	viper.SetDefault("stripe.max_network_retries", 2)

	viper.SetDefault("payout.cron_spec", "@daily")
	viper.SetDefault("payout.lock_ttl", 30*time.Minute)
	viper.SetDefault("payout.job_deadline", 20*time.Minute)
	viper.SetDefault("payout.default_currency", "USD")
	viper.SetDefault("payout.batch_concurrency", 4)
	viper.SetDefault("payout.timezone", "UTC")
	viper.SetDefault("payout.stats_cache_ttl", time.Minute)

	viper.SetDefault("fee.default_percentage", 10.0)
}
