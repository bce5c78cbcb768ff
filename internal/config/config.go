package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root of config/config.yaml.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Business    BusinessConfig    `mapstructure:"business"`
	Lock        LockConfig        `mapstructure:"lock"`
	Withholding WithholdingConfig `mapstructure:"withholding"`
	Pricing     PricingConfig     `mapstructure:"pricing"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN returns the go-sql-driver/mysql data source name.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents      string `mapstructure:"wallet_events"`
	ReservationEvents string `mapstructure:"reservation_events"`
}

// BusinessConfig holds the product rules of the reservation engine and the wallet.
// Amounts are in minor currency units.
type BusinessConfig struct {
	HoldDuration        time.Duration `mapstructure:"hold_duration"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize      int           `mapstructure:"sweep_batch_size"`
	DepositTimeout      time.Duration `mapstructure:"deposit_timeout"`
	ReleaseSlotOnReject bool          `mapstructure:"release_slot_on_reject"`
	MinDeposit          int64         `mapstructure:"min_deposit"`
	MaxDeposit          int64         `mapstructure:"max_deposit"`
	MinWithdraw         int64         `mapstructure:"min_withdraw"`
	Currency            string        `mapstructure:"currency"`
	MaxRetryCount       int           `mapstructure:"max_retry_count"`
	CASMaxRetries       int           `mapstructure:"cas_max_retries"`
}

type LockConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
}

// WithholdingConfig maps ISO country codes to withholding rates ("0.20" = 20%).
type WithholdingConfig struct {
	DefaultRate string            `mapstructure:"default_rate"`
	Rates       map[string]string `mapstructure:"rates"`
}

type PricingConfig struct {
	PlatformFeeRate string `mapstructure:"platform_fee_rate"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

const envPrefix = "CAMPAIGNLEDGER"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.wallet_events", "wallet-events")
	v.SetDefault("kafka.topic.reservation_events", "reservation-events")

	v.SetDefault("business.hold_duration", "72h")
	v.SetDefault("business.sweep_interval", "60s")
	v.SetDefault("business.sweep_batch_size", 200)
	v.SetDefault("business.deposit_timeout", "24h")
	v.SetDefault("business.release_slot_on_reject", false)
	v.SetDefault("business.min_deposit", 1000)
	v.SetDefault("business.max_deposit", 100000000)
	v.SetDefault("business.min_withdraw", 5000)
	v.SetDefault("business.currency", "USD")
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.cas_max_retries", 5)

	v.SetDefault("lock.ttl", "30s")
	v.SetDefault("lock.retry_interval", "100ms")
	v.SetDefault("lock.max_retries", 30)

	v.SetDefault("withholding.default_rate", "0")
	v.SetDefault("pricing.platform_fee_rate", "0.10")

	v.SetDefault("log.level", "info")
}

// LoadConfig reads the YAML file at configPath on top of the defaults.
// Values from the file are overridden by CAMPAIGNLEDGER_* environment variables,
// e.g. CAMPAIGNLEDGER_MYSQL_PASSWORD.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration built from defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) Validate() error {
	b := c.Business
	switch {
	case b.HoldDuration <= 0:
		return errors.New("business.hold_duration must be positive")
	case b.SweepInterval <= 0:
		return errors.New("business.sweep_interval must be positive")
	case b.SweepBatchSize <= 0:
		return errors.New("business.sweep_batch_size must be positive")
	case b.MinDeposit <= 0 || b.MaxDeposit < b.MinDeposit:
		return fmt.Errorf("invalid deposit range [%d, %d]", b.MinDeposit, b.MaxDeposit)
	case b.MinWithdraw <= 0:
		return errors.New("business.min_withdraw must be positive")
	case b.CASMaxRetries <= 0:
		return errors.New("business.cas_max_retries must be positive")
	case b.MaxRetryCount <= 0:
		return errors.New("business.max_retry_count must be positive")
	case b.DepositTimeout <= 0:
		return errors.New("business.deposit_timeout must be positive")
	}
	if c.Lock.MaxRetries <= 0 || c.Lock.RetryInterval <= 0 || c.Lock.TTL <= 0 {
		return errors.New("lock ttl, retry_interval and max_retries must be positive")
	}
	return nil
}
