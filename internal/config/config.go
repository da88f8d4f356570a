package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
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
	Transaction  string `mapstructure:"transaction"`  // 余额变动事件
	Reconcile    string `mapstructure:"reconcile"`    // 待补偿流水（仅内部消费，不投递到 Kafka）
	Compensation string `mapstructure:"compensation"` // 待补偿资金（仅内部消费，不投递到 Kafka）
}

// LedgerConfig 账本核心参数
type LedgerConfig struct {
	MaxRetryCount       int `mapstructure:"max_retry_count"`       // 乐观锁冲突的最大重试次数
	RecentHistoryLimit  int `mapstructure:"recent_history_limit"`  // 操作结果附带的最近流水条数
	AccountNoMaxAttempt int `mapstructure:"account_no_max_attempt"` // 账号生成碰撞后的最大重试次数
}

type OutboxConfig struct {
	IntervalMillis int `mapstructure:"interval_millis"`
	BatchSize      int `mapstructure:"batch_size"`
	MaxRetryCount  int `mapstructure:"max_retry_count"`
}

type ReconcilerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchSize       int `mapstructure:"batch_size"`
	MaxRetryCount   int `mapstructure:"max_retry_count"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("ledger.max_retry_count", 5)
	viper.SetDefault("ledger.recent_history_limit", 5)
	viper.SetDefault("ledger.account_no_max_attempt", 10)
	viper.SetDefault("outbox.interval_millis", 100)
	viper.SetDefault("outbox.batch_size", 100)
	viper.SetDefault("outbox.max_retry_count", 5)
	viper.SetDefault("reconciler.interval_seconds", 10)
	viper.SetDefault("reconciler.batch_size", 100)
	viper.SetDefault("reconciler.max_retry_count", 5)

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
