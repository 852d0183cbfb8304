package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig              `mapstructure:"app"`
	Chains    map[string]ChainConfig `mapstructure:"chains"`
	Tron      TronConfig             `mapstructure:"tron"`
	Hardware  HardwareConfig         `mapstructure:"hardware"`
	Vault     VaultConfig            `mapstructure:"vault"`
	DB        DBConfig               `mapstructure:"db"`
	Redis     RedisConfig            `mapstructure:"redis"`
	Kafka     KafkaConfig            `mapstructure:"kafka"`
	MQ        MQConfig               `mapstructure:"mq"`
	Reconcile ReconcileConfig        `mapstructure:"reconcile"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	// KeyStore: "memory", "file" or "redis"
	KeyStore string `mapstructure:"key_store"`
	// KeyStorePath / KeyStoreSecret 仅 file 模式使用，secret 建议走环境变量 APP_KEY_STORE_SECRET
	KeyStorePath   string `mapstructure:"key_store_path"`
	KeyStoreSecret string `mapstructure:"key_store_secret"`
	// Records: "memory" or "postgres"
	Records string `mapstructure:"records"`
}

// ChainConfig 单条链的节点配置，key 为小写链符号 (eth, bsc, polygon, avax, tron)
type ChainConfig struct {
	RpcUrl  string `mapstructure:"rpc_url"`
	Enabled bool   `mapstructure:"enabled"`
}

// TronConfig 波场 HTTP 节点及资源定价
type TronConfig struct {
	ApiUrl            string `mapstructure:"api_url"`
	ApiKey            string `mapstructure:"api_key"`
	RequestsPerSecond int    `mapstructure:"requests_per_second"`
	BandwidthPrice    int64  `mapstructure:"bandwidth_price"` // sun / bandwidth point
	EnergyPrice       int64  `mapstructure:"energy_price"`    // sun / energy unit
	ActivationFee     int64  `mapstructure:"activation_fee"`  // sun
	FeeLimit          int64  `mapstructure:"fee_limit"`       // sun, TRC20 调用上限
}

type HardwareConfig struct {
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
	UsbOpenRetries   int           `mapstructure:"usb_open_retries"`
}

type VaultConfig struct {
	ScryptN int `mapstructure:"scrypt_n"`
}

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
}

// DSN 拼接 postgres 连接串
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.Host, c.User, c.Password, c.Name, c.Port)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

type MQConfig struct {
	Type  string `mapstructure:"type"` // "none", "redis" or "kafka"
	Topic string `mapstructure:"topic"`
}

type ReconcileConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	Confirmations uint64        `mapstructure:"confirmations"`
}

var Global Config

// Init 读取配置到 Global，失败直接退出进程
func Init() {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Fatal error config file: %s \n", err)
	}
	Global = *cfg
	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load 从 ./config.yaml、./config/config.yaml 及环境变量加载配置
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// 环境变量设置
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		log.Printf("Warning: Config file not found, using defaults and environment variables")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.key_store", "memory")
	v.SetDefault("app.records", "memory")
	v.SetDefault("app.key_store_path", "./wallet.keystore")
	v.SetDefault("app.key_store_secret", "")

	v.SetDefault("chains.eth.rpc_url", "https://cloudflare-eth.com")
	v.SetDefault("chains.eth.enabled", true)
	v.SetDefault("chains.bsc.rpc_url", "https://bsc-dataseed.binance.org")
	v.SetDefault("chains.bsc.enabled", true)
	v.SetDefault("chains.polygon.rpc_url", "https://polygon-rpc.com")
	v.SetDefault("chains.polygon.enabled", true)
	v.SetDefault("chains.avax.rpc_url", "https://api.avax.network/ext/bc/C/rpc")
	v.SetDefault("chains.avax.enabled", true)
	v.SetDefault("chains.tron.enabled", true)

	v.SetDefault("tron.api_url", "https://api.trongrid.io")
	v.SetDefault("tron.requests_per_second", 10)
	v.SetDefault("tron.bandwidth_price", 1000)
	v.SetDefault("tron.energy_price", 420)
	v.SetDefault("tron.activation_fee", 1100000)
	v.SetDefault("tron.fee_limit", 100000000)

	v.SetDefault("hardware.discovery_timeout", 30*time.Second)
	v.SetDefault("hardware.usb_open_retries", 1)

	v.SetDefault("vault.scrypt_n", 1<<15)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "wallet_user")
	v.SetDefault("db.password", "wallet_password")
	v.SetDefault("db.name", "wallet_db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})

	v.SetDefault("mq.type", "none")
	v.SetDefault("mq.topic", "wallet_events_tx_sent")

	v.SetDefault("reconcile.interval", 15*time.Second)
	v.SetDefault("reconcile.confirmations", 12)
}
