// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"glimmer/internal/pkg/logger"
)

const defaultConfigFile = "configs/checkout.yaml"

// Config 是所有服务共享的配置结构，来源依次为：默认值 -> YAML 文件 -> 环境变量。
type Config struct {
	App      AppConfig      `yaml:"app"`
	Infra    InfraConfig    `yaml:"infra"`
	Checkout CheckoutConfig `yaml:"checkout"`
	Auth     AuthConfig     `yaml:"auth"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

type InfraConfig struct {
	Jaeger    JaegerConfig    `yaml:"jaeger"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Nacos     NacosConfig     `yaml:"nacos"`
	Zookeeper ZookeeperConfig `yaml:"zookeeper"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type MySQLConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Database    string `yaml:"database"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// DSN 使用 mysql 驱动自带的 Config 生成连接串，避免手工拼接转义问题。
func (c MySQLConfig) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

type RedisConfig struct {
	Addrs    string `yaml:"addrs"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers       string `yaml:"brokers"`
	OrderTopic    string `yaml:"order_topic"`
	ConsumerGroup string `yaml:"consumer_group"`
}

// BrokerList 把逗号分隔的 broker 地址拆成切片
func (c KafkaConfig) BrokerList() []string {
	return splitList(c.Brokers)
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"server_addrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type ZookeeperConfig struct {
	Servers        string        `yaml:"servers"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
}

func (c ZookeeperConfig) ServerList() []string {
	return splitList(c.Servers)
}

type CheckoutConfig struct {
	SessionTTL     time.Duration         `yaml:"session_ttl"`
	CommitTimeout  time.Duration         `yaml:"commit_timeout"`
	CatalogURL     string                `yaml:"catalog_url"`
	CatalogService string                `yaml:"catalog_service"`
	RedemptionLock string                `yaml:"redemption_lock"` // none | zookeeper
	PaymentMethods []PaymentMethodConfig `yaml:"payment_methods"`
}

type PaymentMethodConfig struct {
	Code    string `yaml:"code"`
	Label   string `yaml:"label"`
	Enabled bool   `yaml:"enabled"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

var current atomic.Pointer[Config]

// GetCurrentConfig 返回 Init 加载的配置；Init 之前调用返回默认配置。
func GetCurrentConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}

// Init 加载 .env 与配置文件并初始化全局 logger。
func Init(serviceName string) *Config {
	// .env 不存在是正常情况
	_ = godotenv.Load()

	cfg, err := Load(getEnv("CONFIG_FILE", defaultConfigFile))
	if err != nil {
		logger.Init(serviceName, "info")
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.App.Name == "" {
		cfg.App.Name = serviceName
	}
	current.Store(cfg)
	logger.Init(cfg.App.Name, cfg.App.LogLevel)
	return cfg
}

// Default 返回本地开发用的默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{Port: 8080, LogLevel: "info"},
		Infra: InfraConfig{
			MySQL:     MySQLConfig{Host: "localhost", Port: 3306, User: "root", Database: "glimmer", AutoMigrate: true},
			Redis:     RedisConfig{Addrs: "localhost:6379"},
			Kafka:     KafkaConfig{Brokers: "localhost:9092", OrderTopic: "order-placed", ConsumerGroup: "order-notifier-group"},
			Nacos:     NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
			Zookeeper: ZookeeperConfig{Servers: "localhost:2181", SessionTimeout: 10 * time.Second},
		},
		Checkout: CheckoutConfig{
			SessionTTL:     30 * 24 * time.Hour,
			CommitTimeout:  15 * time.Second,
			CatalogURL:     "http://localhost:8090",
			RedemptionLock: "none",
			PaymentMethods: []PaymentMethodConfig{
				{Code: "cod", Label: "Cash on delivery", Enabled: true},
				{Code: "card", Label: "Credit / debit card", Enabled: false},
				{Code: "paypal", Label: "PayPal", Enabled: false},
			},
		},
	}
}

// Load 读取 YAML 配置文件（文件不存在时只使用默认值），再应用环境变量覆盖。
func Load(path string) (*Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("LOG_LEVEL", cfg.App.LogLevel)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Infra.MySQL.Host = getEnv("MYSQL_HOST", cfg.Infra.MySQL.Host)
	cfg.Infra.MySQL.Port = getEnvInt("MYSQL_PORT", cfg.Infra.MySQL.Port)
	cfg.Infra.MySQL.User = getEnv("MYSQL_USER", cfg.Infra.MySQL.User)
	cfg.Infra.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.Infra.MySQL.Password)
	cfg.Infra.MySQL.Database = getEnv("MYSQL_DATABASE", cfg.Infra.MySQL.Database)
	cfg.Infra.Redis.Addrs = getEnv("REDIS_ADDRS", cfg.Infra.Redis.Addrs)
	cfg.Infra.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Infra.Redis.Password)
	cfg.Infra.Kafka.Brokers = getEnv("KAFKA_BROKERS", cfg.Infra.Kafka.Brokers)
	cfg.Infra.Kafka.OrderTopic = getEnv("KAFKA_ORDER_TOPIC", cfg.Infra.Kafka.OrderTopic)
	cfg.Infra.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Infra.Nacos.ServerAddrs)
	cfg.Infra.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Infra.Nacos.Namespace)
	cfg.Infra.Nacos.Group = getEnv("NACOS_GROUP", cfg.Infra.Nacos.Group)
	cfg.Infra.Nacos.Enabled = getEnvBool("NACOS_ENABLED", cfg.Infra.Nacos.Enabled)
	cfg.Infra.Zookeeper.Servers = getEnv("ZOOKEEPER_SERVERS", cfg.Infra.Zookeeper.Servers)
	cfg.Checkout.CatalogURL = getEnv("CATALOG_URL", cfg.Checkout.CatalogURL)
	cfg.Checkout.RedemptionLock = getEnv("REDEMPTION_LOCK", cfg.Checkout.RedemptionLock)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
}

// getEnv 是一个内部辅助函数，从环境变量中读取配置。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
