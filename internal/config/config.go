package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8080
}

// MailConfig 定义别名邮件服务的核心业务配置
type MailConfig struct {
	Domain          string // 别名地址所用域名，如 "veil.email"
	ForwardSender   string // 转发副本的信封发件人本地名，默认 "noreply"
	WebhookMaxPerIP int    // 入站 webhook 单 IP 每小时最大调用数
}

// RelayConfig 定义外发投递通道配置
type RelayConfig struct {
	Provider  string  // 通道类型: "ses"、"smtp" 或 "stdout"（开发）
	PerSecond float64 // 投递限速，每秒封数
	Burst     int     // 限速突发容量

	SESRegion          string
	SESAccessKeyID     string
	SESSecretAccessKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 启用彩色输出和详细堆栈信息
	LogFile     string // 日志文件路径，留空只输出到控制台
}

// DatabaseConfig 定义数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// JWTConfig 定义 JWT 认证相关配置
type JWTConfig struct {
	Secret        string        // JWT 签名密钥，必须至少 32 字符
	Issuer        string        // JWT 签发者标识，默认 "mailveil"
	AccessExpiry  time.Duration // 访问令牌有效期，默认 15 分钟
	RefreshExpiry time.Duration // 刷新令牌有效期，默认 7 天
}

// BillingConfig 定义套餐升级支付配置（Stripe）
type BillingConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	ProPriceID          string // Pro 套餐对应的 Stripe Price
	SuccessURL          string
	CancelURL           string
}

// Config 是系统核心配置的根结构体，包含所有子系统的配置
type Config struct {
	Server   ServerConfig
	Mail     MailConfig
	Relay    RelayConfig
	CORS     CORSConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Billing  BillingConfig
}

// Load 从环境变量和 .env 文件加载系统配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量（最高优先级）
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: MAILVEIL_
// 例如: MAILVEIL_MAIL_DOMAIN, MAILVEIL_JWT_SECRET
func Load() (*Config, error) {
	// 尝试加载 .env 文件（静默失败，因为 .env 文件是可选的）
	loadEnvFile()

	viper.SetEnvPrefix("mailveil")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mail.domain", "")
	viper.SetDefault("mail.forward_sender", "noreply")
	viper.SetDefault("mail.webhook_max_per_ip", 600)
	viper.SetDefault("relay.provider", "stdout")
	viper.SetDefault("relay.per_second", 10)
	viper.SetDefault("relay.burst", 20)
	viper.SetDefault("relay.ses_region", "us-east-1")
	viper.SetDefault("relay.smtp_port", 587)
	viper.SetDefault("cors.allowed_origins", "*")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存存储
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.issuer", "mailveil")
	viper.SetDefault("jwt.access_expiry", "15m")
	viper.SetDefault("jwt.refresh_expiry", "168h")

	mailDomain := strings.ToLower(strings.TrimSpace(viper.GetString("mail.domain")))
	if mailDomain == "" {
		return nil, fmt.Errorf("mail.domain must not be empty (set MAILVEIL_MAIL_DOMAIN)")
	}

	relayProvider := viper.GetString("relay.provider")
	switch relayProvider {
	case "ses", "smtp", "stdout":
	default:
		return nil, fmt.Errorf("invalid relay.provider %q (supported: ses, smtp, stdout)", relayProvider)
	}

	corsOrigins := parseList(viper.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	accessExpiry, err := time.ParseDuration(viper.GetString("jwt.access_expiry"))
	if err != nil {
		accessExpiry = 15 * time.Minute
	}

	refreshExpiry, err := time.ParseDuration(viper.GetString("jwt.refresh_expiry"))
	if err != nil {
		refreshExpiry = 7 * 24 * time.Hour
	}

	jwtSecret := viper.GetString("jwt.secret")

	// 安全检查：禁止使用默认的 JWT secret
	if jwtSecret == "change-me-in-production" {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret cannot be the default value. Please set MAILVEIL_JWT_SECRET environment variable")
	}
	if len(jwtSecret) < 32 {
		return nil, fmt.Errorf("SECURITY ERROR: JWT secret must be at least 32 characters long")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: viper.GetString("server.host"),
			Port: viper.GetInt("server.port"),
		},
		Mail: MailConfig{
			Domain:          mailDomain,
			ForwardSender:   viper.GetString("mail.forward_sender"),
			WebhookMaxPerIP: viper.GetInt("mail.webhook_max_per_ip"),
		},
		Relay: RelayConfig{
			Provider:           relayProvider,
			PerSecond:          viper.GetFloat64("relay.per_second"),
			Burst:              viper.GetInt("relay.burst"),
			SESRegion:          viper.GetString("relay.ses_region"),
			SESAccessKeyID:     viper.GetString("relay.ses_access_key_id"),
			SESSecretAccessKey: viper.GetString("relay.ses_secret_access_key"),
			SMTPHost:           viper.GetString("relay.smtp_host"),
			SMTPPort:           viper.GetInt("relay.smtp_port"),
			SMTPUsername:       viper.GetString("relay.smtp_username"),
			SMTPPassword:       viper.GetString("relay.smtp_password"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			LogFile:     viper.GetString("log.file"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:        jwtSecret,
			Issuer:        viper.GetString("jwt.issuer"),
			AccessExpiry:  accessExpiry,
			RefreshExpiry: refreshExpiry,
		},
		Billing: BillingConfig{
			StripeSecretKey:     viper.GetString("billing.stripe_secret_key"),
			StripeWebhookSecret: viper.GetString("billing.stripe_webhook_secret"),
			ProPriceID:          viper.GetString("billing.pro_price_id"),
			SuccessURL:          viper.GetString("billing.success_url"),
			CancelURL:           viper.GetString("billing.cancel_url"),
		},
	}

	return cfg, nil
}

// loadEnvFile 查找并加载 .env 文件
func loadEnvFile() {
	candidates := []string{".env"}
	if wd, err := os.Getwd(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(wd), ".env"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// parseList 解析逗号分隔的配置项列表
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
