package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"time"

	"go.uber.org/config"
)

type Config struct {
	Service      ServiceConfig           `yaml:"service"`
	HTTP         HTTPConfig              `yaml:"http"`
	GRPC         GRPCConfig              `yaml:"grpc"`
	Storage      StorageConfig           `yaml:"storage"`
	Database     DatabaseConfig          `yaml:"database"`
	Redis        RedisConfig             `yaml:"redis"`
	Kafka        KafkaConfig             `yaml:"kafka"`
	SMTP         SMTPConfig              `yaml:"smtp"`
	Telegram     TelegramConfig          `yaml:"telegram"`
	Reminders    RemindersConfig         `yaml:"reminders"`
	Scheduler    SchedulerConfig         `yaml:"scheduler"`
	WeeklyReport WeeklyReportConfig      `yaml:"weekly_report"`
	Timezone     string                  `yaml:"timezone"`
	Slots        map[string][]SlotConfig `yaml:"slots"`
	// weekday expression -> "HH:MM" -> slot id
	Rotation map[string]map[string]string `yaml:"rotation"`
	Logging  LoggingConfig                `yaml:"logging"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type HTTPConfig struct {
	Port               int      `yaml:"port"`
	ReadTimeout        int      `yaml:"read_timeout"`
	WriteTimeout       int      `yaml:"write_timeout"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	// Proxy IPs or CIDRs whose X-Forwarded-For / X-Real-IP headers are believed
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type GRPCConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// StorageConfig selects the task store: sqlite, postgres or memory
type StorageConfig struct {
	Driver     string `yaml:"driver"`
	SQLitePath string `yaml:"sqlite_path"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	DedupTTL     time.Duration `yaml:"dedup_ttl"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
}

type SMTPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	UseTLS    bool   `yaml:"use_tls"`

	// Directory holding weekly_report.html; the built-in template is used when absent
	TemplatesPath string `yaml:"templates_path"`
}

type TelegramConfig struct {
	BotToken      string        `yaml:"bot_token"`
	APIURL        string        `yaml:"api_url"`
	WebhookSecret string        `yaml:"webhook_secret"`
	Timeout       time.Duration `yaml:"timeout"`
	// Max total time spent retrying a failed send
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
	Users           []UserConfig  `yaml:"users"`
}

type UserConfig struct {
	ChatID string `yaml:"chat_id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
}

type RemindersConfig struct {
	TimeoutMinutes int `yaml:"timeout_minutes"`
	// Unset means 10; 0 turns snoozing off
	SnoozeMinutes   *int `yaml:"snooze_minutes"`
	NotifyOnTimeout bool `yaml:"notify_on_timeout"`
}

type SchedulerConfig struct {
	Enabled       bool          `yaml:"enabled"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

type WeeklyReportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DayOfWeek string `yaml:"day_of_week"`
	Time      string `yaml:"time"`
}

type SlotConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Exercise string `yaml:"exercise"`
	Reps     string `yaml:"reps"`
	Image    string `yaml:"image"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load loads configuration from YAML file with environment variable overrides
func Load() (*Config, error) {
	return LoadFile(getEnv("CONFIG_PATH", "./config/base.yaml"))
}

// LoadFile loads and validates configuration from the given YAML file
func LoadFile(configPath string) (*Config, error) {
	provider, err := config.NewYAML(
		config.File(configPath),
		config.Expand(os.LookupEnv),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	var cfg Config
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("failed to populate config: %w", err)
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables if present
func (c *Config) overrideFromEnv() {
	if val := os.Getenv("SERVICE_NAME"); val != "" {
		c.Service.Name = val
	}
	if val := os.Getenv("SERVICE_ENVIRONMENT"); val != "" {
		c.Service.Environment = val
	}
	if val := os.Getenv("HTTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.HTTP.Port)
	}
	if val := os.Getenv("TIMEZONE"); val != "" {
		c.Timezone = val
	}
	if val := os.Getenv("STORAGE_DRIVER"); val != "" {
		c.Storage.Driver = val
	}
	if val := os.Getenv("SQLITE_PATH"); val != "" {
		c.Storage.SQLitePath = val
	}
	if val := os.Getenv("DATABASE_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DATABASE_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DATABASE_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DATABASE_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DATABASE_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DATABASE_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("KAFKA_BROKER"); val != "" {
		c.Kafka.Brokers = []string{val}
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.SMTP.Host = val
	}
	if val := os.Getenv("SMTP_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.SMTP.Port)
	}
	if val := os.Getenv("SMTP_USERNAME"); val != "" {
		c.SMTP.Username = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.SMTP.Password = val
	}
	if val := os.Getenv("SMTP_USE_TLS"); val != "" {
		if useTLS, err := strconv.ParseBool(val); err == nil {
			c.SMTP.UseTLS = useTLS
		}
	}
	if val := os.Getenv("TELEGRAM_BOT_TOKEN"); val != "" {
		c.Telegram.BotToken = val
	}
	if val := os.Getenv("TELEGRAM_WEBHOOK_SECRET"); val != "" {
		c.Telegram.WebhookSecret = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "reminder-service"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8001
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10
	}
	if c.HTTP.RateLimitPerMinute == 0 {
		c.HTTP.RateLimitPerMinute = 120
	}
	if c.GRPC.Port == 0 {
		c.GRPC.Port = 50061
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "sqlite"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "./reminders.db"
	}
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Redis.DedupTTL == 0 {
		c.Redis.DedupTTL = 24 * time.Hour
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "reminder-task-events"
	}
	if c.Telegram.APIURL == "" {
		c.Telegram.APIURL = "https://api.telegram.org"
	}
	if c.Telegram.Timeout == 0 {
		c.Telegram.Timeout = 15 * time.Second
	}
	if c.Telegram.RetryMaxElapsed == 0 {
		c.Telegram.RetryMaxElapsed = time.Minute
	}
	if c.Reminders.TimeoutMinutes == 0 {
		c.Reminders.TimeoutMinutes = 60
	}
	if c.Reminders.SnoozeMinutes == nil {
		snooze := 10
		c.Reminders.SnoozeMinutes = &snooze
	}
	if c.Scheduler.SweepInterval == 0 {
		c.Scheduler.SweepInterval = time.Minute
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// TrustedProxyPrefixes parses trusted_proxies; a bare IP becomes a single-address prefix
func (c *HTTPConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, raw := range c.TrustedProxies {
		if prefix, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q", raw)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// CallbackTimeout bounds webhook processing so the reply is written before WriteTimeout
func (c *HTTPConfig) CallbackTimeout() time.Duration {
	write := time.Duration(c.WriteTimeout) * time.Second
	return write * 4 / 5
}

// TimeoutWindow returns the reminder response window
func (c *RemindersConfig) TimeoutWindow() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// SnoozeDuration returns how far a snooze pushes the deadline
func (c *RemindersConfig) SnoozeDuration() time.Duration {
	if c.SnoozeMinutes == nil {
		return 0
	}
	return time.Duration(*c.SnoozeMinutes) * time.Minute
}

// GetDSN returns PostgreSQL connection string in URL format for pgx/v5
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
