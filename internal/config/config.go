package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig     `yaml:"server"`
	Database      DatabaseConfig   `yaml:"database"`
	Redis         RedisConfig      `yaml:"redis"`
	Auth          AuthConfig       `yaml:"auth"`
	AWS           AWSConfig        `yaml:"aws"`
	Email         EmailConfig      `yaml:"email"`
	Assets        AssetsConfig     `yaml:"assets"`
	Audit         AuditConfig      `yaml:"audit"`
	Moderation    ModerationConfig `yaml:"moderation"`
	Logging       LoggingConfig    `yaml:"logging"`
	Worker        WorkerConfig     `yaml:"worker"`
	Dashboard     DashboardConfig  `yaml:"dashboard"`
	PublicBaseURL string           `yaml:"public_base_url"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                   int      `yaml:"port"`
	Host                   string   `yaml:"host"`
	AllowedOrigins         []string `yaml:"allowed_origins"`
	ShutdownTimeoutSeconds int      `yaml:"shutdown_timeout_seconds"`
	// TrustedProxies lists the CIDRs (or bare IPs) of load balancers whose
	// X-Forwarded-For and X-Real-IP headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ProxyNets parses TrustedProxies.
func (c ServerConfig) ProxyNets() ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("trusted proxy %q is not an IP or CIDR", p)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", p, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// Addr returns host:port for net/http.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ShutdownTimeout returns the graceful shutdown window.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string `yaml:"url"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_minutes"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis;
// sessions then live in process memory and locks fall back to Postgres.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds session and Google SSO configuration
type AuthConfig struct {
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
	CookieSecure       bool   `yaml:"cookie_secure"`
	LoginPerMinute     int    `yaml:"login_per_minute"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	GoogleRedirectURL  string `yaml:"google_redirect_url"`
	AllowedDomain      string `yaml:"allowed_domain"`
}

// SessionTTL returns the cookie lifetime.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.CookieMaxAge) * time.Second
}

// GoogleEnabled reports whether staff SSO is configured.
func (c AuthConfig) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// AWSConfig holds the shared SDK settings
type AWSConfig struct {
	Region  string `yaml:"region"`
	Profile string `yaml:"profile"` // empty uses the default credential chain
	// Static keys override the profile and the default chain when both are set.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StaticCredentials reports whether explicit keys are configured.
func (c AWSConfig) StaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// GetProfile returns the profile to load, honoring ECS/Lambda role detection.
func (c AWSConfig) GetProfile() string {
	if v := os.Getenv("AWS_PROFILE_OVERRIDE"); v != "" {
		if v == "none" || v == "iam" {
			return ""
		}
		return v
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	QueueURL       string `yaml:"queue_url"`
	SendTimeoutSec int    `yaml:"send_timeout_seconds"`
}

// SESEnabled reports whether a verified sender is configured.
func (c EmailConfig) SESEnabled() bool { return c.FromEmail != "" }

// SendTimeout bounds inline delivery.
func (c EmailConfig) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSec) * time.Second
}

// AssetsConfig holds S3/CloudFront settings for logos and images
type AssetsConfig struct {
	Bucket         string `yaml:"bucket"`
	CDNDomain      string `yaml:"cdn_domain"`
	DistributionID string `yaml:"distribution_id"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	ResizeWidth    int    `yaml:"resize_width"`
}

// AuditConfig holds the DynamoDB audit table. Empty disables auditing.
type AuditConfig struct {
	Table string `yaml:"table"`
}

// ModerationConfig holds the optional Bedrock pre-screen
type ModerationConfig struct {
	Enabled bool   `yaml:"enabled"`
	ModelID string `yaml:"model_id"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// WorkerConfig holds cron specs for background jobs
type WorkerConfig struct {
	CouponExpiry       string `yaml:"coupon_expiry"`
	TaskReminders      string `yaml:"task_reminders"`
	FeedImport         string `yaml:"feed_import"`
	NotificationPurge  string `yaml:"notification_purge"`
	NotificationMaxAge int    `yaml:"notification_max_age_days"`
	LockTTLSeconds     int    `yaml:"lock_ttl_seconds"`
}

// LockTTL is how long a job lock may be held.
func (c WorkerConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DashboardConfig holds cache settings for dashboard aggregates
type DashboardConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the dashboard cache lifetime.
func (c DashboardConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.ShutdownTimeoutSeconds == 0 {
		cfg.Server.ShutdownTimeoutSeconds = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 30
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "lp_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 7 * 24 * 3600
	}
	if cfg.Auth.LoginPerMinute == 0 {
		cfg.Auth.LoginPerMinute = 5
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "eu-west-1"
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "La Pública"
	}
	if cfg.Email.SendTimeoutSec == 0 {
		cfg.Email.SendTimeoutSec = 15
	}
	if cfg.Assets.MaxUploadBytes == 0 {
		cfg.Assets.MaxUploadBytes = 5 << 20
	}
	if cfg.Assets.ResizeWidth == 0 {
		cfg.Assets.ResizeWidth = 256
	}
	if cfg.Moderation.ModelID == "" {
		cfg.Moderation.ModelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Worker.CouponExpiry == "" {
		cfg.Worker.CouponExpiry = "*/10 * * * *"
	}
	if cfg.Worker.TaskReminders == "" {
		cfg.Worker.TaskReminders = "*/5 * * * *"
	}
	if cfg.Worker.FeedImport == "" {
		cfg.Worker.FeedImport = "0 * * * *"
	}
	if cfg.Worker.NotificationPurge == "" {
		cfg.Worker.NotificationPurge = "30 3 * * *"
	}
	if cfg.Worker.NotificationMaxAge == 0 {
		cfg.Worker.NotificationMaxAge = 90
	}
	if cfg.Worker.LockTTLSeconds == 0 {
		cfg.Worker.LockTTLSeconds = 300
	}
	if cfg.Dashboard.CacheTTLSeconds == 0 {
		cfg.Dashboard.CacheTTLSeconds = 60
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost:3000"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first so secrets can live in .env
// locally and in real env vars when deployed.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		env string
		dst *string
	}{
		{"DATABASE_URL", &cfg.Database.URL},
		{"REDIS_URL", &cfg.Redis.URL},
		{"SESSION_SECRET", &cfg.Auth.SessionSecret},
		{"GOOGLE_CLIENT_ID", &cfg.Auth.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.Auth.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &cfg.Auth.GoogleRedirectURL},
		{"AUTH_ALLOWED_DOMAIN", &cfg.Auth.AllowedDomain},
		{"AWS_REGION", &cfg.AWS.Region},
		{"LP_AWS_ACCESS_KEY_ID", &cfg.AWS.AccessKeyID},
		{"LP_AWS_SECRET_ACCESS_KEY", &cfg.AWS.SecretAccessKey},
		{"SES_FROM_EMAIL", &cfg.Email.FromEmail},
		{"EMAIL_QUEUE_URL", &cfg.Email.QueueURL},
		{"ASSETS_BUCKET", &cfg.Assets.Bucket},
		{"ASSETS_CDN_DOMAIN", &cfg.Assets.CDNDomain},
		{"CLOUDFRONT_DISTRIBUTION_ID", &cfg.Assets.DistributionID},
		{"AUDIT_TABLE", &cfg.Audit.Table},
		{"PUBLIC_BASE_URL", &cfg.PublicBaseURL},
		{"LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("MODERATION_ENABLED"); v != "" {
		cfg.Moderation.Enabled = v == "true" || v == "1"
	}

	return cfg, nil
}

// Validate reports configuration that would prevent the server from starting.
func (cfg *Config) Validate() error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url (or DATABASE_URL) is required")
	}
	if _, err := cfg.Server.ProxyNets(); err != nil {
		return err
	}
	if cfg.Auth.GoogleEnabled() && cfg.Auth.AllowedDomain == "" {
		return fmt.Errorf("auth.allowed_domain is required when Google SSO is configured")
	}
	return nil
}
