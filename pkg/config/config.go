package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Tracking  TrackingConfig
	Sendgrid  SendgridConfig
	Email     EmailConfig
	Export    ExportConfig
	RateLimit RateLimitConfig
	Quotes    QuotesConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env      string `envconfig:"ATLAS_APP_ENV" required:"true"`
	Port     string `envconfig:"ATLAS_APP_PORT" required:"true"`
	LogLevel string `envconfig:"ATLAS_LOG_LEVEL" default:"info"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"ATLAS_DB_DSN"`

	Host     string `envconfig:"ATLAS_DB_HOST"`
	Port     int    `envconfig:"ATLAS_DB_PORT" default:"5432"`
	User     string `envconfig:"ATLAS_DB_USER"`
	Password string `envconfig:"ATLAS_DB_PASSWORD"`
	Name     string `envconfig:"ATLAS_DB_NAME"`
	SSLMode  string `envconfig:"ATLAS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ATLAS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ATLAS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ATLAS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ATLAS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ATLAS_REDIS_URL" required:"true"`
	PoolSize     int           `envconfig:"ATLAS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ATLAS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ATLAS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ATLAS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ATLAS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ATLAS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ATLAS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ATLAS_JWT_EXPIRATION_MINUTES" default:"60"`
}

// TrackingConfig drives the signed click-token service and its redirects.
type TrackingConfig struct {
	Secret        string        `envconfig:"ATLAS_TRACKING_SECRET" required:"true"`
	PublicBaseURL string        `envconfig:"ATLAS_TRACKING_PUBLIC_BASE_URL" default:"https://quotes.atlastravel.example"`
	TokenTTL      time.Duration `envconfig:"ATLAS_TRACKING_TOKEN_TTL" default:"720h"`
	InterestURL   string        `envconfig:"ATLAS_TRACKING_INTEREST_URL" default:"https://www.atlastravel.example/holidays/interested"`
	FallbackURL   string        `envconfig:"ATLAS_TRACKING_FALLBACK_URL" default:"https://www.atlastravel.example/enquiries"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"ATLAS_SENDGRID_API_KEY"`
	BaseURL     string `envconfig:"ATLAS_SENDGRID_BASE_URL" default:"https://api.sendgrid.com"`
	DefaultFrom string `envconfig:"ATLAS_SENDGRID_FROM_EMAIL" default:"quotes@atlastravel.example"`
}

type EmailConfig struct {
	SendTimeout   time.Duration `envconfig:"ATLAS_EMAIL_SEND_TIMEOUT" default:"10s"`
	RetryAttempts int           `envconfig:"ATLAS_EMAIL_RETRY_ATTEMPTS" default:"3"`
}

type ExportConfig struct {
	MaxRecords int `envconfig:"ATLAS_EXPORT_MAX_RECORDS" default:"10000"`
}

type RateLimitConfig struct {
	TrackingWindow  time.Duration `envconfig:"ATLAS_RATE_LIMIT_TRACKING_WINDOW" default:"1m"`
	TrackingIPLimit int           `envconfig:"ATLAS_RATE_LIMIT_TRACKING_IP_LIMIT" default:"30"`
}

type QuotesConfig struct {
	ValidityWindow time.Duration `envconfig:"ATLAS_QUOTE_VALIDITY_WINDOW" default:"720h"`
	ExpirySweep    time.Duration `envconfig:"ATLAS_QUOTE_EXPIRY_SWEEP_INTERVAL" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"ATLAS_DB_HOST": db.Host,
		"ATLAS_DB_USER": db.User,
		"ATLAS_DB_NAME": db.Name,
	}
	for _, key := range []string{"ATLAS_DB_HOST", "ATLAS_DB_USER", "ATLAS_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either ATLAS_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}
	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
