package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig prefix shared by every binary.
const EnvPrefix = "marketloop"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "MARKETLOOP_DB_DSN"
	EnvDBHost = "MARKETLOOP_DB_HOST"
	EnvDBUser = "MARKETLOOP_DB_USER"
	EnvDBName = "MARKETLOOP_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Carrier      CarrierConfig
	Paygate      PaygateConfig
	Orders       OrdersConfig
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
	Env          string `envconfig:"MARKETLOOP_APP_ENV" required:"true"`
	Port         string `envconfig:"MARKETLOOP_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MARKETLOOP_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MARKETLOOP_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MARKETLOOP_DB_DSN"`
	Driver string `envconfig:"MARKETLOOP_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKETLOOP_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKETLOOP_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKETLOOP_DB_USER"`
	LegacyPassword string `envconfig:"MARKETLOOP_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKETLOOP_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKETLOOP_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKETLOOP_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKETLOOP_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKETLOOP_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKETLOOP_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKETLOOP_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MARKETLOOP_REDIS_ADDR"`
	Password     string        `envconfig:"MARKETLOOP_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKETLOOP_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKETLOOP_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKETLOOP_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKETLOOP_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKETLOOP_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKETLOOP_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKETLOOP_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKETLOOP_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKETLOOP_JWT_EXP_MINS" default:"60"`
}

type RateLimitConfig struct {
	Window       time.Duration `envconfig:"MARKETLOOP_RATE_LIMIT_WINDOW" default:"1m"`
	RequestLimit int64         `envconfig:"MARKETLOOP_RATE_LIMIT_REQUESTS" default:"300"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MARKETLOOP_AUTO_MIGRATE" default:"false"`
}

// CarrierConfig targets the delivery-partner HTTP API.
type CarrierConfig struct {
	BaseURL    string        `envconfig:"MARKETLOOP_CARRIER_BASE_URL" required:"true"`
	Token      string        `envconfig:"MARKETLOOP_CARRIER_TOKEN" required:"true"`
	ShopID     string        `envconfig:"MARKETLOOP_CARRIER_SHOP_ID" required:"true"`
	Timeout    time.Duration `envconfig:"MARKETLOOP_CARRIER_TIMEOUT" default:"10s"`
	PickupName string        `envconfig:"MARKETLOOP_CARRIER_PICKUP_NAME"`
}

// PaygateConfig targets the online payment gateway.
type PaygateConfig struct {
	BaseURL   string        `envconfig:"MARKETLOOP_PAYGATE_BASE_URL" required:"true"`
	PartnerID string        `envconfig:"MARKETLOOP_PAYGATE_PARTNER_ID" required:"true"`
	SecretKey string        `envconfig:"MARKETLOOP_PAYGATE_SECRET_KEY" required:"true"`
	ReturnURL string        `envconfig:"MARKETLOOP_PAYGATE_RETURN_URL" required:"true"`
	NotifyURL string        `envconfig:"MARKETLOOP_PAYGATE_NOTIFY_URL" required:"true"`
	Timeout   time.Duration `envconfig:"MARKETLOOP_PAYGATE_TIMEOUT" default:"10s"`
	// IdempotencyTTL bounds how long a processed gateway notification id is
	// remembered for replay suppression.
	IdempotencyTTL time.Duration `envconfig:"MARKETLOOP_PAYGATE_IDEMPOTENCY_TTL" default:"168h"`
}

// OrdersConfig tunes order maintenance behavior.
type OrdersConfig struct {
	UnpaidTTL          time.Duration `envconfig:"MARKETLOOP_ORDERS_UNPAID_TTL" default:"24h"`
	ExpiryBatchSize    int           `envconfig:"MARKETLOOP_ORDERS_EXPIRY_BATCH_SIZE" default:"100"`
	ExpiryCronInterval time.Duration `envconfig:"MARKETLOOP_ORDERS_EXPIRY_INTERVAL" default:"10m"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
