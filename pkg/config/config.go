package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	PickupLimit   PickupRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Pricing       PricingConfig
	Reservation   ReservationConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
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
	Env          string `envconfig:"CASILLERO_APP_ENV" required:"true"`
	Port         string `envconfig:"CASILLERO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CASILLERO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CASILLERO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CASILLERO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CASILLERO_DB_DSN"`
	Driver string `envconfig:"CASILLERO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CASILLERO_DB_HOST"`
	Port     int    `envconfig:"CASILLERO_DB_PORT" default:"5432"`
	User     string `envconfig:"CASILLERO_DB_USER"`
	Password string `envconfig:"CASILLERO_DB_PASSWORD"`
	Name     string `envconfig:"CASILLERO_DB_NAME"`
	SSLMode  string `envconfig:"CASILLERO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CASILLERO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CASILLERO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CASILLERO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CASILLERO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CASILLERO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CASILLERO_REDIS_ADDR"`
	Password     string        `envconfig:"CASILLERO_REDIS_PASSWORD"`
	DB           int           `envconfig:"CASILLERO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CASILLERO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CASILLERO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CASILLERO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CASILLERO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CASILLERO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"CASILLERO_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"CASILLERO_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"CASILLERO_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"CASILLERO_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CASILLERO_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CASILLERO_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CASILLERO_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CASILLERO_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CASILLERO_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"CASILLERO_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"CASILLERO_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"CASILLERO_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"CASILLERO_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"CASILLERO_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"CASILLERO_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// PickupRateLimitConfig bounds token verification attempts per order.
type PickupRateLimitConfig struct {
	Window   time.Duration `envconfig:"CASILLERO_PICKUP_RATE_LIMIT_WINDOW" default:"5m"`
	Attempts int           `envconfig:"CASILLERO_PICKUP_RATE_LIMIT_ATTEMPTS" default:"5"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CASILLERO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CASILLERO_AUTO_MIGRATE" default:"false"`
}

// PricingConfig carries the fallback store percentages used when the
// store_settings row is absent or unreadable.
type PricingConfig struct {
	DefaultIVAPct           float64       `envconfig:"CASILLERO_PRICING_DEFAULT_IVA_PCT" default:"21"`
	DefaultServiceChargePct float64       `envconfig:"CASILLERO_PRICING_DEFAULT_SERVICE_PCT" default:"1"`
	SettingsCacheTTL        time.Duration `envconfig:"CASILLERO_PRICING_SETTINGS_CACHE_TTL" default:"1m"`
}

// ReservationConfig controls the pickup reservation window and the
// inactivity sweep that expires abandoned carts.
type ReservationConfig struct {
	WindowDuration    time.Duration `envconfig:"CASILLERO_RESERVATION_WINDOW" default:"15m"`
	InactivityTimeout time.Duration `envconfig:"CASILLERO_RESERVATION_INACTIVITY_TIMEOUT" default:"15m"`
	SweepInterval     time.Duration `envconfig:"CASILLERO_RESERVATION_SWEEP_INTERVAL" default:"1m"`
	SweepBatchSize    int           `envconfig:"CASILLERO_RESERVATION_SWEEP_BATCH_SIZE" default:"100"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CASILLERO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CASILLERO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CASILLERO_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the topic the locker integration consumes.
type PubSubConfig struct {
	LockerTopic        string `envconfig:"CASILLERO_PUBSUB_LOCKER_TOPIC" default:"casillero-locker-events"`
	LockerSubscription string `envconfig:"CASILLERO_PUBSUB_LOCKER_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CASILLERO_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CASILLERO_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CASILLERO_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range partDBEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
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
