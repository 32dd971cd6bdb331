package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	SMTP         SMTPConfig
	Delivery     DeliveryConfig
	Digest       DigestConfig
	Mirror       MirrorConfig
	Crypto       CryptoConfig
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
	Env          string `envconfig:"HIVECRM_APP_ENV" required:"true"`
	LogLevel     string `envconfig:"HIVECRM_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"HIVECRM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HIVECRM_SERVICE_KIND" default:"delivery-worker"`
}

type DBConfig struct {
	DSN    string `envconfig:"HIVECRM_DB_DSN"`
	Driver string `envconfig:"HIVECRM_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"HIVECRM_DB_HOST"`
	LegacyPort     int    `envconfig:"HIVECRM_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HIVECRM_DB_USER"`
	LegacyPassword string `envconfig:"HIVECRM_DB_PASSWORD"`
	LegacyName     string `envconfig:"HIVECRM_DB_NAME"`
	LegacySSLMode  string `envconfig:"HIVECRM_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"HIVECRM_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HIVECRM_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HIVECRM_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HIVECRM_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HIVECRM_REDIS_URL" required:"true"`
	Address      string        `envconfig:"HIVECRM_REDIS_ADDR"`
	Password     string        `envconfig:"HIVECRM_REDIS_PASSWORD"`
	DB           int           `envconfig:"HIVECRM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HIVECRM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HIVECRM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HIVECRM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HIVECRM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HIVECRM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"HIVECRM_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"HIVECRM_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"HIVECRM_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"HIVECRM_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	NotificationTopic        string `envconfig:"HIVECRM_PUBSUB_NOTIFICATION_TOPIC" default:"hc-notification-events"`
	NotificationSubscription string `envconfig:"HIVECRM_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
}

type SMTPConfig struct {
	Host        string `envconfig:"HIVECRM_SMTP_HOST"`
	Port        int    `envconfig:"HIVECRM_SMTP_PORT" default:"587"`
	Username    string `envconfig:"HIVECRM_SMTP_USERNAME"`
	Password    string `envconfig:"HIVECRM_SMTP_PASSWORD"`
	FromAddress string `envconfig:"HIVECRM_SMTP_FROM_ADDRESS"`
	FromName    string `envconfig:"HIVECRM_SMTP_FROM_NAME" default:"HiveCRM"`
}

type DeliveryConfig struct {
	BatchSize      int           `envconfig:"HIVECRM_DELIVERY_BATCH_SIZE" default:"10"`
	PollIntervalMS int           `envconfig:"HIVECRM_DELIVERY_POLL_MS" default:"5000"`
	MaxRetries     int           `envconfig:"HIVECRM_DELIVERY_MAX_RETRIES" default:"3"`
	Workers        int           `envconfig:"HIVECRM_DELIVERY_WORKERS" default:"4"`
	SendTimeout    time.Duration `envconfig:"HIVECRM_DELIVERY_SEND_TIMEOUT" default:"5s"`
	BackoffBase    time.Duration `envconfig:"HIVECRM_DELIVERY_BACKOFF_BASE" default:"30s"`
	BackoffCap     time.Duration `envconfig:"HIVECRM_DELIVERY_BACKOFF_CAP" default:"15m"`
}

type DigestConfig struct {
	Hour int `envconfig:"HIVECRM_DIGEST_HOUR" default:"8"`
}

type MirrorConfig struct {
	Timeout time.Duration `envconfig:"HIVECRM_MIRROR_TIMEOUT" default:"5s"`
}

type CryptoConfig struct {
	SymmetricKeyTTL time.Duration `envconfig:"HIVECRM_CRYPTO_KEY_TTL" default:"24h"`
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
