package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type R2 struct {
	AccountID  string `envconfig:"ACCOUNT_ID"`
	AccessKey  string `envconfig:"ACCESS_KEY_ID"`
	SecretKey  string `envconfig:"SECRET_ACCESS_KEY"`
	BucketName string `envconfig:"BUCKET_NAME"`
	PublicURL  string `envconfig:"PUBLIC_URL"`
}

type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type Queue struct {
	Driver            string `envconfig:"DRIVER" default:"qstash"`
	QStashURL         string `envconfig:"QSTASH_URL" default:"https://qstash.upstash.io"`
	QStashToken       string `envconfig:"QSTASH_TOKEN"`
	CurrentSigningKey string `envconfig:"CURRENT_SIGNING_KEY"`
	NextSigningKey    string `envconfig:"NEXT_SIGNING_KEY"`
	CallbackURL       string `envconfig:"CALLBACK_URL"`
	Retries           int    `envconfig:"RETRIES" default:"3"`
	RedisURI          string `envconfig:"REDIS_URI" default:"localhost:6379"`
	AsynqQueue        string `envconfig:"ASYNQ_QUEUE" default:"dispatch"`
	AsynqConcurrency  int    `envconfig:"ASYNQ_CONCURRENCY" default:"10"`
}

// Scheduling holds the two registration horizons. Bulk scheduling and the
// single-post reschedule deliberately use different limits.
type Scheduling struct {
	BulkHorizon       time.Duration `envconfig:"BULK_HORIZON" default:"8760h"`
	RescheduleHorizon time.Duration `envconfig:"RESCHEDULE_HORIZON" default:"168h"`
	StaggerWindow     time.Duration `envconfig:"STAGGER_WINDOW" default:"5m"`
	MinStagger        time.Duration `envconfig:"MIN_STAGGER" default:"60s"`
	MaxRandomStagger  time.Duration `envconfig:"MAX_RANDOM_STAGGER" default:"120s"`
	ReconcileGrace    time.Duration `envconfig:"RECONCILE_GRACE" default:"1h"`
	ReconcileSpec     string        `envconfig:"RECONCILE_SPEC" default:"@every 5m"`
	TokenRefreshSpec  string        `envconfig:"TOKEN_REFRESH_SPEC" default:"@every 10m"`
}

type Credits struct {
	MonthlyAllotment int `envconfig:"MONTHLY_ALLOTMENT" default:"300"`
	TwitterCost      int `envconfig:"TWITTER_COST" default:"10"`
	DefaultCost      int `envconfig:"DEFAULT_COST" default:"5"`
}

type Dispatch struct {
	MonthlyQuota     int           `envconfig:"MONTHLY_QUOTA" default:"100"`
	MaxContentLength int           `envconfig:"MAX_CONTENT_LENGTH" default:"10000"`
	MaxRetries       int           `envconfig:"MAX_RETRIES" default:"3"`
	HTTPTimeout      time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
}

// PlatformAPI configures one platform's API host and, where tokens can be
// refreshed, its OAuth client.
type PlatformAPI struct {
	BaseURL      string `envconfig:"API_URL"`
	ClientID     string `envconfig:"CLIENT_ID"`
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	TokenURL     string `envconfig:"TOKEN_URL"`
}

type Config struct {
	Port           string `envconfig:"PORT" default:"3000"`
	FrontendURL    string `envconfig:"FRONTEND_URL" default:"http://localhost:5173"`
	SecretKey      string `envconfig:"SECRET_KEY" required:"true"`
	CookieName     string `envconfig:"COOKIE_NAME" default:"postflow_session"`
	PostgresURI    string `envconfig:"POSTGRES_URI" required:"true"`
	MigrateOnStart bool   `envconfig:"MIGRATE_ON_START" default:"false"`

	Log        Log        `envconfig:"LOG"`
	Queue      Queue      `envconfig:"QUEUE"`
	Scheduling Scheduling `envconfig:"SCHEDULING"`
	Credits    Credits    `envconfig:"CREDITS"`
	Dispatch   Dispatch   `envconfig:"DISPATCH"`

	Twitter   PlatformAPI `envconfig:"TWITTER"`
	LinkedIn  PlatformAPI `envconfig:"LINKEDIN"`
	Facebook  PlatformAPI `envconfig:"FACEBOOK"`
	Instagram PlatformAPI `envconfig:"INSTAGRAM"`

	R2 R2 `envconfig:"R2"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
