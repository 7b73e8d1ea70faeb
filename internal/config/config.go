// Package config loads the settings shared by the api-gateway and the
// video-processor: a YAML file for structure, a .env file and environment
// variables for endpoints and secrets.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

const (
	defaultConfigPath     = "config.yaml"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
	defaultDatabaseDriver = "sqlite"
	defaultDatabaseURL    = "korai.db"
	defaultRedisURL       = "redis://localhost:6379/0"
	defaultStream         = "korai:jobs"
	defaultGroup          = "video-processor"
	defaultBlobProvider   = BlobMemory
	defaultBlobBucket     = "processed-clips"
	defaultAuthMode       = AuthSupabase
	defaultAuthHeader     = "X-User-ID"
	defaultQuotaBackend   = QuotaRedis
	defaultRequestTimeout = 30 * time.Second
	defaultQueueBlock     = 5 * time.Second
	defaultReclaimIdle    = 20 * time.Minute
	defaultClipTimeout    = 15 * time.Minute
	defaultWorkers        = 4
	defaultReportRetries  = 5
	defaultReportBackoff  = 2 * time.Second
)

// Blob providers.
const (
	BlobSupabase = "supabase"
	BlobGCS      = "gcs"
	BlobMemory   = "memory"
)

// Auth modes.
const (
	// AuthHeader trusts a user id header set by an upstream proxy. It is
	// never the default and must be selected explicitly.
	AuthHeader = "header"
	// AuthSupabase resolves bearer tokens through Supabase Auth.
	AuthSupabase = "supabase"
)

// Quota backends.
const (
	QuotaRedis = "redis"
	QuotaSQL   = "sql"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Queue    QueueConfig    `yaml:"queue"`
	Blob     BlobConfig     `yaml:"blob"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Auth     AuthConfig     `yaml:"auth"`
	ClipAPI  ClipAPIConfig  `yaml:"clip_api"`
	Worker   WorkerConfig   `yaml:"worker"`
	Quota    QuotaConfig    `yaml:"quota"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowOrigins   string        `yaml:"allow_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "pgx" (postgres) or "sqlite"
	URL    string `yaml:"url"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

type QueueConfig struct {
	Stream      string        `yaml:"stream"`
	Group       string        `yaml:"group"`
	Consumer    string        `yaml:"consumer"`
	Block       time.Duration `yaml:"block"`
	ReclaimIdle time.Duration `yaml:"reclaim_idle"`
	MaxLen      int64         `yaml:"max_len"`
}

type BlobConfig struct {
	Provider string `yaml:"provider"`
	Bucket   string `yaml:"bucket"`
	// BaseURL prefixes the signed URLs of the memory provider.
	BaseURL string `yaml:"base_url"`
}

type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"-"`
}

type AuthConfig struct {
	Mode   string `yaml:"mode"`
	Header string `yaml:"header"`
}

type ClipAPIConfig struct {
	IdentifyURL       string        `yaml:"identify_url"`
	ProcessURL        string        `yaml:"process_url"`
	TranscribeURL     string        `yaml:"transcribe_url"`
	Token             string        `yaml:"-"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	// ReportRetries bounds how often a worker re-reports a result the
	// gateway has not caught up with yet.
	ReportRetries int           `yaml:"report_retries"`
	ReportBackoff time.Duration `yaml:"report_backoff"`
}

type QuotaConfig struct {
	Backend string                 `yaml:"backend"`
	Limits  map[string]quota.Limit `yaml:"limits"`
}

// Load reads .env (if present), then the YAML file at path, then the
// environment. An empty path means config.yaml, which may be absent; an
// explicit path must exist.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := loadYAML(cfg, path); err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	optional := path == ""
	if optional {
		path = defaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.Server.Port, "PORT")
	setFromEnv(&cfg.Log.Level, "LOG_LEVEL")
	setFromEnv(&cfg.Database.Driver, "DATABASE_DRIVER")
	setFromEnv(&cfg.Database.URL, "DATABASE_URL")
	setFromEnv(&cfg.Redis.URL, "REDIS_URL")
	setFromEnv(&cfg.Supabase.URL, "SUPABASE_URL")
	setFromEnv(&cfg.Supabase.ServiceKey, "SUPABASE_SERVICE_KEY")
	setFromEnv(&cfg.Blob.Provider, "BLOB_PROVIDER")
	setFromEnv(&cfg.Blob.Bucket, "BLOB_BUCKET")
	setFromEnv(&cfg.Auth.Mode, "AUTH_MODE")
	setFromEnv(&cfg.ClipAPI.IdentifyURL, "CLIPS_API_URL")
	setFromEnv(&cfg.ClipAPI.ProcessURL, "CLIPS_PROCESS_API_URL")
	setFromEnv(&cfg.ClipAPI.TranscribeURL, "TRANSCRIBE_API_URL")
	setFromEnv(&cfg.ClipAPI.Token, "CLIPS_API_TOKEN")
	if v := os.Getenv("WORKER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Worker.Concurrency = n
		}
	}
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultPort
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Server.AllowOrigins == "" {
		cfg.Server.AllowOrigins = "*"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaultLogFormat
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaultDatabaseDriver
	}
	if cfg.Database.Driver == "postgres" {
		cfg.Database.Driver = "pgx"
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = defaultDatabaseURL
	}
	if cfg.Redis.URL == "" {
		cfg.Redis.URL = defaultRedisURL
	}
	applyQueueDefaults(cfg)
	if cfg.Blob.Provider == "" {
		cfg.Blob.Provider = defaultBlobProvider
	}
	if cfg.Blob.Bucket == "" {
		cfg.Blob.Bucket = defaultBlobBucket
	}
	if cfg.Blob.BaseURL == "" {
		cfg.Blob.BaseURL = "http://localhost:" + cfg.Server.Port + "/blobs"
	}
	if cfg.Auth.Mode == "" {
		cfg.Auth.Mode = defaultAuthMode
	}
	if cfg.Auth.Header == "" {
		cfg.Auth.Header = defaultAuthHeader
	}
	if cfg.ClipAPI.Timeout == 0 {
		cfg.ClipAPI.Timeout = defaultClipTimeout
	}
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = defaultWorkers
	}
	if cfg.Worker.ReportRetries == 0 {
		cfg.Worker.ReportRetries = defaultReportRetries
	}
	if cfg.Worker.ReportBackoff == 0 {
		cfg.Worker.ReportBackoff = defaultReportBackoff
	}
	if cfg.Quota.Backend == "" {
		cfg.Quota.Backend = defaultQuotaBackend
	}
}

func applyQueueDefaults(cfg *Config) {
	if cfg.Queue.Stream == "" {
		cfg.Queue.Stream = defaultStream
	}
	if cfg.Queue.Group == "" {
		cfg.Queue.Group = defaultGroup
	}
	if cfg.Queue.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		cfg.Queue.Consumer = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	if cfg.Queue.Block == 0 {
		cfg.Queue.Block = defaultQueueBlock
	}
	if cfg.Queue.ReclaimIdle == 0 {
		cfg.Queue.ReclaimIdle = defaultReclaimIdle
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "pgx", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	switch c.Blob.Provider {
	case BlobMemory, BlobGCS:
	case BlobSupabase:
		if c.Supabase.URL == "" || c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("blob provider supabase needs SUPABASE_URL and SUPABASE_SERVICE_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob provider %q", c.Blob.Provider))
	}
	switch c.Auth.Mode {
	case AuthHeader:
	case AuthSupabase:
		// Credentials are checked where the authenticator is built; the
		// processor loads the same config without authenticating anyone.
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode %q", c.Auth.Mode))
	}
	switch c.Quota.Backend {
	case QuotaRedis, QuotaSQL:
	default:
		errs = append(errs, fmt.Errorf("unknown quota backend %q", c.Quota.Backend))
	}
	if c.Worker.Concurrency < 1 {
		errs = append(errs, errors.New("worker concurrency must be positive"))
	}
	if _, err := c.Limits(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Limits returns the built-in quota limits with the configured overrides
// applied.
func (c *Config) Limits() (map[quota.Class]quota.Limit, error) {
	limits := quota.DefaultLimits()
	for name, l := range c.Quota.Limits {
		class := quota.Class(name)
		if _, ok := limits[class]; !ok {
			return nil, fmt.Errorf("%w: %s", quota.ErrUnknownClass, name)
		}
		if l.Limit <= 0 || l.Window <= 0 {
			return nil, fmt.Errorf("quota %s: limit and window must be positive", name)
		}
		limits[class] = l
	}
	return limits, nil
}
