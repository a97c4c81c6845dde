package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"

	domain "github.com/bryanwahyu/quiz-analysis/internal/domain/analysis"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database Database `yaml:"database"`

	Webhook Webhook `yaml:"webhook"`

	Poll Poll `yaml:"poll"`

	Archive Archive `yaml:"archive"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Auth struct {
		// client name -> api key; empty disables auth on /v1
		APIKeys map[string]string `yaml:"apiKeys"`
	} `yaml:"auth"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`
}

type Database struct {
	Driver   string `yaml:"driver"` // postgres | mysql | sqlite3
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"` // sqlite3 only
	Table    string `yaml:"table"`
}

type Webhook struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // 0 keeps the transport default
}

type Poll struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	Delay       time.Duration `yaml:"delay"`
}

type Archive struct {
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"accessKey"`
	SecretKey  string `yaml:"secretKey"`
	BucketName string `yaml:"bucketName"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"useSSL"`
}

// Enabled reports whether finished reports should be archived.
func (a Archive) Enabled() bool { return a.Endpoint != "" }

// Load reads .env, the optional YAML file at path, then environment overrides.
// A missing file is fine; the service is usually configured through the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, goerr.Wrap(err, "failed to load .env")
	}

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.Host, "DB_HOST", "host")
	setString(&c.Database.Name, "DB_NAME", "dbname")
	setString(&c.Database.User, "DB_USER", "user")
	setString(&c.Database.Password, "DB_PASSWORD", "SUPABASE_PASS")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Database.Path, "DB_PATH")
	setString(&c.Database.Table, "DB_TABLE")
	setString(&c.Webhook.URL, "WEBHOOK_URL", "N8N_WEBHOOK_TEST")
	setString(&c.Archive.Endpoint, "ARCHIVE_ENDPOINT")
	setString(&c.Archive.AccessKey, "ARCHIVE_ACCESS_KEY")
	setString(&c.Archive.SecretKey, "ARCHIVE_SECRET_KEY")
	setString(&c.Archive.BucketName, "ARCHIVE_BUCKET")
	setString(&c.Archive.Region, "ARCHIVE_REGION")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if err := setInt(&c.Database.Port, "DB_PORT", "port"); err != nil {
		return err
	}
	if err := setInt(&c.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Poll.MaxAttempts, "POLL_MAX_ATTEMPTS"); err != nil {
		return err
	}
	if err := setDuration(&c.Poll.Delay, "POLL_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&c.Webhook.Timeout, "WEBHOOK_TIMEOUT"); err != nil {
		return err
	}
	if v, ok := lookup("ARCHIVE_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return goerr.Wrap(domain.ErrConfiguration, "invalid ARCHIVE_USE_SSL", goerr.V("value", v))
		}
		c.Archive.UseSSL = b
	}
	return nil
}

func defaults() Config {
	var c Config
	c.Server.Port = 8080
	c.Database.Driver = "postgres"
	c.Database.SSLMode = "require"
	c.Database.Table = "valve"
	c.Poll.MaxAttempts = 10
	c.Poll.Delay = 2 * time.Second
	c.Archive.BucketName = "analysis-reports"
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.RateLimit.Capacity = 20
	c.RateLimit.RefillRate = 1
	return c
}

func (c *Config) normalize() {
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "mysql":
			c.Database.Port = 3306
		default:
			c.Database.Port = 5432
		}
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 10
	}
	if c.Poll.Delay < 0 {
		c.Poll.Delay = 0
	}
}

// ValidateWebhook reports a missing or malformed webhook URL. It is checked once at
// startup so operators see the problem before anyone submits the form.
func (c *Config) ValidateWebhook() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return goerr.Wrap(domain.ErrConfiguration, "webhook URL is not set (WEBHOOK_URL or N8N_WEBHOOK_TEST)")
	}
	u, err := url.Parse(c.Webhook.URL)
	if err != nil {
		return goerr.Wrap(domain.ErrConfiguration, "invalid webhook URL", goerr.V("error", err.Error()))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return goerr.Wrap(domain.ErrConfiguration, "invalid webhook URL scheme (allowed: http, https)", goerr.V("scheme", u.Scheme))
	}
	if u.Host == "" {
		return goerr.Wrap(domain.ErrConfiguration, "webhook URL has no host")
	}
	return nil
}

// Validate checks the store credentials. Called lazily when a connection is opened.
func (d *Database) Validate() error {
	switch d.Driver {
	case "sqlite3":
		if d.Path == "" {
			return goerr.Wrap(domain.ErrConfiguration, "database path is required for sqlite3")
		}
		return nil
	case "postgres", "mysql":
	default:
		return goerr.Wrap(domain.ErrConfiguration, "unsupported database driver", goerr.V("driver", d.Driver))
	}

	var missing []string
	if d.Host == "" {
		missing = append(missing, "host")
	}
	if d.Name == "" {
		missing = append(missing, "name")
	}
	if d.User == "" {
		missing = append(missing, "user")
	}
	if len(missing) > 0 {
		return goerr.Wrap(domain.ErrConfiguration, "database credentials missing", goerr.V("fields", strings.Join(missing, ",")))
	}
	return nil
}

// PostgresDSN builds a lib/pq keyword DSN with every value quoted as needed.
func (d *Database) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		quoteDSNValue(d.Host),
		d.Port,
		quoteDSNValue(d.User),
		quoteDSNValue(d.Password),
		quoteDSNValue(d.Name),
		quoteDSNValue(d.SSLMode),
	)
}

func quoteDSNValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func lookup(keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setString(dst *string, keys ...string) {
	if v, ok := lookup(keys...); ok {
		*dst = v
	}
}

func setInt(dst *int, keys ...string) error {
	v, ok := lookup(keys...)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return goerr.Wrap(domain.ErrConfiguration, "invalid integer setting", goerr.V("keys", keys), goerr.V("value", v))
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are seconds
		secs, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return goerr.Wrap(domain.ErrConfiguration, "invalid duration setting", goerr.V("key", key), goerr.V("value", v))
		}
		d = time.Duration(secs * float64(time.Second))
	}
	*dst = d
	return nil
}
