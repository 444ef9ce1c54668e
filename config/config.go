// Package config loads the host configuration from the environment.
package config

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	gconfig "github.com/goliatone/go-config/config"
	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-logger/glog"
	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every variable. Nested settings use a double
// underscore, e.g. GARAGE_SESSION__SECRET.
const (
	EnvPrefix    = "GARAGE_"
	EnvDelimiter = "__"
)

const redacted = "********"

// Config holds the lifecycle options plus the settings of the optional
// integrations. An empty integration setting disables that integration.
type Config struct {
	ReadinessTimeout     time.Duration `json:"readiness_timeout" koanf:"readiness_timeout"`
	NavigationDelay      time.Duration `json:"navigation_delay" koanf:"navigation_delay"`
	AuthenticatedLanding string        `json:"authenticated_landing" koanf:"authenticated_landing"`
	PublicLanding        string        `json:"public_landing" koanf:"public_landing"`
	DefaultBadge         string        `json:"default_badge" koanf:"default_badge"`
	MinPasswordLength    int           `json:"min_password_length" koanf:"min_password_length"`
	AvatarServiceURL     string        `json:"avatar_service_url" koanf:"avatar_service_url"`

	Database Database `json:"database" koanf:"database"`
	Session  Session  `json:"session" koanf:"session"`
	Storage  Storage  `json:"storage" koanf:"storage"`
	NATS     NATS     `json:"nats" koanf:"nats"`
	Metrics  Metrics  `json:"metrics" koanf:"metrics"`
}

// Database is handed to go-persistence-bun as its client config.
type Database struct {
	Driver      string        `json:"driver" koanf:"driver"`
	DSN         string        `json:"dsn" koanf:"dsn"`
	Debug       bool          `json:"debug" koanf:"debug"`
	PingTimeout time.Duration `json:"ping_timeout" koanf:"ping_timeout"`
}

func (d Database) GetDebug() bool                { return d.Debug }
func (d Database) GetDriver() string             { return d.Driver }
func (d Database) GetServer() string             { return d.DSN }
func (d Database) GetDSN() string                { return d.DSN }
func (d Database) GetPingTimeout() time.Duration { return d.PingTimeout }
func (d Database) GetOtelIdentifier() string     { return "garage-auth" }

type Session struct {
	Secret   string        `json:"secret" koanf:"secret"`
	TokenTTL time.Duration `json:"token_ttl" koanf:"token_ttl"`
	Issuer   string        `json:"issuer" koanf:"issuer"`
}

type Storage struct {
	Bucket          string `json:"bucket" koanf:"bucket"`
	Region          string `json:"region" koanf:"region"`
	Endpoint        string `json:"endpoint" koanf:"endpoint"`
	AccessKeyID     string `json:"access_key_id" koanf:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key" koanf:"secret_access_key"`
	PublicBaseURL   string `json:"public_base_url" koanf:"public_base_url"`
	UsePathStyle    bool   `json:"use_path_style" koanf:"use_path_style"`
}

// Enabled reports whether a bucket was configured.
func (s Storage) Enabled() bool { return s.Bucket != "" }

type NATS struct {
	URL           string `json:"url" koanf:"url"`
	SubjectPrefix string `json:"subject_prefix" koanf:"subject_prefix"`
}

// Enabled reports whether a NATS server was configured.
func (n NATS) Enabled() bool { return n.URL != "" }

type Metrics struct {
	Addr string `json:"addr" koanf:"addr"`
}

// Enabled reports whether the metrics endpoint should be served.
func (m Metrics) Enabled() bool { return m.Addr != "" }

var _ auth.Config = (*Config)(nil)

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		ReadinessTimeout:     auth.DefaultReadinessTimeout,
		NavigationDelay:      auth.DefaultNavigationDelay,
		AuthenticatedLanding: auth.DefaultAuthenticatedLanding,
		PublicLanding:        auth.DefaultPublicLanding,
		DefaultBadge:         auth.DefaultBadge,
		MinPasswordLength:    auth.DefaultMinPasswordLength,
		AvatarServiceURL:     auth.DefaultAvatarServiceURL,
		Database: Database{
			Driver:      "sqlite",
			DSN:         "file:garage.db?cache=shared",
			PingTimeout: 5 * time.Second,
		},
		Session: Session{
			TokenTTL: time.Hour,
			Issuer:   "garage-auth",
		},
		Storage: Storage{Region: "auto"},
		NATS:    NATS{SubjectPrefix: "garage"},
	}
}

// Load reads the given .env files, if any exist, into the process
// environment and then resolves the GARAGE_ variables on top of Defaults.
// Variables already set in the environment win over the files.
func Load(ctx context.Context, logger glog.Logger, files ...string) (*Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "load env file").
				WithTextCode(auth.TextCodeConfiguration).
				WithMetadata(map[string]any{"file": file})
		}
	}

	container := gconfig.New(Defaults()).
		WithProvider(gconfig.EnvProvider[*Config](EnvPrefix, EnvDelimiter))
	if logger != nil {
		container = container.WithLogger(logger)
	}

	if err := container.Load(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "load configuration").
			WithTextCode(auth.TextCodeConfiguration)
	}
	return container.Raw(), nil
}

// Validate checks the settings the host cannot run without.
func (c *Config) Validate() error {
	var problems []string
	if c.ReadinessTimeout <= 0 {
		problems = append(problems, "readiness timeout must be positive")
	}
	if c.MinPasswordLength <= 0 {
		problems = append(problems, "min password length must be positive")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		problems = append(problems, EnvPrefix+"SESSION__SECRET is required")
	}
	if c.Database.DSN == "" && c.Database.Driver != "sqlite" {
		problems = append(problems, EnvPrefix+"DATABASE__DSN is required")
	}
	if c.Storage.Enabled() && c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey == "" {
		problems = append(problems, EnvPrefix+"STORAGE__SECRET_ACCESS_KEY is required with an access key id")
	}

	if len(problems) == 0 {
		return nil
	}
	return goerrors.New("invalid configuration", goerrors.CategoryValidation).
		WithTextCode(auth.TextCodeConfiguration).
		WithMetadata(map[string]any{"problems": problems})
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Session.Secret != "" {
		out.Session.Secret = redacted
	}
	if out.Storage.SecretAccessKey != "" {
		out.Storage.SecretAccessKey = redacted
	}
	return out
}

func (c *Config) GetReadinessTimeout() time.Duration { return c.ReadinessTimeout }
func (c *Config) GetNavigationDelay() time.Duration  { return c.NavigationDelay }
func (c *Config) GetAuthenticatedLanding() string    { return c.AuthenticatedLanding }
func (c *Config) GetPublicLanding() string           { return c.PublicLanding }
func (c *Config) GetDefaultBadge() string            { return c.DefaultBadge }
func (c *Config) GetMinPasswordLength() int          { return c.MinPasswordLength }
func (c *Config) GetAvatarServiceURL() string        { return c.AvatarServiceURL }
