package repository

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-garage-auth"
	"github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the database configuration handed to the persistence client.
type Config interface {
	GetDebug() bool
	GetDriver() string
	GetServer() string
	GetPingTimeout() time.Duration
	GetOtelIdentifier() string
}

// StaticConfig is a fixed Config, used for embedded sqlite databases and
// tests.
type StaticConfig struct {
	Driver      string
	DSN         string
	Debug       bool
	PingTimeout time.Duration
}

func (c StaticConfig) GetDebug() bool            { return c.Debug }
func (c StaticConfig) GetDriver() string         { return c.Driver }
func (c StaticConfig) GetServer() string         { return c.DSN }
func (c StaticConfig) GetOtelIdentifier() string { return "garage-auth" }

func (c StaticConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return 5 * time.Second
	}
	return c.PingTimeout
}

// MemoryConfig is an in memory sqlite database.
func MemoryConfig() StaticConfig {
	return StaticConfig{Driver: DriverSQLite, DSN: ":memory:"}
}

// Option customizes Open.
type Option func(*openOptions)

type openOptions struct {
	logger glog.Logger
}

// WithLogger sets the logger of the persistence client.
func WithLogger(logger glog.Logger) Option {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// Open connects to the database named by cfg and returns a persistence
// client with the dialect migrations registered. In memory sqlite
// databases are limited to one connection so every query sees the same
// data.
func Open(cfg Config, opts ...Option) (*persistence.Client, error) {
	options := openOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	sqldb, dialect, err := openSQL(cfg.GetDriver(), cfg.GetServer())
	if err != nil {
		return nil, err
	}

	client, err := persistence.New(cfg, sqldb, dialect)
	if err != nil {
		_ = sqldb.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "create persistence client").
			WithMetadata(map[string]any{"driver": cfg.GetDriver()})
	}
	if options.logger != nil {
		client.SetLogger(options.logger)
	}

	migrationsFS, err := fs.Sub(auth.GetMigrationsFS(), auth.MigrationsDir)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open embedded migrations")
	}
	client.RegisterDialectMigrations(
		migrationsFS,
		persistence.WithDialectSourceLabel(auth.MigrationsDir),
		persistence.WithValidationTargets(DriverPostgres, DriverSQLite),
	)
	return client, nil
}

// Migrate checks that every dialect ships the same migrations and applies
// the pending ones. Applied migrations are tracked, so Migrate can run on
// every start.
func Migrate(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "dialect migrations out of sync")
	}
	if err := client.Migrate(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "apply migrations")
	}
	return nil
}

func openSQL(driver, dsn string) (*sql.DB, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "sqlite3", "":
		if dsn == "" {
			dsn = ":memory:"
		}
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open sqlite")
		}
		if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
			sqldb.SetMaxOpenConns(1)
		}
		return sqldb, sqlitedialect.New(), nil
	case DriverPostgres, "postgresql", "pg":
		sqldb, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "open postgres")
		}
		return sqldb, pgdialect.New(), nil
	default:
		return nil, nil, goerrors.New("unsupported database driver", goerrors.CategoryValidation).
			WithTextCode(auth.TextCodeConfiguration).
			WithMetadata(map[string]any{"driver": driver})
	}
}
