// Package db opens the sqlite databases used by the server's save index.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/gamebox/internal/utils"
)

const MemoryPath = ":memory:"

const defaultPragmas = `
PRAGMA journal_mode=WAL;
PRAGMA synchronous=NORMAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
`

type options struct {
	path        string
	pragmas     string
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

type SqliteOption func(*options)

// WithPath selects the database file. MemoryPath keeps it in memory.
func WithPath(path string) SqliteOption {
	return func(o *options) { o.path = path }
}

// WithPragmas replaces the default pragma block.
func WithPragmas(pragmas string) SqliteOption {
	return func(o *options) { o.pragmas = pragmas }
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(o *options) { o.maxOpen = n }
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(o *options) { o.maxIdle = n }
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(o *options) { o.maxLifetime = d }
}

// NewSqliteDB opens a sqlite database and applies pragmas.
func NewSqliteDB(opts ...SqliteOption) (*sqlx.DB, error) {
	o := &options{
		path:    MemoryPath,
		pragmas: defaultPragmas,
		maxIdle: 2,
	}
	for _, opt := range opts {
		opt(o)
	}

	dsn := MemoryPath
	if o.path != MemoryPath {
		if err := utils.EnsureParent(o.path); err != nil {
			return nil, fmt.Errorf("db parent dir: %w", err)
		}
		dsn = "file:" + o.path + "?_txlock=immediate&mode=rwc"
	} else {
		// every pooled connection to :memory: would otherwise see its own database
		o.maxOpen = 1
	}

	slog.Debug("db open", "driver", driverID, "path", o.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	if o.maxOpen > 0 {
		db.SetMaxOpenConns(o.maxOpen)
	}
	if o.maxIdle > 0 {
		db.SetMaxIdleConns(o.maxIdle)
	}
	if o.maxLifetime > 0 {
		db.SetConnMaxLifetime(o.maxLifetime)
	}

	if o.pragmas != "" {
		if _, err := db.Exec(o.pragmas); err != nil {
			db.Close()
			return nil, fmt.Errorf("db pragmas: %w", err)
		}
	}

	return db, nil
}
