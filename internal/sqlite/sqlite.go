package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"

	_ "embed"
)

//go:embed schema.sql
var schemaDefinition string

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so text comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type Database struct {
	ReadWrite *sql.DB
	ReadOnly  *sql.DB
	logger    *slog.Logger
}

// NewDatabase connects to url and applies the embedded schema.
//
// Writes go through a single connection and reads through a pool. The url is a
// file path or ":memory:", which gets its own shared-cache in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(ctx, url, logger)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	start := time.Now()
	if _, err = db.ReadWrite.ExecContext(ctx, schemaDefinition); err != nil {
		return nil, errors.Join(fmt.Errorf("apply schema: %w", err), db.Close())
	}
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA optimize = 0x10002;"); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "failed to optimize database", slog.Any("error", err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "database ready", slog.Duration("duration", time.Since(start)))
	return db, nil
}

//nolint:gochecknoglobals // driver registration must happen once per process.
var once sync.Once

const optimizedDriver = "sqlite3fittrack"

func registerOptimizedDriver() {
	sql.Register(optimizedDriver,
		&sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				if _, err := conn.Exec(
					"PRAGMA temp_store = memory;"+
						"PRAGMA mmap_size = 30000000000;", nil); err != nil {
					return fmt.Errorf("exec optimization pragmas: %w", err)
				}
				return nil
			},
		})
}

func connect(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	inMemoryConfig := ""
	if strings.Contains(url, ":memory:") {
		// Both pools must see the same data, and parallel tests must not.
		url = rand.Text()
		inMemoryConfig = "mode=memory&cache=shared"
	}
	commonConfig := strings.Join([]string{
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
	}, "&")

	readConfig := fmt.Sprintf("file:%s?mode=ro&_txlock=deferred&_query_only=true&%s&%s", url, commonConfig, inMemoryConfig)
	readWriteConfig := fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate&%s&%s", url, commonConfig, inMemoryConfig)

	once.Do(registerOptimizedDriver)

	readWriteDB, err := sql.Open(optimizedDriver, readWriteConfig)
	if err != nil {
		return nil, fmt.Errorf("open read-write database: %w", err)
	}
	readWriteDB.SetMaxOpenConns(1)
	readWriteDB.SetMaxIdleConns(1)
	readWriteDB.SetConnMaxLifetime(time.Hour)
	readWriteDB.SetConnMaxIdleTime(time.Hour)

	// sql.DB is lazy; ping so the file exists before the read-only pool opens it.
	if err = readWriteDB.PingContext(ctx); err != nil {
		return nil, errors.Join(fmt.Errorf("ping read-write database: %w", err), readWriteDB.Close())
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "opened database", slog.String("sqlDsn", readWriteConfig))

	readDB, err := sql.Open(optimizedDriver, readConfig)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open read database: %w", err), readWriteDB.Close())
	}
	const maxReadConns = 10
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns)
	readDB.SetConnMaxLifetime(time.Hour)
	readDB.SetConnMaxIdleTime(time.Hour)

	return &Database{ReadWrite: readWriteDB, ReadOnly: readDB, logger: logger}, nil
}

// Ping checks both pools.
func (db *Database) Ping(ctx context.Context) error {
	return errors.Join(db.ReadWrite.PingContext(ctx), db.ReadOnly.PingContext(ctx))
}

func (db *Database) Close() error {
	return errors.Join(db.ReadOnly.Close(), db.ReadWrite.Close())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil //nolint:nilnil // absent timestamp
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}
