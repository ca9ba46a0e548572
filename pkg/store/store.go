// Package store persists aggregation results in a SQLite key-value table
// with an explicit expiry, the externalized deployment variant of the result
// cache. Three keys are written together: the general set, the recommended
// set and the fetch timestamp.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/clipfeed/clipfeed/pkg/cache"
	"github.com/clipfeed/clipfeed/pkg/domain"
)

//go:embed schema.sql
var schema string

const (
	keyGeneral     = "videos:general"
	keyRecommended = "videos:recommended"
	keyFetchedAt   = "videos:fetched_at"
)

// Store is a SQLite-backed key-value result store.
type Store struct {
	db     *sqlx.DB
	window time.Duration
	now    func() time.Time
}

// Config represents store configuration.
type Config struct {
	DSN    string
	Window time.Duration // row expiry, defaults to 12h
}

// New opens the store and initializes its schema.
func New(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		cfg.DSN = "file:clipfeed.db?cache=shared&mode=rwc"
	}
	if cfg.Window == 0 {
		cfg.Window = 12 * time.Hour
	}

	db, err := sqlx.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	return &Store{db: db, window: cfg.Window, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the result under its three keys, each expiring after the
// configured window. Lock contention is retried with backoff.
func (s *Store) Save(ctx context.Context, res *cache.Result) error {
	general, err := json.Marshal(res.General)
	if err != nil {
		return fmt.Errorf("marshal general set: %w", err)
	}
	recommended, err := json.Marshal(res.Recommended)
	if err != nil {
		return fmt.Errorf("marshal recommended set: %w", err)
	}
	fetchedAt := strconv.FormatInt(res.FetchedAt.UnixMilli(), 10)

	expires := s.now().Add(s.window)
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		err := s.inTx(ctx, func(tx *sqlx.Tx) error {
			for _, kv := range []struct {
				key   string
				value string
			}{
				{keyGeneral, string(general)},
				{keyRecommended, string(recommended)},
				{keyFetchedAt, fetchedAt},
			} {
				query := `
					INSERT INTO results (key, value, expires_at) VALUES (?, ?, ?)
					ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
				`
				if _, err := tx.ExecContext(ctx, query, kv.key, kv.value, expires.UTC()); err != nil {
					return fmt.Errorf("save %s: %w", kv.key, err)
				}
			}
			return nil
		})
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: err}
		}
		return nil
	})
}

// Load reads the persisted result. Returns nil without error when any of the
// three keys is absent or expired; both sets are present together or the
// result does not count.
func (s *Store) Load(ctx context.Context) (*cache.Result, error) {
	generalRaw, ok, err := s.get(ctx, keyGeneral)
	if err != nil || !ok {
		return nil, err
	}
	recommendedRaw, ok, err := s.get(ctx, keyRecommended)
	if err != nil || !ok {
		return nil, err
	}
	fetchedAtRaw, ok, err := s.get(ctx, keyFetchedAt)
	if err != nil || !ok {
		return nil, err
	}

	var general, recommended []domain.Video
	if err := json.Unmarshal([]byte(generalRaw), &general); err != nil {
		return nil, fmt.Errorf("unmarshal general set: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendedRaw), &recommended); err != nil {
		return nil, fmt.Errorf("unmarshal recommended set: %w", err)
	}
	millis, err := strconv.ParseInt(fetchedAtRaw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse fetched_at: %w", err)
	}

	return &cache.Result{
		General:     general,
		Recommended: recommended,
		FetchedAt:   time.UnixMilli(millis),
	}, nil
}

// get reads one unexpired value.
func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value,
		"SELECT value FROM results WHERE key = ? AND expires_at > ?", key, s.now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// inTx executes fn within a transaction.
func (s *Store) inTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w (rollback also failed: %s)", err, rbErr.Error())
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// criticalError wraps an error to signal repeater to stop retrying
type criticalError struct {
	err error
}

func (e *criticalError) Error() string {
	return e.err.Error()
}

// isLockError checks if an error is a SQLite lock/busy error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "SQLITE_BUSY") ||
		strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}
