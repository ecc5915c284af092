package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/lawscope/pkg/offline"
)

// CacheRepository persists offline cache partitions, implements offline.Storage
type CacheRepository struct {
	db *sqlx.DB
}

type cacheEntrySQL struct {
	CacheName string    `db:"cache_name"`
	Key       string    `db:"key"`
	Status    int       `db:"status"`
	Header    headerSQL `db:"header"`
	Body      []byte    `db:"body"`
	StoredAt  time.Time `db:"stored_at"`
}

// headerSQL is an http header stored as JSON object
type headerSQL http.Header

// Value implements driver.Valuer for database storage
func (h headerSQL) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner for database retrieval
func (h *headerSQL) Scan(value any) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*h = headerSQL{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unexpected header type %T", value)
	}
	res := headerSQL{}
	if err := json.Unmarshal(data, &res); err != nil {
		return fmt.Errorf("unmarshal header: %w", err)
	}
	*h = res
	return nil
}

// NewCacheRepository creates a new cache repository
func NewCacheRepository(db *sqlx.DB) *CacheRepository {
	return &CacheRepository{db: db}
}

// Open creates the partition if missing
func (r *CacheRepository) Open(ctx context.Context, name string) error {
	if _, err := r.db.ExecContext(ctx, "INSERT OR IGNORE INTO cache_partitions (name) VALUES (?)", name); err != nil {
		return fmt.Errorf("open cache %s: %w", name, err)
	}
	return nil
}

// Partitions lists partition names in creation order
func (r *CacheRepository) Partitions(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, "SELECT name FROM cache_partitions ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	return names, nil
}

// Delete drops the partition with its entries
func (r *CacheRepository) Delete(ctx context.Context, name string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE cache_name = ?", name); err != nil {
		return fmt.Errorf("delete cache entries of %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM cache_partitions WHERE name = ?", name); err != nil {
		return fmt.Errorf("delete cache %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Put stores the entry in the partition, replacing an entry with the same key
func (r *CacheRepository) Put(ctx context.Context, name string, entry offline.Entry) error {
	row := cacheEntrySQL{
		CacheName: name,
		Key:       entry.Key,
		Status:    entry.Status,
		Header:    headerSQL(entry.Header),
		Body:      entry.Body,
		StoredAt:  entry.StoredAt.UTC(),
	}
	if row.StoredAt.IsZero() {
		row.StoredAt = time.Now().UTC()
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		tx, err := r.db.BeginTxx(ctx, nil)
		if err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("begin transaction: %w", err)}
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO cache_partitions (name) VALUES (?)", name); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("open cache %s: %w", name, err)}
		}

		query := `
			INSERT INTO cache_entries (cache_name, key, status, header, body, stored_at)
			VALUES (:cache_name, :key, :status, :header, :body, :stored_at)
			ON CONFLICT(cache_name, key) DO UPDATE SET
				status = excluded.status,
				header = excluded.header,
				body = excluded.body,
				stored_at = excluded.stored_at`
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("put cache entry %s: %w", entry.Key, err)}
		}
		if err := tx.Commit(); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("commit transaction: %w", err)}
		}
		return nil
	}, errCritical)
}

// Match finds an entry by key in the partition, or in all partitions in creation order when name is empty
func (r *CacheRepository) Match(ctx context.Context, name, key string) (offline.Entry, error) {
	var row cacheEntrySQL
	var err error
	if name != "" {
		err = r.db.GetContext(ctx, &row, `
			SELECT cache_name, key, status, header, body, stored_at
			FROM cache_entries WHERE cache_name = ? AND key = ?`, name, key)
	} else {
		err = r.db.GetContext(ctx, &row, `
			SELECT e.cache_name, e.key, e.status, e.header, e.body, e.stored_at
			FROM cache_entries e
			JOIN cache_partitions p ON p.name = e.cache_name
			WHERE e.key = ?
			ORDER BY p.id
			LIMIT 1`, key)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return offline.Entry{}, offline.ErrCacheMiss
	}
	if err != nil {
		return offline.Entry{}, fmt.Errorf("match cache entry %s: %w", key, err)
	}

	return offline.Entry{
		Key:      row.Key,
		Status:   row.Status,
		Header:   http.Header(row.Header),
		Body:     row.Body,
		StoredAt: row.StoredAt.UTC(),
	}, nil
}
