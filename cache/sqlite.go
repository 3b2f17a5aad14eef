package cache

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteCache struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       config
	waitGroup sync.WaitGroup
	once      sync.Once
}

var _ Cache = (*sqliteCache)(nil)

// NewSQLite returns a Cache backed by a SQLite database. If dbPath is empty
// or ":memory:", an in-memory database is used; a file path survives
// process restarts, making this a slow-tier option for single-node
// deployments without a Redis server. Expired rows are removed lazily on
// read and by a background goroutine at the WithExpiryCheck interval.
func NewSQLite(parent context.Context, dbPath string, opts ...Option) (Cache, error) {
	cfg := applyOptions(opts)
	if cfg.name == "" {
		cfg.name = "sqlite"
	}
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, backendErr(cfg.name, err)
	}

	// WAL mode for concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, backendErr(cfg.name, err)
	}

	// expires_at is unix nanos; 0 means no expiry.
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, backendErr(cfg.name, err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`); err != nil {
		db.Close()
		return nil, backendErr(cfg.name, err)
	}

	ctx, cancel := context.WithCancel(parent)
	c := &sqliteCache{
		db:     db,
		ctx:    ctx,
		cancel: cancel,
		cfg:    cfg,
	}
	c.waitGroup.Add(1)
	go c.run()
	return c, nil
}

func (c *sqliteCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *sqliteCache) Get(ctx context.Context, key string) ([]byte, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var data []byte
	var expiresAt int64
	err := c.db.QueryRowContext(qctx,
		`SELECT value, expires_at FROM cache WHERE key = ?`, key,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, backendErr(c.cfg.name, err)
	}
	if expiresAt != 0 && expiresAt < time.Now().UnixNano() {
		// Lazily delete the expired row.
		_, _ = c.db.ExecContext(qctx, `DELETE FROM cache WHERE key = ?`, key)
		return nil, ErrMiss
	}
	return data, nil
}

func (c *sqliteCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}
	rows, err := c.db.QueryContext(qctx,
		`SELECT key, value, expires_at FROM cache WHERE key IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, backendErr(c.cfg.name, err)
	}
	defer rows.Close()

	now := time.Now().UnixNano()
	for rows.Next() {
		var key string
		var data []byte
		var expiresAt int64
		if err := rows.Scan(&key, &data, &expiresAt); err != nil {
			return nil, backendErr(c.cfg.name, err)
		}
		if expiresAt != 0 && expiresAt < now {
			continue
		}
		result[key] = data
	}
	if err := rows.Err(); err != nil {
		return nil, backendErr(c.cfg.name, err)
	}
	return result, nil
}

func (c *sqliteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.cfg.defaultTTL
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl).UnixNano()
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	_, err := c.db.ExecContext(qctx,
		`INSERT INTO cache (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		return backendErr(c.cfg.name, err)
	}
	return nil
}

func (c *sqliteCache) Delete(ctx context.Context, key string) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(qctx, `DELETE FROM cache WHERE key = ?`, key); err != nil {
		return backendErr(c.cfg.name, err)
	}
	return nil
}

func (c *sqliteCache) Clear(ctx context.Context) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(qctx, `DELETE FROM cache`); err != nil {
		return backendErr(c.cfg.name, err)
	}
	return nil
}

func (c *sqliteCache) Name() string {
	return c.cfg.name
}

func (c *sqliteCache) Close() error {
	var dbErr error
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
		dbErr = c.db.Close()
	})
	return dbErr
}

func (c *sqliteCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			now := time.Now().UnixNano()
			_, _ = c.db.Exec(`DELETE FROM cache WHERE expires_at != 0 AND expires_at < ?`, now)
		}
	}
}
