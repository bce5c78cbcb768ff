// Package testkit holds fixtures shared by repository, service, job and
// handler tests.
package testkit

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campaignledger/internal/config"
	"campaignledger/internal/infrastructure/database"
	"campaignledger/internal/infrastructure/lock"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection
// serializes transactions the way row locks would on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return openSQLite(t, "?_busy_timeout=5000", 1)
}

// NewPooledDB opens a migrated WAL-mode SQLite database with conns
// connections, so concurrent statements reach the database from separate
// connections and only the SQL guards keep them consistent.
func NewPooledDB(t testing.TB, conns int) *gorm.DB {
	t.Helper()
	return openSQLite(t, "?_busy_timeout=10000&_journal_mode=WAL", conns)
}

func openSQLite(t testing.TB, params string, conns int) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "ledger.db") + params
	db, err := database.Open(sqlite.Open(dsn), logger.Silent)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(conns)
	sqlDB.SetMaxIdleConns(conns)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewLocker returns a locker that retries often enough for heavily contended tests.
func NewLocker(client *redis.Client) *lock.Locker {
	return lock.NewLocker(client, 10*time.Second, 2*time.Millisecond, 5000)
}

// Config is config.Default with test-friendly lock settings.
func Config() *config.Config {
	cfg := config.Default()
	cfg.Lock.RetryInterval = 2 * time.Millisecond
	cfg.Lock.MaxRetries = 5000
	cfg.Withholding.Rates = map[string]string{"id": "0.20", "ph": "0.10"}
	return cfg
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}
