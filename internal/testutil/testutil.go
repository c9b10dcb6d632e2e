// Package testutil provides shared helpers for integration tests. Redis and
// Postgres backed tests are skipped unless TEST_REDIS_ADDR or
// TEST_DATABASE_DSN is set; set TEST_REQUIRE_INFRA=true to fail instead.
package testutil

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"storefront-auth/internal/db"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func requireInfra() bool {
	return strings.EqualFold(os.Getenv("TEST_REQUIRE_INFRA"), "true")
}

func skipOrFail(t testing.TB, format string, args ...any) {
	t.Helper()
	if requireInfra() {
		t.Fatalf(format, args...)
	}
	t.Skipf(format, args...)
}

// SetupTestRedis returns a client for TEST_REDIS_ADDR and a key prefix unique
// to the test. Keys under the prefix are removed on cleanup.
func SetupTestRedis(t testing.TB) (*redis.Client, string) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		skipOrFail(t, "Redis not available for testing (TEST_REDIS_ADDR unset)")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		if cerr := client.Close(); cerr != nil {
			t.Logf("warning: failed to close redis client after ping error: %v", cerr)
		}
		skipOrFail(t, "Redis not available for testing at %s: %v", addr, err)
	}

	prefix := "test:" + uuid.NewString() + ":"

	t.Cleanup(func() {
		ctx := context.Background()
		keys, err := client.Keys(ctx, prefix+"*").Result()
		if err == nil && len(keys) > 0 {
			_ = client.Del(ctx, keys...).Err()
		}
		_ = client.Close()
	})

	return client, prefix
}

// SetupTestDB opens TEST_DATABASE_DSN with the pgx driver and applies the
// schema. Callers should use unique emails since rows are not truncated.
func SetupTestDB(t testing.TB) *db.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		skipOrFail(t, "Postgres not available for testing (TEST_DATABASE_DSN unset)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	database, err := db.Open(ctx, "pgx", dsn)
	if err != nil {
		skipOrFail(t, "Postgres not available for testing: %v", err)
	}

	t.Cleanup(func() { _ = database.Close() })

	return database
}

// UniqueEmail returns an email address that will not collide across runs.
func UniqueEmail(local string) string {
	return local + "+" + uuid.NewString()[:8] + "@example.test"
}
