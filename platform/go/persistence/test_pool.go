package persistence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// mustTestPool returns a connection pool with the directory DDL applied.
// When TEST_DATABASE_URL is set it is used directly; otherwise a throwaway
// Postgres container is started via Testcontainers. Tests that cannot reach
// either are skipped.
func mustTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	ctx := context.Background()
	connString := testDatabaseURL(t)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		t.Fatalf("create test pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := Bootstrap(ctx, pool); err != nil {
		t.Fatalf("apply directory schema: %v", err)
	}

	return pool
}

func testDatabaseURL(t *testing.T) string {
	t.Helper()

	if url, ok := os.LookupEnv("TEST_DATABASE_URL"); ok && url != "" {
		return url
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("firmdir"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("no TEST_DATABASE_URL and no docker available: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("container connection string: %v", err)
	}

	return connString
}
