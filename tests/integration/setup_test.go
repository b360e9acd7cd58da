// Package integration runs the repository, cache and end-to-end tests
// against real PostgreSQL and Redis instances. Containers are started via
// testcontainers unless DATABASE_URL / REDIS_URL point at external services
// (the CI path). The whole package is skipped under -short.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-central/internal/adapter/storage/postgres"
	"github.com/seu-repo/ocpp-central/internal/ports"
)

// testEnv holds the resources shared by every test in this package. It is
// built once, on first use, and torn down in TestMain.
type testEnv struct {
	db             *gorm.DB
	stations       ports.StationRepository
	transactions   ports.TransactionRepository
	authorizations ports.AuthorizationRepository
	reservations   ports.ReservationRepository
	redisURL       string
	log            *zap.Logger

	pgContainer    testcontainers.Container
	redisContainer testcontainers.Container
}

var env *testEnv

func TestMain(m *testing.M) {
	code := m.Run()
	teardownEnv()
	os.Exit(code)
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	if testing.Short() {
		t.Skip("integration tests skipped in short mode")
	}
	if env != nil {
		return env
	}

	ctx := context.Background()
	logger, _ := zap.NewDevelopment()

	e := &testEnv{log: logger}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
			tcpostgres.WithDatabase("ocpp_test"),
			tcpostgres.WithUsername("ocpp"),
			tcpostgres.WithPassword("ocpp_test"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("failed to start postgres container: %v", err)
		}
		e.pgContainer = container
		databaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("failed to resolve postgres connection string: %v", err)
		}
	}

	e.redisURL = os.Getenv("REDIS_URL")
	if e.redisURL == "" {
		container, err := tcredis.Run(ctx, "redis:7-alpine",
			testcontainers.WithWaitStrategy(
				wait.ForLog("Ready to accept connections").WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			t.Fatalf("failed to start redis container: %v", err)
		}
		e.redisContainer = container
		e.redisURL, err = container.ConnectionString(ctx)
		if err != nil {
			t.Fatalf("failed to resolve redis connection string: %v", err)
		}
	}

	db, err := postgres.NewConnection(databaseURL, logger)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	if err := postgres.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	guard := postgres.NewGuard(logger)
	e.db = db
	e.stations = postgres.NewStationRepository(db, guard, logger)
	e.transactions = postgres.NewTransactionRepository(db, guard, logger)
	e.authorizations = postgres.NewAuthorizationRepository(db, guard, logger)
	e.reservations = postgres.NewReservationRepository(db, guard, logger)

	env = e
	return env
}

func teardownEnv() {
	if env == nil {
		return
	}
	ctx := context.Background()
	if env.db != nil {
		_ = postgres.Close(env.db)
	}
	if env.redisContainer != nil {
		_ = env.redisContainer.Terminate(ctx)
	}
	if env.pgContainer != nil {
		_ = env.pgContainer.Terminate(ctx)
	}
	env = nil
}

// truncateAll resets every table so a test starts from a clean slate.
func truncateAll(t *testing.T) {
	t.Helper()
	err := env.db.Exec(`TRUNCATE TABLE
		stations, connectors, boot_events, heartbeats, status_history,
		firmware_status, diagnostics_status, transactions, meter_samples,
		authorization_records, authorizations, reservations
		RESTART IDENTITY CASCADE`).Error
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// countRows counts rows of the given model, bypassing the repositories.
func countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := env.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return n
}
