package database

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// TestDB wraps a test database connection with cleanup
type TestDB struct {
	*DB
	container testcontainers.Container
	connStr   string
}

// SetupTestDB creates a new PostgreSQL container and returns a migrated DB
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := New(connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	testDB := &TestDB{
		DB:        db,
		container: pgContainer,
		connStr:   connStr,
	}

	if err := testDB.Migrate(); err != nil {
		testDB.Cleanup(t)
		t.Fatalf("failed to run migrations: %v", err)
	}

	return testDB
}

// Cleanup closes the database connection and terminates the container
func (tdb *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tdb.DB != nil {
		tdb.DB.Close()
	}

	if tdb.container != nil {
		if err := tdb.container.Terminate(ctx); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	}
}

// TruncateAll truncates all tables for test isolation
func (tdb *TestDB) TruncateAll(t *testing.T) {
	t.Helper()

	tables := []string{
		"stocks_bases",
		"stock_bases",
		"stocks",
		"auth_tokens",
		"users",
	}

	for _, table := range tables {
		_, err := tdb.conn.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table))
		if err != nil {
			t.Fatalf("failed to truncate table %s: %v", table, err)
		}
	}
}

// GetRawConn returns the underlying sql.DB for direct queries in tests
func (tdb *TestDB) GetRawConn() *sql.DB {
	return tdb.conn
}

// CreateTestUser inserts a user with the given email
func (tdb *TestDB) CreateTestUser(t *testing.T, email string) *models.User {
	t.Helper()
	u, err := models.NewUser(email, "testP@ssw0rd24601", "")
	require.NoError(t, err)
	require.NoError(t, tdb.CreateUser(context.Background(), u))
	return u
}

// CreateTestStock inserts an amd-1 run owned by user
func (tdb *TestDB) CreateTestStock(t *testing.T, user *models.User, ticker string) *models.Stock {
	t.Helper()
	s := &models.Stock{
		UserID:    user.ID,
		Ticker:    ticker,
		StartDate: models.NewDate(2015, time.October, 20),
		EndDate:   models.NewDate(2017, time.October, 20),
		NumBases:  4,
		Sector:    "Electronic Technology",
		LengthRun: 90,
		PctGain:   decimal.RequireFromString("123.4"),
	}
	require.NoError(t, tdb.CreateStock(context.Background(), s, nil))
	return s
}

// CreateTestStockBase inserts a base owned by user referencing stock (which may be nil)
func (tdb *TestDB) CreateTestStockBase(t *testing.T, user *models.User, stock *models.Stock, ticker string, baseCount int) *models.StockBase {
	t.Helper()
	failure := "n"
	length := 4
	b := &models.StockBase{
		UserID:            user.ID,
		Ticker:            ticker,
		BaseCount:         baseCount,
		BaseFailure:       &failure,
		BoDate:            models.NewDate(2015, time.July, 28),
		BaseLength:        &length,
		PricePercentRange: decimal.NewNullDecimal(decimal.RequireFromString("24.3")),
	}
	if stock != nil {
		b.StockReferenceID = &stock.ID
	}
	require.NoError(t, insertStockBase(context.Background(), tdb.conn, b))
	return b
}
