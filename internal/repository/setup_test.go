package repository

import (
	"commerce_service/internal/domain"
	"commerce_service/pkg/db"
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://testuser:testpass@%s:%d/testdb?sslmode=disable", host, port.Int())

	conn, err := db.Connect(dsn)
	require.NoError(t, err)

	err = db.RunMigrations(conn, "../../migrations")
	require.NoError(t, err)

	cleanup := func() {
		conn.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return conn, cleanup
}

func seedProduct(t *testing.T, conn *sql.DB, name string, price float64, inventory int) int {
	t.Helper()
	var id int
	err := conn.QueryRow(
		`INSERT INTO products (name, price, inventory) VALUES ($1, $2, $3) RETURNING id`,
		name, price, inventory,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func productInventory(t *testing.T, conn *sql.DB, productID int) int {
	t.Helper()
	var inventory int
	err := conn.QueryRow(`SELECT inventory FROM products WHERE id = $1`, productID).Scan(&inventory)
	require.NoError(t, err)
	return inventory
}

func countRows(t *testing.T, conn *sql.DB, table string) int {
	t.Helper()
	var count int
	err := conn.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&count)
	require.NoError(t, err)
	return count
}

func testCustomer() domain.Customer {
	return domain.Customer{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Address: "1 Main St",
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func seedPromoInput() *domain.PromoCode {
	now := time.Now()
	return &domain.PromoCode{
		Code:          "SUMMER10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		ValidFrom:     now.Add(-24 * time.Hour),
		ValidUntil:    now.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func seedPromo(t *testing.T, repo domain.PromoRepository, mutate func(*domain.PromoCode)) *domain.PromoCode {
	t.Helper()
	promo := seedPromoInput()
	if mutate != nil {
		mutate(promo)
	}
	created, err := repo.CreatePromoCode(context.Background(), promo)
	require.NoError(t, err)
	return created
}
