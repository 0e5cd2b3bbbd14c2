// Package dataapi is the storefront's client for the hosted Postgres backend:
// catalogue reads, the active payment methods, order creation and the order outbox.
package dataapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	SSLMode           string
	MigrationsDirPath string
}

type Client struct {
	db      *sql.DB
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

func NewClient(cred *Credentials, logger *zap.Logger) (*Client, error) {
	sslMode := cred.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName,
		sslMode)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	logger.Info("connected to postgres", zap.String("host", cred.Host), zap.String("db", cred.DBName))
	return NewClientFromDB(db, logger), nil
}

// NewClientFromDB wraps an already opened database.
func NewClientFromDB(db *sql.DB, logger *zap.Logger) *Client {
	settings := circuitbreaker.DefaultSettings("dataapi")
	settings.IsSuccessful = isSuccessful
	return &Client{
		db:      db,
		breaker: circuitbreaker.New(settings, logger),
		logger:  logger,
	}
}

// isSuccessful keeps lookups of absent rows from tripping the breaker.
func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, context.Canceled)
}

func (c *Client) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(c.db, &postgres.Config{
		MigrationsTable: "storefront_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.db.Close()
}
