package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver, no cgo
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	return OpenDatabase(cfg.Database.Driver, cfg.Database.GetDSN(), cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
}

// OpenDatabase connects to dsn with the given driver and creates the tables
// if they don't exist.
func OpenDatabase(driver, dsn string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Set connection pool settings
	if driver == DriverSQLite {
		// SQLite has a single writer; an in-memory database also lives and
		// dies with its only connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxIdle)
	}

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// OpenInMemory opens an isolated in-memory SQLite database with all tables
// created. Each call returns a distinct database.
func OpenInMemory() (*sqlx.DB, error) {
	return OpenDatabase(DriverSQLite, sqliteDSN(":memory:"), 1, 1)
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_txlock=immediate"
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	idColumn := "BIGSERIAL PRIMARY KEY"
	if db.DriverName() == DriverSQLite {
		idColumn = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		// Create accounts table
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS accounts (
			id %s,
			name VARCHAR(255) UNIQUE NOT NULL,
			credential VARCHAR(255) NOT NULL,
			level SMALLINT NOT NULL,
			origin VARCHAR(16) NOT NULL,
			created_at BIGINT NOT NULL
		)`, idColumn),

		// Create listings table
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS listings (
			id %s,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			owner_id BIGINT NOT NULL,
			price BIGINT NOT NULL CHECK (price >= 0),
			image_url TEXT,
			stock BIGINT CHECK (stock IS NULL OR stock >= 0),
			created_at BIGINT NOT NULL
		)`, idColumn),

		// Purchases keep plain ids so that deleting a listing or an account
		// never rewrites history.
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS purchases (
			id %s,
			account_id BIGINT NOT NULL,
			listing_id BIGINT NOT NULL,
			order_id VARCHAR(36) NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity >= 1),
			unit_price BIGINT NOT NULL,
			purchased_at BIGINT NOT NULL
		)`, idColumn),
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_purchases_account_id ON purchases(account_id)",
		"CREATE INDEX IF NOT EXISTS idx_purchases_order_id ON purchases(order_id)",
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			// Indexes are not critical
			slog.WarnContext(context.Background(), "failed to create index", "error", err)
		}
	}

	return nil
}
