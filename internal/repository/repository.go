package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/marketplace-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// Account operations
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByName(ctx context.Context, name string) (*models.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
	LinkExternalAccount(ctx context.Context, email string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	CountAccounts(ctx context.Context) (int64, error)

	// Catalog operations
	CreateListing(ctx context.Context, listing *models.Listing) error
	UpdateListing(ctx context.Context, id int64, update models.ListingUpdate) error
	DeleteListing(ctx context.Context, id int64) error
	GetListing(ctx context.Context, id int64) (*models.Listing, error)
	ListListings(ctx context.Context) ([]models.Listing, error)
	CountListings(ctx context.Context) (int64, error)

	// Ledger operations
	Purchase(ctx context.Context, accountID, listingID, quantity int64) (*models.PurchaseRecord, error)
	PlaceOrder(ctx context.Context, accountID int64, lines []models.OrderLine) ([]models.PurchaseRecord, error)
	GetPurchaseHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, error)

	// StockMode reports how the ledger treats listing stock.
	StockMode() models.StockMode
}

// dbtx is the subset of sqlx shared by *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExecerContext
	sqlx.QueryerContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Rebind(query string) string
}

// SQLRepository implements the Repository interface on PostgreSQL or SQLite
type SQLRepository struct {
	db        *sqlx.DB
	stockMode models.StockMode
	builder   sq.StatementBuilderType
	now       func() time.Time
}

// NewSQLRepository creates a new repository. The stock mode is fixed for the
// lifetime of the repository.
func NewSQLRepository(db *sqlx.DB, stockMode models.StockMode) *SQLRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if sqlx.BindType(db.DriverName()) == sqlx.DOLLAR {
		placeholder = sq.Dollar
	}

	if stockMode != models.StockUnlimited {
		stockMode = models.StockFinite
	}

	return &SQLRepository{
		db:        db,
		stockMode: stockMode,
		builder:   sq.StatementBuilder.PlaceholderFormat(placeholder),
		now:       time.Now,
	}
}

// GetDB returns the underlying database connection
func (r *SQLRepository) GetDB() *sqlx.DB {
	return r.db
}

// StockMode reports how the ledger treats listing stock
func (r *SQLRepository) StockMode() models.StockMode {
	return r.stockMode
}

func (r *SQLRepository) tracksStock() bool {
	return r.stockMode == models.StockFinite
}

func (r *SQLRepository) isPostgres() bool {
	return sqlx.BindType(r.db.DriverName()) == sqlx.DOLLAR
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func (r *SQLRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.StorageError("begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = models.StorageError("commit transaction", cerr)
		}
	}()

	err = fn(tx)
	return err
}

// count returns the number of rows in table. table is never user input.
func (r *SQLRepository) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM "+table); err != nil {
		return 0, models.StorageError("count "+table, err)
	}
	return n, nil
}

// isUniqueViolation reports whether err is a unique constraint violation in
// either supported database.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
