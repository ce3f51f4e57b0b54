package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/marketplace-server/internal/models"
)

// Purchase records a single purchase of quantity units of a listing at its
// current price, decrementing stock when stock is tracked.
func (r *SQLRepository) Purchase(ctx context.Context, accountID, listingID, quantity int64) (*models.PurchaseRecord, error) {
	records, err := r.PlaceOrder(ctx, accountID, []models.OrderLine{{ListingID: listingID, Quantity: quantity}})
	if err != nil {
		return nil, err
	}

	return &records[0], nil
}

// PlaceOrder records every line of an order in one transaction. Either all
// lines are recorded and all stock decremented, or nothing is written.
// Lines are processed, and returned, in listing id order so that concurrent
// orders lock listing rows in the same order.
func (r *SQLRepository) PlaceOrder(ctx context.Context, accountID int64, lines []models.OrderLine) ([]models.PurchaseRecord, error) {
	if len(lines) == 0 {
		return nil, models.ErrEmptyOrder
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, models.ErrInvalidQuantity
		}
	}

	ordered := slices.Clone(lines)
	slices.SortStableFunc(ordered, func(a, b models.OrderLine) int {
		switch {
		case a.ListingID < b.ListingID:
			return -1
		case a.ListingID > b.ListingID:
			return 1
		}
		return 0
	})

	orderID := uuid.NewString()
	purchasedAt := r.now().Unix()
	records := make([]models.PurchaseRecord, 0, len(ordered))

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := r.lockAccount(ctx, tx, accountID); err != nil {
			return err
		}

		for _, line := range ordered {
			unitPrice, err := r.takeStock(ctx, tx, line.ListingID, line.Quantity)
			if err != nil {
				return err
			}

			record := models.PurchaseRecord{
				AccountID:   accountID,
				ListingID:   line.ListingID,
				OrderID:     orderID,
				Quantity:    line.Quantity,
				UnitPrice:   unitPrice,
				PurchasedAt: purchasedAt,
			}

			query := tx.Rebind(`
				INSERT INTO purchases (account_id, listing_id, order_id, quantity, unit_price, purchased_at)
				VALUES (?, ?, ?, ?, ?, ?)
				RETURNING id
			`)
			err = tx.QueryRowxContext(ctx, query,
				record.AccountID, record.ListingID, record.OrderID,
				record.Quantity, record.UnitPrice, record.PurchasedAt).Scan(&record.ID)
			if err != nil {
				return models.StorageError("insert purchase", err)
			}

			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// lockAccount checks that the purchasing account exists. On PostgreSQL it
// also keeps the row from being deleted until the order commits.
func (r *SQLRepository) lockAccount(ctx context.Context, tx *sqlx.Tx, accountID int64) error {
	query := `SELECT id FROM accounts WHERE id = ?`
	if r.isPostgres() {
		query += ` FOR SHARE`
	}

	var id int64
	if err := tx.GetContext(ctx, &id, tx.Rebind(query), accountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrAccountNotFound
		}
		return models.StorageError("get account", err)
	}

	return nil
}

// takeStock reads the listing's current price and, when stock is tracked,
// decrements its stock by quantity. The decrement is guarded so it never
// takes stock below zero even without the row lock.
func (r *SQLRepository) takeStock(ctx context.Context, tx *sqlx.Tx, listingID, quantity int64) (int64, error) {
	query := `SELECT price, stock FROM listings WHERE id = ?`
	if r.isPostgres() {
		query += ` FOR UPDATE`
	}

	var listing struct {
		Price int64  `db:"price"`
		Stock *int64 `db:"stock"`
	}
	if err := tx.GetContext(ctx, &listing, tx.Rebind(query), listingID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, models.ErrListingNotFound
		}
		return 0, models.StorageError("get listing", err)
	}

	if !r.tracksStock() {
		return listing.Price, nil
	}

	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE listings SET stock = stock - ? WHERE id = ? AND stock >= ?`),
		quantity, listingID, quantity)
	if err != nil {
		return 0, models.StorageError("decrement stock", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, models.StorageError("decrement stock", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("listing %d: %w", listingID, models.ErrInsufficientStock)
	}

	return listing.Price, nil
}

// GetPurchaseHistory returns purchase records, oldest first, with the names of
// the account and listing they refer to when those still exist.
func (r *SQLRepository) GetPurchaseHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryEntry, error) {
	builder := r.builder.
		Select(
			"p.id", "p.account_id", "p.listing_id", "p.order_id",
			"p.quantity", "p.unit_price", "p.purchased_at",
			"a.name AS account_name", "l.name AS listing_name",
		).
		From("purchases p").
		LeftJoin("accounts a ON a.id = p.account_id").
		LeftJoin("listings l ON l.id = p.listing_id").
		OrderBy("p.id ASC")

	if filter.AccountID != 0 {
		builder = builder.Where(sq.Eq{"p.account_id": filter.AccountID})
	}
	if filter.ListingID != 0 {
		builder = builder.Where(sq.Eq{"p.listing_id": filter.ListingID})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, models.StorageError("build history query", err)
	}

	entries := []models.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, models.StorageError("get purchase history", err)
	}

	return entries, nil
}
