package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rongwang/marketplace-server/internal/models"
)

const listingColumns = `id, name, description, owner_id, price, image_url, stock, created_at`

// CreateListing inserts listing and sets its ID. When stock is not tracked the
// stock column is left NULL; when it is, a missing stock means zero.
func (r *SQLRepository) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.Price < 0 {
		return models.ErrNegativePrice
	}

	if !r.tracksStock() {
		listing.Stock = nil
	} else if listing.Stock == nil {
		zero := int64(0)
		listing.Stock = &zero
	} else if *listing.Stock < 0 {
		return models.ErrNegativeStock
	}

	if listing.CreatedAt == 0 {
		listing.CreatedAt = r.now().Unix()
	}

	query := r.db.Rebind(`
		INSERT INTO listings (name, description, owner_id, price, image_url, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.QueryRowxContext(ctx, query,
		listing.Name, listing.Description, listing.OwnerID, listing.Price,
		listing.ImageURL, listing.Stock, listing.CreatedAt).Scan(&listing.ID)
	if err != nil {
		return models.StorageError("insert listing", err)
	}

	return nil
}

// UpdateListing overwrites the listing's mutable fields.
func (r *SQLRepository) UpdateListing(ctx context.Context, id int64, update models.ListingUpdate) error {
	if update.Price < 0 {
		return models.ErrNegativePrice
	}

	builder := r.builder.Update("listings").
		Set("name", update.Name).
		Set("description", update.Description).
		Set("price", update.Price).
		Set("image_url", update.ImageURL).
		Where("id = ?", id)

	if update.Stock != nil && r.tracksStock() {
		if *update.Stock < 0 {
			return models.ErrNegativeStock
		}
		builder = builder.Set("stock", *update.Stock)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return models.StorageError("build listing update", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return models.StorageError("update listing", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.StorageError("update listing", err)
	}
	if n == 0 {
		return models.ErrListingNotFound
	}

	return nil
}

// DeleteListing removes the listing immediately. Purchases of it are kept.
func (r *SQLRepository) DeleteListing(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM listings WHERE id = ?`), id)
	if err != nil {
		return models.StorageError("delete listing", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return models.StorageError("delete listing", err)
	}
	if n == 0 {
		return models.ErrListingNotFound
	}

	return nil
}

// GetListing returns models.ErrListingNotFound when there is no such listing.
func (r *SQLRepository) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := r.db.Rebind(`SELECT ` + listingColumns + ` FROM listings WHERE id = ?`)

	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrListingNotFound
		}
		return nil, models.StorageError("get listing", err)
	}

	return &listing, nil
}

// ListListings returns all listings in insertion order.
func (r *SQLRepository) ListListings(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY id ASC`

	listings := []models.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, models.StorageError("list listings", err)
	}

	return listings, nil
}

func (r *SQLRepository) CountListings(ctx context.Context) (int64, error) {
	return r.count(ctx, "listings")
}
