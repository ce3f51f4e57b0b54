package models

import "fmt"

// Level is an account's privilege level.
type Level int

// The zero value is deliberately not a valid level.
const (
	LevelAdministrator Level = 1
	LevelMember        Level = 2
)

// Valid reports whether l is one of the known levels
func (l Level) Valid() bool {
	return l == LevelAdministrator || l == LevelMember
}

func (l Level) String() string {
	switch l {
	case LevelAdministrator:
		return "administrator"
	case LevelMember:
		return "member"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Account origins
const (
	OriginLocal    = "local"
	OriginExternal = "external"
)

// ExternalCredential is stored instead of a password hash for accounts created
// through identity federation. It is not a valid bcrypt hash.
const ExternalCredential = "!external"

// StockMode selects whether listings carry a finite stock
type StockMode string

const (
	StockFinite    StockMode = "finite"
	StockUnlimited StockMode = "unlimited"
)

// Principal is an authenticated caller
type Principal struct {
	AccountID int64 `json:"accountId"`
	Level     Level `json:"level"`
}

// IsAdministrator reports whether the principal holds administrator privilege.
func (p Principal) IsAdministrator() bool {
	return p.Level == LevelAdministrator
}

// Account represents a registered customer or seller
type Account struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"name"`
	Credential string `db:"credential" json:"-"` // bcrypt hash or ExternalCredential
	Level      Level  `db:"level" json:"level"`
	Origin     string `db:"origin" json:"origin"`
	CreatedAt  int64  `db:"created_at" json:"createdAt"`
}

// Principal returns the principal this account authenticates as.
func (a *Account) Principal() Principal {
	return Principal{AccountID: a.ID, Level: a.Level}
}

// Listing represents a product offered for sale
type Listing struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
	OwnerID     int64   `db:"owner_id" json:"sellerId"`
	Price       int64   `db:"price" json:"price"`
	ImageURL    *string `db:"image_url" json:"imageUrl,omitempty"`
	Stock       *int64  `db:"stock" json:"stock,omitempty"` // nil when supply is unlimited
	CreatedAt   int64   `db:"created_at" json:"createdAt"`
}

// ListingUpdate carries the mutable fields of a listing. Stock is applied only
// when non-nil and stock is tracked.
type ListingUpdate struct {
	Name        string
	Description *string
	Price       int64
	ImageURL    *string
	Stock       *int64
}

// PurchaseRecord is an immutable record of one purchased line
type PurchaseRecord struct {
	ID          int64  `db:"id" json:"id"`
	AccountID   int64  `db:"account_id" json:"accountId"`
	ListingID   int64  `db:"listing_id" json:"listingId"`
	OrderID     string `db:"order_id" json:"orderId"`
	Quantity    int64  `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unitPrice"`
	PurchasedAt int64  `db:"purchased_at" json:"purchasedAt"`
}

// Total is the monetary total of the record at its captured unit price.
func (r *PurchaseRecord) Total() int64 {
	return r.UnitPrice * r.Quantity
}

// OrderLine is one requested line of a multi-item order
type OrderLine struct {
	ListingID int64 `json:"listingId" binding:"required"`
	Quantity  int64 `json:"quantity"`
}

// HistoryEntry is a purchase record joined with the names it refers to.
// Names are nil when the account or listing no longer exists.
type HistoryEntry struct {
	PurchaseRecord
	AccountName *string `db:"account_name" json:"customer"`
	ListingName *string `db:"listing_name" json:"product"`
}

// HistoryFilter narrows a purchase history query. Zero values mean "any".
type HistoryFilter struct {
	AccountID int64
	ListingID int64
	Limit     uint64
}
