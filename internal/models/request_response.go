package models

// Request models
// Password is a pointer so that an explicit 0 is accepted and only an
// absent value fails binding.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Password *int64 `json:"password" binding:"required"`
}

type LoginRequest struct {
	Name     string `json:"name" binding:"required"`
	Password *int64 `json:"password" binding:"required"`
}

// ExternalLoginRequest carries the identity assertion issued by the
// federation gateway after the provider's redirect round-trip.
type ExternalLoginRequest struct {
	Assertion string `json:"assertion" binding:"required"`
}

type CreateListingRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Description *string `json:"description"`
	Price       int64   `json:"price" binding:"min=0"`
	ImageURL    *string `json:"imageUrl"`
	Stock       *int64  `json:"stock" binding:"omitempty,min=0"`
}

type UpdateListingRequest struct {
	Name        string  `json:"name" binding:"required,max=255"`
	Description *string `json:"description"`
	Price       int64   `json:"price" binding:"min=0"`
	ImageURL    *string `json:"imageUrl"`
	Stock       *int64  `json:"stock" binding:"omitempty,min=0"`
}

type PurchaseRequest struct {
	ListingID int64 `json:"listingId" binding:"required"`
	Quantity  int64 `json:"quantity"`
}

type OrderRequest struct {
	Lines []OrderLine `json:"lines" binding:"required,dive"`
}

// Response models
type AuthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	AccountID int64  `json:"accountId,omitempty"`
	Name      string `json:"name,omitempty"`
	Level     Level  `json:"level,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresIn int    `json:"expiresIn,omitempty"`
}

type ListingResponse struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Listing *Listing `json:"data,omitempty"`
}

type ListingsResponse struct {
	Status   string    `json:"status"`
	Listings []Listing `json:"data"`
}

type PurchaseResponse struct {
	Status   string          `json:"status"`
	Message  string          `json:"message"`
	Purchase *PurchaseRecord `json:"data"`
	Total    int64           `json:"total"`
	Time     string          `json:"time"`
}

type OrderResponse struct {
	Status  string           `json:"status"`
	OrderID string           `json:"orderId"`
	Lines   []PurchaseRecord `json:"data"`
	Total   int64            `json:"total"`
	Time    string           `json:"time"`
}

type HistoryItem struct {
	HistoryEntry
	Total int64 `json:"total"`
}

type PurchaseHistoryResponse struct {
	Status  string        `json:"status"`
	Entries []HistoryItem `json:"data"`
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
