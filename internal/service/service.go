package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/rongwang/marketplace-server/internal/auth"
	"github.com/rongwang/marketplace-server/internal/models"
	"github.com/rongwang/marketplace-server/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const timeLayout = "2006-01-02 15:04:05"

// Service defines all the business logic operations
type Service interface {
	// Accounts
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	LoginExternal(ctx context.Context, req models.ExternalLoginRequest) (*models.AuthResponse, error)
	DeleteAccount(ctx context.Context, principal models.Principal, accountID int64) error

	// Catalog
	ListListings(ctx context.Context) (*models.ListingsResponse, error)
	GetListing(ctx context.Context, listingID int64) (*models.ListingResponse, error)
	CreateListing(ctx context.Context, principal models.Principal, req models.CreateListingRequest) (*models.ListingResponse, error)
	UpdateListing(ctx context.Context, principal models.Principal, listingID int64, req models.UpdateListingRequest) (*models.ListingResponse, error)
	DeleteListing(ctx context.Context, principal models.Principal, listingID int64) error

	// Ledger
	Purchase(ctx context.Context, principal models.Principal, req models.PurchaseRequest) (*models.PurchaseResponse, error)
	PlaceOrder(ctx context.Context, principal models.Principal, req models.OrderRequest) (*models.OrderResponse, error)
	PurchaseHistory(ctx context.Context, principal models.Principal, filter models.HistoryFilter) (*models.PurchaseHistoryResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo     repository.Repository
	tokens   *auth.TokenCodec
	external *auth.ExternalVerifier
	logger   *slog.Logger
	hashCost int
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(
	repo repository.Repository,
	tokens *auth.TokenCodec,
	external *auth.ExternalVerifier,
	logger *slog.Logger,
) *DefaultService {
	return &DefaultService{
		repo:     repo,
		tokens:   tokens,
		external: external,
		logger:   logger,
		hashCost: bcrypt.DefaultCost,
	}
}

// Account methods

// Register creates a member account. The name must not be taken.
func (s *DefaultService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	if req.Password == nil {
		return nil, models.ErrMissingPassword
	}

	account, err := s.createAccount(ctx, req.Name, *req.Password, models.LevelMember)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "name", account.Name)

	return &models.AuthResponse{
		Status:    "success",
		Message:   "account created",
		AccountID: account.ID,
		Name:      account.Name,
		Level:     account.Level,
	}, nil
}

func (s *DefaultService) createAccount(ctx context.Context, name string, password int64, level models.Level) (*models.Account, error) {
	// Check if account already exists
	existing, err := s.repo.GetAccountByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("error checking account existence: %w", err)
	}
	if existing != nil {
		return nil, models.ErrAccountExists
	}

	// Hash the credential
	hashed, err := bcrypt.GenerateFromPassword([]byte(credentialString(password)), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing credential: %w", err)
	}

	account := &models.Account{
		Name:       name,
		Credential: string(hashed),
		Level:      level,
		Origin:     models.OriginLocal,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("error creating account: %w", err)
	}

	return account, nil
}

// Authenticate checks a local credential. Accounts created through identity
// federation never authenticate this way.
func (s *DefaultService) Authenticate(ctx context.Context, name string, password int64) (models.Principal, error) {
	account, err := s.repo.GetAccountByName(ctx, name)
	if err != nil {
		return models.Principal{}, fmt.Errorf("error getting account: %w", err)
	}

	if account == nil || account.Credential == models.ExternalCredential {
		return models.Principal{}, models.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Credential), []byte(credentialString(password))); err != nil {
		return models.Principal{}, models.ErrInvalidCredentials
	}

	return account.Principal(), nil
}

func (s *DefaultService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	if req.Password == nil {
		return nil, models.ErrMissingPassword
	}

	principal, err := s.Authenticate(ctx, req.Name, *req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			s.logger.InfoContext(ctx, "login rejected", "name", req.Name)
		}
		return nil, err
	}

	return s.issue(principal, req.Name, "login successful")
}

// LinkExternalIdentity returns the principal for a verified external email,
// creating a member account on first use.
func (s *DefaultService) LinkExternalIdentity(ctx context.Context, email string) (models.Principal, error) {
	account, err := s.repo.LinkExternalAccount(ctx, email)
	if err != nil {
		return models.Principal{}, fmt.Errorf("error linking external identity: %w", err)
	}

	return account.Principal(), nil
}

func (s *DefaultService) LoginExternal(ctx context.Context, req models.ExternalLoginRequest) (*models.AuthResponse, error) {
	email, err := s.external.Verify(req.Assertion)
	if err != nil {
		return nil, err
	}

	principal, err := s.LinkExternalIdentity(ctx, email)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "external login", "account_id", principal.AccountID)

	return s.issue(principal, email, "login successful")
}

func (s *DefaultService) issue(principal models.Principal, name, message string) (*models.AuthResponse, error) {
	token, _, err := s.tokens.Issue(principal.AccountID, principal.Level)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &models.AuthResponse{
		Status:    "success",
		Message:   message,
		AccountID: principal.AccountID,
		Name:      name,
		Level:     principal.Level,
		Token:     token,
		ExpiresIn: int(s.tokens.TTL().Seconds()),
	}, nil
}

// DeleteAccount removes another account. Only administrators may do it and
// never to their own account.
func (s *DefaultService) DeleteAccount(ctx context.Context, principal models.Principal, accountID int64) error {
	if err := auth.Require(principal, models.LevelAdministrator); err != nil {
		return err
	}
	if err := auth.RequireNotSelf(principal, accountID); err != nil {
		return err
	}

	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("error deleting account: %w", err)
	}

	s.logger.InfoContext(ctx, "account deleted", "account_id", accountID, "by", principal.AccountID)
	return nil
}

// Catalog methods

func (s *DefaultService) ListListings(ctx context.Context) (*models.ListingsResponse, error) {
	listings, err := s.repo.ListListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing products: %w", err)
	}

	return &models.ListingsResponse{
		Status:   "success",
		Listings: listings,
	}, nil
}

func (s *DefaultService) GetListing(ctx context.Context, listingID int64) (*models.ListingResponse, error) {
	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return &models.ListingResponse{
		Status:  "success",
		Listing: listing,
	}, nil
}

func (s *DefaultService) CreateListing(
	ctx context.Context,
	principal models.Principal,
	req models.CreateListingRequest,
) (*models.ListingResponse, error) {
	if err := auth.Require(principal, models.LevelAdministrator); err != nil {
		return nil, err
	}
	if req.Price < 0 {
		return nil, models.ErrNegativePrice
	}

	listing := &models.Listing{
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     principal.AccountID,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	s.logger.InfoContext(ctx, "listing created", "listing_id", listing.ID, "owner_id", listing.OwnerID)

	return &models.ListingResponse{
		Status:  "success",
		Message: "product created",
		Listing: listing,
	}, nil
}

func (s *DefaultService) UpdateListing(
	ctx context.Context,
	principal models.Principal,
	listingID int64,
	req models.UpdateListingRequest,
) (*models.ListingResponse, error) {
	if err := auth.Require(principal, models.LevelAdministrator); err != nil {
		return nil, err
	}
	if req.Price < 0 {
		return nil, models.ErrNegativePrice
	}

	update := models.ListingUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ImageURL:    req.ImageURL,
		Stock:       req.Stock,
	}

	if err := s.repo.UpdateListing(ctx, listingID, update); err != nil {
		return nil, fmt.Errorf("error updating product: %w", err)
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("error getting product: %w", err)
	}

	return &models.ListingResponse{
		Status:  "success",
		Message: "product updated",
		Listing: listing,
	}, nil
}

func (s *DefaultService) DeleteListing(ctx context.Context, principal models.Principal, listingID int64) error {
	if err := auth.Require(principal, models.LevelAdministrator); err != nil {
		return err
	}

	if err := s.repo.DeleteListing(ctx, listingID); err != nil {
		return fmt.Errorf("error deleting product: %w", err)
	}

	s.logger.InfoContext(ctx, "listing deleted", "listing_id", listingID, "by", principal.AccountID)
	return nil
}

// Ledger methods

// Purchase buys quantity units of a listing for the calling account.
func (s *DefaultService) Purchase(
	ctx context.Context,
	principal models.Principal,
	req models.PurchaseRequest,
) (*models.PurchaseResponse, error) {
	if req.Quantity < 1 {
		return nil, models.ErrInvalidQuantity
	}

	record, err := s.repo.Purchase(ctx, principal.AccountID, req.ListingID, req.Quantity)
	if err != nil {
		s.logPurchaseFailure(ctx, principal, err)
		return nil, fmt.Errorf("error recording purchase: %w", err)
	}

	s.logger.InfoContext(ctx, "purchase recorded",
		"purchase_id", record.ID, "account_id", record.AccountID,
		"listing_id", record.ListingID, "quantity", record.Quantity)

	return &models.PurchaseResponse{
		Status:   "success",
		Message:  fmt.Sprintf("purchased %d unit(s) of product %d", record.Quantity, record.ListingID),
		Purchase: record,
		Total:    record.Total(),
		Time:     formatTime(record.PurchasedAt),
	}, nil
}

// PlaceOrder buys several listings at once; either every line succeeds or
// nothing is recorded.
func (s *DefaultService) PlaceOrder(
	ctx context.Context,
	principal models.Principal,
	req models.OrderRequest,
) (*models.OrderResponse, error) {
	if len(req.Lines) == 0 {
		return nil, models.ErrEmptyOrder
	}
	for _, line := range req.Lines {
		if line.Quantity < 1 {
			return nil, models.ErrInvalidQuantity
		}
	}

	records, err := s.repo.PlaceOrder(ctx, principal.AccountID, req.Lines)
	if err != nil {
		s.logPurchaseFailure(ctx, principal, err)
		return nil, fmt.Errorf("error placing order: %w", err)
	}

	var total int64
	for i := range records {
		total += records[i].Total()
	}

	s.logger.InfoContext(ctx, "order placed",
		"order_id", records[0].OrderID, "account_id", principal.AccountID,
		"lines", len(records), "total", total)

	return &models.OrderResponse{
		Status:  "success",
		OrderID: records[0].OrderID,
		Lines:   records,
		Total:   total,
		Time:    formatTime(records[0].PurchasedAt),
	}, nil
}

// PurchaseHistory lists purchases. Members only ever see their own;
// administrators see everything unless they filter by account.
func (s *DefaultService) PurchaseHistory(
	ctx context.Context,
	principal models.Principal,
	filter models.HistoryFilter,
) (*models.PurchaseHistoryResponse, error) {
	if !principal.IsAdministrator() {
		if filter.AccountID != 0 && filter.AccountID != principal.AccountID {
			return nil, fmt.Errorf("%w: cannot view another account's purchases", models.ErrForbidden)
		}
		filter.AccountID = principal.AccountID
	}

	entries, err := s.repo.GetPurchaseHistory(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error getting purchase history: %w", err)
	}

	items := make([]models.HistoryItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, models.HistoryItem{
			HistoryEntry: entry,
			Total:        entry.PurchaseRecord.Total(),
		})
	}

	return &models.PurchaseHistoryResponse{
		Status:  "success",
		Entries: items,
	}, nil
}

func (s *DefaultService) logPurchaseFailure(ctx context.Context, principal models.Principal, err error) {
	if errors.Is(err, models.ErrStorageFailure) {
		s.logger.ErrorContext(ctx, "purchase failed", "account_id", principal.AccountID, "error", err)
		return
	}
	s.logger.InfoContext(ctx, "purchase rejected", "account_id", principal.AccountID, "reason", err.Error())
}

// Helper methods
func credentialString(password int64) string {
	return strconv.FormatInt(password, 10)
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(timeLayout)
}
