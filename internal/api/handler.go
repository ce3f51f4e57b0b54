package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/marketplace-server/internal/auth"
	"github.com/rongwang/marketplace-server/internal/models"
	"github.com/rongwang/marketplace-server/internal/service"
)

// Handler serves the HTTP API on top of the service
type Handler struct {
	svc      service.Service
	resolver *auth.Resolver
	db       *sqlx.DB
	logger   *slog.Logger
}

// NewHandler creates a new API handler. db is only used by the health check
// and may be nil.
func NewHandler(svc service.Service, resolver *auth.Resolver, db *sqlx.DB, logger *slog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		resolver: resolver,
		db:       db,
		logger:   logger,
	}
}

// SetupRoutes registers all routes on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(RequestLogger(h.logger))

	router.GET("/healthz", h.Health)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/external", h.LoginExternal)

		api.GET("/listings", h.ListListings)
		api.GET("/listings/:id", h.GetListing)

		protected := api.Group("")
		protected.Use(AuthMiddleware(h.resolver))
		protected.DELETE("/accounts/:id", h.DeleteAccount)
		protected.POST("/listings", h.CreateListing)
		protected.PUT("/listings/:id", h.UpdateListing)
		protected.DELETE("/listings/:id", h.DeleteListing)
		protected.POST("/purchases", h.Purchase)
		protected.GET("/purchases", h.PurchaseHistory)
		protected.POST("/orders", h.PlaceOrder)
	}
}

func (h *Handler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			h.logger.ErrorContext(c.Request.Context(), "health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, models.MessageResponse{Status: "error", Message: "database unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "ok"})
}

// Account handlers

func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) LoginExternal(c *gin.Context) {
	var req models.ExternalLoginRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.svc.LoginExternal(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteAccount(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	principal, _ := principalFrom(c)
	if err := h.svc.DeleteAccount(c.Request.Context(), principal, id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "account deleted"})
}

// Catalog handlers

func (h *Handler) ListListings(c *gin.Context) {
	resp, err := h.svc.ListListings(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetListing(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	resp, err := h.svc.GetListing(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) CreateListing(c *gin.Context) {
	var req models.CreateListingRequest
	if !h.bind(c, &req) {
		return
	}

	principal, _ := principalFrom(c)
	resp, err := h.svc.CreateListing(c.Request.Context(), principal, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) UpdateListing(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req models.UpdateListingRequest
	if !h.bind(c, &req) {
		return
	}

	principal, _ := principalFrom(c)
	resp, err := h.svc.UpdateListing(c.Request.Context(), principal, id, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) DeleteListing(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	principal, _ := principalFrom(c)
	if err := h.svc.DeleteListing(c.Request.Context(), principal, id); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Status: "success", Message: "product deleted"})
}

// Ledger handlers

func (h *Handler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if !h.bind(c, &req) {
		return
	}

	principal, _ := principalFrom(c)
	resp, err := h.svc.Purchase(c.Request.Context(), principal, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	var req models.OrderRequest
	if !h.bind(c, &req) {
		return
	}

	principal, _ := principalFrom(c)
	resp, err := h.svc.PlaceOrder(c.Request.Context(), principal, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) PurchaseHistory(c *gin.Context) {
	var filter models.HistoryFilter

	for param, dest := range map[string]*int64{"accountId": &filter.AccountID, "listingId": &filter.ListingID} {
		if raw := c.Query(param); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 1 {
				h.badRequest(c, "invalid "+param)
				return
			}
			*dest = v
		}
	}

	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.badRequest(c, "invalid limit")
			return
		}
		filter.Limit = v
	}

	principal, _ := principalFrom(c)
	resp, err := h.svc.PurchaseHistory(c.Request.Context(), principal, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Helper methods

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.badRequest(c, err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		h.badRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: message,
	})
}

// writeError maps an error kind onto an HTTP status. Storage failures are
// logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		h.logger.ErrorContext(c.Request.Context(), "request error",
			"request_id", c.GetString(requestIDKey), "error", err)
		message = "internal server error"
	case http.StatusUnauthorized:
		message = "Authentication required"
		if errors.Is(err, models.ErrInvalidCredentials) {
			message = models.ErrInvalidCredentials.Error()
		}
	}

	c.JSON(status, models.ErrorResponse{
		Status:  "error",
		Code:    code,
		Message: message,
	})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, models.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS"
	case errors.Is(err, models.ErrInsufficientStock):
		return http.StatusConflict, "INSUFFICIENT_STOCK"
	case errors.Is(err, models.ErrInvalidQuantity):
		return http.StatusBadRequest, "INVALID_QUANTITY"
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, "INVALID_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
