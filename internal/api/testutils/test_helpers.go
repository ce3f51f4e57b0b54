package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/marketplace-server/internal/api"
	"github.com/rongwang/marketplace-server/internal/auth"
	"github.com/rongwang/marketplace-server/internal/config"
	"github.com/rongwang/marketplace-server/internal/models"
	"github.com/rongwang/marketplace-server/internal/repository"
	"github.com/rongwang/marketplace-server/internal/service"
	"github.com/rongwang/marketplace-server/internal/utils"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestJWTSecret      = "test-secret-key"
	TestExternalSecret = "test-federation-secret"
	TestExternalIssuer = "test-gateway"

	AdminName      = "seller"
	AdminPassword  = int64(1234)
	MemberName     = "customer"
	MemberPassword = int64(321)
)

// TestContext holds all dependencies for tests
type TestContext struct {
	Router     *gin.Engine
	Repository *repository.SQLRepository
	Service    *service.DefaultService
	Codec      *auth.TokenCodec
	DB         *sqlx.DB

	AdminID   int64
	AdminJWT  string
	MemberID  int64
	MemberJWT string
}

// SetupTestContext creates a new test context backed by an isolated
// in-memory database with finite stock
func SetupTestContext(t *testing.T) *TestContext {
	return SetupTestContextWithMode(t, models.StockFinite)
}

// SetupTestContextWithMode is SetupTestContext with an explicit stock mode
func SetupTestContextWithMode(t *testing.T, mode models.StockMode) *TestContext {
	t.Helper()

	db, err := config.OpenInMemory()
	require.NoError(t, err, "Failed to set up test database")

	logger := utils.DiscardLogger()

	// Create repository
	repo := repository.NewSQLRepository(db, mode)

	// Create service
	codec := auth.NewTokenCodec(TestJWTSecret, time.Hour)
	external := auth.NewExternalVerifier(TestExternalSecret, TestExternalIssuer)
	svc := service.NewDefaultService(repo, codec, external, logger)

	// Create API handler
	handler := api.NewHandler(svc, auth.NewResolver(codec), db, logger)

	// Set up Gin router
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// Set up routes
	handler.SetupRoutes(router)

	tc := &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		Codec:      codec,
		DB:         db,
	}

	tc.AdminID, tc.AdminJWT = createTestAccount(t, tc, AdminName, AdminPassword, models.LevelAdministrator)
	tc.MemberID, tc.MemberJWT = createTestAccount(t, tc, MemberName, MemberPassword, models.LevelMember)

	return tc
}

// CleanupTestContext cleans up test resources
func CleanupTestContext(tc *TestContext) {
	if tc.DB != nil {
		tc.DB.Close()
	}
}

// Helper functions
func createTestAccount(t *testing.T, tc *TestContext, name string, password int64, level models.Level) (int64, string) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(strconv.FormatInt(password, 10)), bcrypt.MinCost)
	require.NoError(t, err)

	account := &models.Account{
		Name:       name,
		Credential: string(hashed),
		Level:      level,
		Origin:     models.OriginLocal,
	}
	require.NoError(t, tc.Repository.CreateAccount(context.Background(), account), "Failed to create test account")

	token, _, err := tc.Codec.Issue(account.ID, level)
	require.NoError(t, err, "Failed to generate JWT token")

	return account.ID, token
}

// CreateListing inserts a listing directly through the repository
func (tc *TestContext) CreateListing(t *testing.T, name string, price int64, stock int64) *models.Listing {
	t.Helper()

	listing := &models.Listing{Name: name, OwnerID: tc.AdminID, Price: price, Stock: &stock}
	require.NoError(t, tc.Repository.CreateListing(context.Background(), listing))
	return listing
}

// CountRows returns the number of rows in table
func (tc *TestContext) CountRows(t *testing.T, table string) int64 {
	t.Helper()

	var n int64
	require.NoError(t, tc.DB.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}

// Password returns a pointer to v for request bodies.
func Password(v int64) *int64 {
	return &v
}
