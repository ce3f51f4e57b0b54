package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/rongwang/marketplace-server/internal/api/testutils"
	"github.com/rongwang/marketplace-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchase(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	listing := testCtx.CreateListing(t, "Melon", 100, 3)
	headers := testutils.AuthHeaders(testCtx.MemberJWT)

	// Test case 1: Buy the whole stock
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchases",
		models.PurchaseRequest{ListingID: listing.ID, Quantity: 3},
		headers,
	)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.PurchaseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Purchase)
	assert.Equal(t, testCtx.MemberID, resp.Purchase.AccountID)
	assert.Equal(t, int64(100), resp.Purchase.UnitPrice)
	assert.Equal(t, int64(300), resp.Total)
	assert.NotEmpty(t, resp.Time)

	// Test case 2: Nothing left
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchases",
		models.PurchaseRequest{ListingID: listing.ID, Quantity: 1},
		headers,
	)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "purchases"))

	// Test case 3: Zero quantity
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchases",
		models.PurchaseRequest{ListingID: listing.ID, Quantity: 0},
		headers,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "INVALID_QUANTITY", errResp.Code)

	// Test case 4: Unknown listing
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchases",
		models.PurchaseRequest{ListingID: 9999, Quantity: 1},
		headers,
	)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "purchases"))

	// Test case 5: Anonymous callers cannot buy
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/purchases",
		models.PurchaseRequest{ListingID: listing.ID, Quantity: 1},
		nil,
	)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPurchaseUnlimitedStock(t *testing.T) {
	testCtx := testutils.SetupTestContextWithMode(t, models.StockUnlimited)
	defer testutils.CleanupTestContext(testCtx)

	listing := testCtx.CreateListing(t, "T91 Rifle", 67890, 0)
	assert.Nil(t, listing.Stock)

	for i := 0; i < 3; i++ {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/purchases",
			models.PurchaseRequest{ListingID: listing.ID, Quantity: 1000},
			testutils.AuthHeaders(testCtx.MemberJWT),
		)
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	assert.Equal(t, int64(3), testCtx.CountRows(t, "purchases"))
}

func TestPlaceOrder(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	melon := testCtx.CreateListing(t, "Melon", 100, 5)
	rifle := testCtx.CreateListing(t, "T91 Rifle", 67890, 1)
	headers := testutils.AuthHeaders(testCtx.MemberJWT)

	// Test case 1: One line cannot be filled, nothing is recorded
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/orders",
		models.OrderRequest{Lines: []models.OrderLine{
			{ListingID: melon.ID, Quantity: 2},
			{ListingID: rifle.ID, Quantity: 2},
		}},
		headers,
	)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, int64(0), testCtx.CountRows(t, "purchases"))

	current, err := testCtx.Repository.GetListing(context.Background(), melon.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), *current.Stock)

	// Test case 2: Every line filled
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/orders",
		models.OrderRequest{Lines: []models.OrderLine{
			{ListingID: rifle.ID, Quantity: 1},
			{ListingID: melon.ID, Quantity: 2},
		}},
		headers,
	)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.OrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.OrderID)
	require.Len(t, resp.Lines, 2)
	assert.Equal(t, melon.ID, resp.Lines[0].ListingID)
	assert.Equal(t, rifle.ID, resp.Lines[1].ListingID)
	assert.Equal(t, int64(2*100+67890), resp.Total)
	for _, line := range resp.Lines {
		assert.Equal(t, resp.OrderID, line.OrderID)
	}

	// Test case 3: Empty order
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/orders",
		models.OrderRequest{Lines: []models.OrderLine{}},
		headers,
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(2), testCtx.CountRows(t, "purchases"))
}

func TestPurchaseHistory(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	melon := testCtx.CreateListing(t, "Melon", 100, 10)
	rifle := testCtx.CreateListing(t, "T91 Rifle", 67890, 10)

	buy := func(token string, listingID, quantity int64) {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodPost,
			"/api/purchases",
			models.PurchaseRequest{ListingID: listingID, Quantity: quantity},
			testutils.AuthHeaders(token),
		)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	buy(testCtx.MemberJWT, melon.ID, 3)
	buy(testCtx.MemberJWT, rifle.ID, 1)
	buy(testCtx.AdminJWT, melon.ID, 1)

	history := func(token, query string) (int, models.PurchaseHistoryResponse) {
		w := testutils.PerformRequest(
			testCtx.Router,
			http.MethodGet,
			"/api/purchases"+query,
			nil,
			testutils.AuthHeaders(token),
		)
		var resp models.PurchaseHistoryResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return w.Code, resp
	}

	// Test case 1: Members see only their own purchases
	code, resp := history(testCtx.MemberJWT, "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Entries, 2)
	for _, entry := range resp.Entries {
		assert.Equal(t, testCtx.MemberID, entry.AccountID)
		require.NotNil(t, entry.AccountName)
		assert.Equal(t, testutils.MemberName, *entry.AccountName)
	}
	assert.Equal(t, int64(300), resp.Entries[0].Total)

	// Test case 2: Members cannot ask for someone else's
	code, _ = history(testCtx.MemberJWT, fmt.Sprintf("?accountId=%d", testCtx.AdminID))
	assert.Equal(t, http.StatusForbidden, code)

	// Test case 3: Administrators see everything and can filter
	code, resp = history(testCtx.AdminJWT, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Entries, 3)

	code, resp = history(testCtx.AdminJWT, fmt.Sprintf("?listingId=%d", melon.ID))
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Entries, 2)

	code, resp = history(testCtx.AdminJWT, "?limit=1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Entries, 1)

	code, _ = history(testCtx.AdminJWT, "?accountId=abc")
	assert.Equal(t, http.StatusBadRequest, code)

	// Test case 4: Totals keep the price paid and names survive only while
	// the listing exists
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		fmt.Sprintf("/api/listings/%d", melon.ID),
		models.UpdateListingRequest{Name: "Melon", Price: 999},
		testutils.AuthHeaders(testCtx.AdminJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		fmt.Sprintf("/api/listings/%d", rifle.ID),
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)
	require.Equal(t, http.StatusOK, w.Code)

	code, resp = history(testCtx.MemberJWT, "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, int64(300), resp.Entries[0].Total)
	require.NotNil(t, resp.Entries[0].ListingName)
	assert.Equal(t, "Melon", *resp.Entries[0].ListingName)
	assert.Equal(t, rifle.ID, resp.Entries[1].ListingID)
	assert.Nil(t, resp.Entries[1].ListingName)
	assert.Equal(t, int64(67890), resp.Entries[1].Total)
}
