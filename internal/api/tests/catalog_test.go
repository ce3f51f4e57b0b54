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

func TestCreateListing(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	description := "Is this melon ripe?"
	stock := int64(10)
	createReq := models.CreateListingRequest{
		Name:        "Melon",
		Description: &description,
		Price:       100,
		Stock:       &stock,
	}

	// Test case 1: Administrator creates a listing
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/listings",
		createReq,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp models.ListingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Listing)
	assert.NotZero(t, resp.Listing.ID)
	assert.Equal(t, testCtx.AdminID, resp.Listing.OwnerID)
	assert.Equal(t, int64(100), resp.Listing.Price)
	require.NotNil(t, resp.Listing.Stock)
	assert.Equal(t, stock, *resp.Listing.Stock)

	// Test case 2: Members may not create listings
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/listings",
		createReq,
		testutils.AuthHeaders(testCtx.MemberJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "listings"))

	// Test case 3: Negative price
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPost,
		"/api/listings",
		models.CreateListingRequest{Name: "Broken", Price: -1},
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "listings"))

	// Test case 4: Anyone can read the catalog
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/listings", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var list models.ListingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Listings, 1)
	assert.Equal(t, "Melon", list.Listings[0].Name)
	require.NotNil(t, list.Listings[0].Description)
	assert.Equal(t, description, *list.Listings[0].Description)
}

func TestUpdateListing(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	listing := testCtx.CreateListing(t, "Melon", 100, 5)

	updateReq := models.UpdateListingRequest{
		Name:  "Ripe Melon",
		Price: 150,
	}

	// Test case 1: Successful update leaves stock alone when not given
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		updateReq,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	require.Equal(t, http.StatusOK, w.Code)

	var resp models.ListingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Listing)
	assert.Equal(t, "Ripe Melon", resp.Listing.Name)
	assert.Equal(t, int64(150), resp.Listing.Price)
	require.NotNil(t, resp.Listing.Stock)
	assert.Equal(t, int64(5), *resp.Listing.Stock)

	// Test case 2: Unknown listing
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		"/api/listings/9999",
		updateReq,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "listings"))

	// Test case 3: Members may not update
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		models.UpdateListingRequest{Name: "Cheap Melon", Price: 1},
		testutils.AuthHeaders(testCtx.MemberJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)

	current, err := testCtx.Repository.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), current.Price)

	// Test case 4: Restocking
	stock := int64(42)
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodPut,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		models.UpdateListingRequest{Name: "Ripe Melon", Price: 150, Stock: &stock},
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	require.Equal(t, http.StatusOK, w.Code)
	current, err = testCtx.Repository.GetListing(context.Background(), listing.ID)
	require.NoError(t, err)
	require.NotNil(t, current.Stock)
	assert.Equal(t, stock, *current.Stock)
}

func TestDeleteListing(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	defer testutils.CleanupTestContext(testCtx)

	listing := testCtx.CreateListing(t, "Melon", 100, 5)

	// Test case 1: Members may not delete
	w := testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		nil,
		testutils.AuthHeaders(testCtx.MemberJWT),
	)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "listings"))

	// Test case 2: Unknown listing leaves the catalog unchanged
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/listings/9999",
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, int64(1), testCtx.CountRows(t, "listings"))

	// Test case 3: Successful delete
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(0), testCtx.CountRows(t, "listings"))

	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodGet,
		fmt.Sprintf("/api/listings/%d", listing.ID),
		nil,
		nil,
	)

	assert.Equal(t, http.StatusNotFound, w.Code)

	// Test case 4: Invalid id
	w = testutils.PerformRequest(
		testCtx.Router,
		http.MethodDelete,
		"/api/listings/abc",
		nil,
		testutils.AuthHeaders(testCtx.AdminJWT),
	)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
