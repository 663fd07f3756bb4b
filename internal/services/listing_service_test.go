package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

func setupTestDBListing(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "listings", "users")
}

func validListingInput() CreateListingInput {
	return CreateListingInput{
		Title:        "Sunny 3BR Home",
		Description:  "Close to downtown",
		Price:        450000,
		ListingType:  models.ListingTypeSale,
		PropertyType: "house",
		City:         "Austin",
		State:        "TX",
		Bedrooms:     3,
		Bathrooms:    2,
		AreaSqft:     1800,
	}
}

func TestListingService_Lifecycle(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_lifecycle")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	userID := utils.NewSixID()

	listing, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusPending, listing.Status)
	assert.False(t, listing.IsActive)
	assert.NotEqual(t, utils.SixID{}, listing.ID)

	found, err := svc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, listing.ID, found.ID)

	// Publish moves pending -> active.
	err = svc.PublishListing(ctx, listing.ID, userID)
	require.NoError(t, err)
	found, err = svc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, found.Status)
	assert.True(t, found.IsActive)

	// Publishing twice fails: no longer pending.
	err = svc.PublishListing(ctx, listing.ID, userID)
	assert.Error(t, err)

	// Sold closes the listing out.
	err = svc.MarkListingSold(ctx, listing.ID, userID)
	require.NoError(t, err)
	found, err = svc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, found.Status)
	assert.False(t, found.IsActive)
	require.NotNil(t, found.SoldAt)

	// Soft delete hides it from reads.
	err = svc.DeleteListing(ctx, listing.ID, userID)
	require.NoError(t, err)
	_, err = svc.FindListingByID(ctx, listing.ID)
	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestListingService_CreateListing_Validation(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_validation")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	input := validListingInput()
	input.Title = ""
	input.Price = 0
	_, err := svc.CreateListing(ctx, utils.NewSixID(), input)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Fields, "title")
	assert.Contains(t, vErr.Fields, "price")
}

func TestListingService_UpdateListing(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_update")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	userID := utils.NewSixID()
	listing, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)

	updated, err := svc.UpdateListing(ctx, listing.ID, userID, map[string]interface{}{
		"title": "Updated Title",
		"price": 475000.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Updated Title", updated.Title)
	assert.Equal(t, 475000.0, updated.Price)

	// Status is not updatable here.
	_, err = svc.UpdateListing(ctx, listing.ID, userID, map[string]interface{}{"status": "sold"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	// Wrong owner cannot update.
	_, err = svc.UpdateListing(ctx, listing.ID, utils.NewSixID(), map[string]interface{}{"title": "x"})
	var nfErr *NotFoundError
	assert.ErrorAs(t, err, &nfErr)
}

func TestListingService_SearchListings(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_search")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	userID := utils.NewSixID()

	mk := func(title, city string, price float64, bedrooms int, lt models.ListingType) *models.Listing {
		input := validListingInput()
		input.Title = title
		input.City = city
		input.Price = price
		input.Bedrooms = bedrooms
		input.ListingType = lt
		listing, err := svc.CreateListing(ctx, userID, input)
		require.NoError(t, err)
		require.NoError(t, svc.PublishListing(ctx, listing.ID, userID))
		time.Sleep(5 * time.Millisecond) // Distinct created_at ordering
		return listing
	}

	mk("Downtown Condo", "Austin", 300000, 1, models.ListingTypeSale)
	mk("Family House", "Austin", 500000, 4, models.ListingTypeSale)
	mk("City Flat", "Dallas", 2000, 2, models.ListingTypeRent)

	// Unpublished listings stay out of results.
	_, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)

	listings, pagination, err := svc.SearchListings(ctx, ListingSearchFilters{})
	require.NoError(t, err)
	assert.Len(t, listings, 3)
	assert.Equal(t, 3, pagination.Total)

	// City filter.
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{City: "austin"})
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	// Type filter.
	rent := models.ListingTypeRent
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{ListingType: &rent})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "City Flat", listings[0].Title)

	// Price range and bedrooms.
	minPrice := 400000.0
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{MinPrice: &minPrice})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Family House", listings[0].Title)

	minBeds := 2
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{MinBedrooms: &minBeds})
	require.NoError(t, err)
	assert.Len(t, listings, 2)

	// Sorting by price.
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{SortBy: "price_asc"})
	require.NoError(t, err)
	assert.Equal(t, "City Flat", listings[0].Title)
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{SortBy: "price_desc"})
	require.NoError(t, err)
	assert.Equal(t, "Family House", listings[0].Title)

	// Text query.
	listings, _, err = svc.SearchListings(ctx, ListingSearchFilters{Query: "condo"})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Downtown Condo", listings[0].Title)

	// Pagination envelope.
	listings, pagination, err = svc.SearchListings(ctx, ListingSearchFilters{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, listings, 1)
	assert.Equal(t, 2, pagination.TotalPages)
	assert.False(t, pagination.HasMore)
}

func TestListingService_AddImageToListing(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_image")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	userID := utils.NewSixID()
	listing, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)

	err = svc.AddImageToListing(ctx, listing.ID, "listings/abc/main.jpg")
	require.NoError(t, err)
	// Adding the same key twice keeps the array deduplicated.
	err = svc.AddImageToListing(ctx, listing.ID, "listings/abc/main.jpg")
	require.NoError(t, err)

	found, err := svc.FindListingByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"listings/abc/main.jpg"}, found.Images)

	var nfErr *NotFoundError
	err = svc.AddImageToListing(ctx, utils.NewSixID(), "key")
	assert.ErrorAs(t, err, &nfErr)
}

func TestListingService_FindListingsByUserID(t *testing.T) {
	db := setupTestDBListing(t, "testdb_listing_service_by_user")
	svc := NewListingService(db, &config.Config{})
	ctx := context.Background()

	userID := utils.NewSixID()
	otherID := utils.NewSixID()

	first, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := svc.CreateListing(ctx, userID, validListingInput())
	require.NoError(t, err)
	_, err = svc.CreateListing(ctx, otherID, validListingInput())
	require.NoError(t, err)

	listings, err := svc.FindListingsByUserID(ctx, userID)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, second.ID, listings[0].ID, "newest first")
	assert.Equal(t, first.ID, listings[1].ID)
}
