package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/db"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// CreateListingInput carries the fields for a new property listing.
type CreateListingInput struct {
	Title        string
	Description  string
	Price        float64
	ListingType  models.ListingType
	PropertyType string
	Address      string
	City         string
	State        string
	Bedrooms     int
	Bathrooms    int
	AreaSqft     float64
}

// ListingSearchFilters drive the public listing search.
type ListingSearchFilters struct {
	Query        string
	City         string
	State        string
	ListingType  *models.ListingType
	PropertyType string
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	SortBy       string // newest (default), price_asc, price_desc
	Page         int
	Limit        int
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, userID utils.SixID, input CreateListingInput) (*models.Listing, error)
	FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error)
	UpdateListing(ctx context.Context, listingID, userID utils.SixID, updates map[string]interface{}) (*models.Listing, error)
	PublishListing(ctx context.Context, listingID, userID utils.SixID) error
	MarkListingSold(ctx context.Context, listingID, userID utils.SixID) error
	DeleteListing(ctx context.Context, listingID, userID utils.SixID) error
	SearchListings(ctx context.Context, filters ListingSearchFilters) ([]models.Listing, models.Pagination, error)
	AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error
	FindListingsByUserID(ctx context.Context, userID utils.SixID) ([]models.Listing, error)
}

const listingsCollection = "listings"

// listingService implements IListingService.
type listingService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewListingService creates a new ListingService.
func NewListingService(db *mongo.Database, cfg *config.Config) IListingService {
	return &listingService{db: db, cfg: cfg}
}

// CreateListing creates a new listing in the pending state. It goes live via
// PublishListing.
func (s *listingService) CreateListing(ctx context.Context, userID utils.SixID, input CreateListingInput) (*models.Listing, error) {
	fields := map[string]string{}
	if input.Title == "" {
		fields["title"] = "is required"
	}
	if input.Price <= 0 {
		fields["price"] = "must be positive"
	}
	if input.ListingType != models.ListingTypeSale && input.ListingType != models.ListingTypeRent {
		fields["listingType"] = "must be sale or rent"
	}
	if input.City == "" {
		fields["city"] = "is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	now := time.Now().UTC()
	doc, err := db.InsertOne(ctx, s.db.Collection(listingsCollection), &models.Listing{
		UserID:       userID,
		Title:        input.Title,
		Description:  input.Description,
		Price:        input.Price,
		Images:       []string{},
		ListingType:  input.ListingType,
		PropertyType: input.PropertyType,
		Status:       models.ListingStatusPending,
		Address:      input.Address,
		City:         input.City,
		State:        input.State,
		Bedrooms:     input.Bedrooms,
		Bathrooms:    input.Bathrooms,
		AreaSqft:     input.AreaSqft,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert new listing for user %s: %w", userID.String(), err)
	}
	return doc.(*models.Listing), nil
}

// FindListingByID finds a non-deleted listing by its ID. It does NOT check
// ownership.
func (s *listingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	var listing models.Listing
	collection := s.db.Collection(listingsCollection)
	filter := bson.M{"_id": listingID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Kind: "listing", ID: listingID.String()}
		}
		return nil, fmt.Errorf("error finding listing by ID %s: %w", listingID.String(), err)
	}
	return &listing, nil
}

// UpdateListing updates mutable fields of a listing owned by the given user.
// Status changes go through the dedicated methods, not here.
func (s *listingService) UpdateListing(ctx context.Context, listingID, userID utils.SixID, updates map[string]interface{}) (*models.Listing, error) {
	collection := s.db.Collection(listingsCollection)

	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "price", "property_type", "address", "city", "state", "bedrooms", "bathrooms", "area_sqft":
			allowedUpdates[key] = value
		default:
			return nil, &ValidationError{Fields: map[string]string{key: "cannot be updated"}}
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"updates": "no valid fields provided"}}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	filter := bson.M{
		"_id":     listingID,
		"user_id": userID,
		"deleted": false,
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Listing
	err := collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": allowedUpdates}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Kind: "listing", ID: listingID.String()}
		}
		return nil, fmt.Errorf("failed to update listing %s: %w", listingID.String(), err)
	}
	return &updated, nil
}

// transitionListing applies an update to an owned listing matching the extra
// filter conditions, and diagnoses the failure when nothing matched.
func (s *listingService) transitionListing(ctx context.Context, listingID, userID utils.SixID, extraFilter, update bson.M) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{
		"_id":     listingID,
		"user_id": userID,
		"deleted": false,
	}
	for k, v := range extraFilter {
		filter[k] = v
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error updating listing %s: %w", listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		var listing models.Listing
		checkErr := collection.FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
		if errors.Is(checkErr, mongo.ErrNoDocuments) {
			return &NotFoundError{Kind: "listing", ID: listingID.String()}
		}
		if checkErr != nil {
			return fmt.Errorf("db error checking listing %s: %w", listingID.String(), checkErr)
		}
		if listing.UserID != userID {
			return fmt.Errorf("listing %s does not belong to user %s", listingID.String(), userID.String())
		}
		if listing.Deleted {
			return &NotFoundError{Kind: "listing", ID: listingID.String()}
		}
		return fmt.Errorf("listing %s cannot be updated from status %q", listingID.String(), listing.Status)
	}
	return nil
}

// PublishListing moves a pending listing onto the market.
func (s *listingService) PublishListing(ctx context.Context, listingID, userID utils.SixID) error {
	now := time.Now().UTC()
	return s.transitionListing(ctx, listingID, userID,
		bson.M{"status": models.ListingStatusPending},
		bson.M{"$set": bson.M{
			"status":     models.ListingStatusActive,
			"is_active":  true,
			"updated_at": now,
		}},
	)
}

// MarkListingSold closes out an active listing as sold.
func (s *listingService) MarkListingSold(ctx context.Context, listingID, userID utils.SixID) error {
	now := time.Now().UTC()
	return s.transitionListing(ctx, listingID, userID,
		bson.M{"status": models.ListingStatusActive},
		bson.M{"$set": bson.M{
			"status":     models.ListingStatusSold,
			"is_active":  false,
			"sold_at":    now,
			"updated_at": now,
		}},
	)
}

// DeleteListing performs a soft delete and takes the listing off the market.
func (s *listingService) DeleteListing(ctx context.Context, listingID, userID utils.SixID) error {
	now := time.Now().UTC()
	return s.transitionListing(ctx, listingID, userID,
		bson.M{},
		bson.M{"$set": bson.M{
			"deleted":    true,
			"is_active":  false,
			"updated_at": now,
		}},
	)
}

// SearchListings returns a page of live listings matching the filters.
func (s *listingService) SearchListings(ctx context.Context, filters ListingSearchFilters) ([]models.Listing, models.Pagination, error) {
	collection := s.db.Collection(listingsCollection)

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 10
	}

	filter := bson.M{
		"deleted":   false,
		"is_active": true,
	}
	if filters.Query != "" {
		re := ciSubstring(filters.Query)
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"address": re},
		}
	}
	if filters.City != "" {
		filter["city"] = ciSubstring(filters.City)
	}
	if filters.State != "" {
		filter["state"] = ciSubstring(filters.State)
	}
	if filters.ListingType != nil {
		filter["listing_type"] = *filters.ListingType
	}
	if filters.PropertyType != "" {
		filter["property_type"] = filters.PropertyType
	}
	if filters.MinPrice != nil || filters.MaxPrice != nil {
		price := bson.M{}
		if filters.MinPrice != nil {
			price["$gte"] = *filters.MinPrice
		}
		if filters.MaxPrice != nil {
			price["$lte"] = *filters.MaxPrice
		}
		filter["price"] = price
	}
	if filters.MinBedrooms != nil {
		filter["bedrooms"] = bson.M{"$gte": *filters.MinBedrooms}
	}

	var sortSpec bson.D
	switch filters.SortBy {
	case "price_asc":
		sortSpec = bson.D{{Key: "price", Value: 1}}
	case "price_desc":
		sortSpec = bson.D{{Key: "price", Value: -1}}
	default: // newest
		sortSpec = bson.D{{Key: "created_at", Value: -1}}
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count listings: %w", err)
	}

	opts := options.Find().
		SetSort(sortSpec).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to execute listing search query: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to decode listing search results: %w", err)
	}

	return listings, models.NewPagination(page, limit, int(total)), nil
}

// AddImageToListing adds a processed image key to a listing's image array.
// It should only be called after the image processing task is complete.
func (s *listingService) AddImageToListing(ctx context.Context, listingID utils.SixID, imageKey string) error {
	collection := s.db.Collection(listingsCollection)

	filter := bson.M{"_id": listingID, "deleted": false}
	update := bson.M{
		"$addToSet": bson.M{"images": imageKey}, // Add key if not already present
		"$set":      bson.M{"updated_at": time.Now().UTC()},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("db error adding image %s to listing %s: %w", imageKey, listingID.String(), err)
	}
	if result.MatchedCount == 0 {
		return &NotFoundError{Kind: "listing", ID: listingID.String()}
	}
	return nil
}

// FindListingsByUserID returns all non-deleted listings owned by a user,
// newest first.
func (s *listingService) FindListingsByUserID(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	collection := s.db.Collection(listingsCollection)
	filter := bson.M{"user_id": userID, "deleted": false}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings for user %s: %w", userID.String(), err)
	}
	defer cursor.Close(ctx)

	var listings []models.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings for user %s: %w", userID.String(), err)
	}
	return listings, nil
}
