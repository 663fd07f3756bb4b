package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
)

// ILocationService defines the interface for location suggestions.
type ILocationService interface {
	SuggestLocations(ctx context.Context, query string, limit int) ([]models.Location, error)
}

// locationService implements ILocationService.
type locationService struct {
	db *mongo.Database
}

// NewLocationService creates a new LocationService.
func NewLocationService(db *mongo.Database) ILocationService {
	return &locationService{db: db}
}

// SuggestLocations returns distinct city/state pairs from live listings whose
// city or state matches the query, most-listed first.
func (s *locationService) SuggestLocations(ctx context.Context, query string, limit int) ([]models.Location, error) {
	if limit <= 0 {
		limit = 10
	}

	match := bson.M{
		"deleted":   false,
		"is_active": true,
		"city":      bson.M{"$ne": ""},
	}
	if query != "" {
		re := ciSubstring(query)
		match["$or"] = bson.A{
			bson.M{"city": re},
			bson.M{"state": re},
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"city": "$city", "state": "$state"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id.city", Value: 1}}}},
		{{Key: "$limit", Value: limit}},
		{{Key: "$project", Value: bson.M{
			"_id":   0,
			"city":  "$_id.city",
			"state": "$_id.state",
			"count": 1,
		}}},
	}

	cursor, err := s.db.Collection(listingsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate location suggestions: %w", err)
	}
	defer cursor.Close(ctx)

	locations := []models.Location{}
	if err = cursor.All(ctx, &locations); err != nil {
		return nil, fmt.Errorf("failed to decode location suggestions: %w", err)
	}
	return locations, nil
}
