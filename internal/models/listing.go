package models

import (
	"time"

	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// ListingType is the transaction kind of a listing.
type ListingType string

const (
	ListingTypeSale ListingType = "sale"
	ListingTypeRent ListingType = "rent"
)

// Valid reports whether the type is one of the known transaction kinds.
func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeSale, ListingTypeRent:
		return true
	}
	return false
}

// ListingStatus is the market status of a listing.
type ListingStatus string

const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusPending ListingStatus = "pending"
	ListingStatusSold    ListingStatus = "sold"
)

// Valid reports whether the status is one of the known statuses.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingStatusActive, ListingStatusPending, ListingStatusSold:
		return true
	}
	return false
}

// Listing represents a property listing.
type Listing struct {
	Base         `bson:",inline"`
	UserID       utils.SixID   `bson:"user_id" json:"userId"` // Owning agent
	Title        string        `bson:"title" json:"title"`
	Description  string        `bson:"description" json:"description"`
	Price        float64       `bson:"price" json:"price"`
	Images       []string      `bson:"images" json:"images"` // S3 keys
	ListingType  ListingType   `bson:"listing_type" json:"listingType"`
	PropertyType string        `bson:"property_type" json:"propertyType"` // e.g. "apartment", "house", "plot"
	Status       ListingStatus `bson:"status" json:"status"`
	Address      string        `bson:"address,omitempty" json:"address,omitempty"`
	City         string        `bson:"city" json:"city"`
	State        string        `bson:"state" json:"state"`
	Bedrooms     int           `bson:"bedrooms,omitempty" json:"bedrooms,omitempty"`
	Bathrooms    int           `bson:"bathrooms,omitempty" json:"bathrooms,omitempty"`
	AreaSqft     float64       `bson:"area_sqft,omitempty" json:"areaSqft,omitempty"`
	IsActive     bool          `bson:"is_active" json:"isActive"`
	IsFeatured   bool          `bson:"is_featured" json:"isFeatured"`
	CreatedAt    time.Time     `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at" json:"updatedAt"`
	SoldAt       *time.Time    `bson:"sold_at,omitempty" json:"soldAt,omitempty"`
	Deleted      bool          `bson:"deleted" json:"-"` // Soft delete flag
}
