package models

import (
	"strings"
)

// Location is a distinct city/state pair derived from listings and agent
// profiles, used for directory filter suggestions.
type Location struct {
	City  string `bson:"city" json:"city"`
	State string `bson:"state" json:"state"`
	Count int    `bson:"count" json:"count"` // Listings in this location
}

// Label renders the location as "City, State", omitting empty parts.
func (l Location) Label() string {
	parts := make([]string, 0, 2)
	if l.City != "" {
		parts = append(parts, l.City)
	}
	if l.State != "" {
		parts = append(parts, l.State)
	}
	return strings.Join(parts, ", ")
}
