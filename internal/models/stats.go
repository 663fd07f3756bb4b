package models

import (
	"time"
)

// InquiryStats is the per-owner aggregate over a trailing date window.
// Computed on every request, never persisted. A window with no inquiries
// yields the zero value (AverageResponseTimeMs nil).
type InquiryStats struct {
	Total                 int      `bson:"total" json:"total"`
	New                   int      `bson:"new" json:"new"`
	Contacted             int      `bson:"contacted" json:"contacted"`
	Interested            int      `bson:"interested" json:"interested"`
	NotInterested         int      `bson:"not_interested" json:"notInterested"`
	Closed                int      `bson:"closed" json:"closed"`
	AverageResponseTimeMs *float64 `bson:"avg_response_ms" json:"averageResponseTime"`
	GeneralInquiries      int      `bson:"general_inquiries" json:"generalInquiries"`
	ListingInquiries      int      `bson:"listing_inquiries" json:"listingInquiries"`
}

// AgentListingStats counts an agent's listings by state.
type AgentListingStats struct {
	Active        int `json:"active"`
	Total         int `json:"total"`
	Sold          int `json:"sold"` // Sold within the trailing 365 days
	NewLast30Days int `json:"newLast30Days"`
}

// AgentInquiryStats counts inquiries received by an agent.
type AgentInquiryStats struct {
	Total         int `json:"total"`
	Responded     int `json:"responded"` // Inquiries with respondedAt set
	ResponseRate  int `json:"responseRate"`
	NewLast30Days int `json:"newLast30Days"`
}

// AgentPerformanceStats are the derived performance figures.
type AgentPerformanceStats struct {
	AverageResponseTimeHours *float64 `json:"averageResponseTimeHours"` // Two decimals, nil if never responded
	ConversionRate           int      `json:"conversionRate"`
}

// AgentStats is the full derived snapshot for one agent. Recomputed on every
// query and never cached or persisted.
type AgentStats struct {
	Listings    AgentListingStats     `json:"listings"`
	Inquiries   AgentInquiryStats     `json:"inquiries"`
	Performance AgentPerformanceStats `json:"performance"`
}

// AgentRanking is an agent row annotated with aggregation-derived counts and
// the computed performance score used for ordering.
type AgentRanking struct {
	User             `bson:",inline"`
	ActiveListings   int     `bson:"active_listings" json:"activeListings"`
	RecentSales      int     `bson:"recent_sales" json:"recentSales"`
	TotalInquiries   int     `bson:"total_inquiries" json:"totalInquiries"`
	RecentInquiries  int     `bson:"recent_inquiries" json:"recentInquiries"`
	PerformanceScore float64 `bson:"-" json:"performanceScore"`
}

// AgentSearchResult is an agent row in directory search output, annotated
// with a live count of active listings.
type AgentSearchResult struct {
	User            `bson:",inline"`
	PropertiesCount int `bson:"properties_count" json:"propertiesCount"`
}

// AgentActivity is one entry in an agent's merged activity feed.
type AgentActivity struct {
	Type   string      `json:"type"` // "listing" or "inquiry"
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
	Date   time.Time   `json:"date"`
}
