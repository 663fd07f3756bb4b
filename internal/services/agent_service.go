package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// ScoreFunc computes a ranking score from the four performance inputs. The
// score is never persisted; it exists only to order one result set.
type ScoreFunc func(rating float64, recentSales, activeListings, recentInquiries int) float64

// DefaultScore is the standard weighted performance score.
func DefaultScore(rating float64, recentSales, activeListings, recentInquiries int) float64 {
	return rating*20 + float64(recentSales)*15 + float64(activeListings)*5 + float64(recentInquiries)*2
}

// TopAgentsOptions filter and bound GetTopAgents.
type TopAgentsOptions struct {
	Limit          int // default 10
	PeriodDays     int // default 30
	City           string
	State          string
	Specialization string
}

// AgentSearchFilters drive the directory search.
type AgentSearchFilters struct {
	Query          string // case-insensitive substring over name/email/specialization
	City           string
	State          string
	Specialization string
	Featured       *bool
	MinRating      *float64
	SortBy         string // rating (default), newest, experience, name, properties
	Page           int
	Limit          int
}

// IAgentService defines the interface for agent statistics, ranking and search.
type IAgentService interface {
	GetAgentStats(ctx context.Context, agentID utils.SixID) (*models.AgentStats, error)
	GetTopAgents(ctx context.Context, opts TopAgentsOptions) ([]models.AgentRanking, error)
	SearchAgents(ctx context.Context, filters AgentSearchFilters) ([]models.AgentSearchResult, models.Pagination, error)
	GetAgentActivities(ctx context.Context, agentID utils.SixID, days int) ([]models.AgentActivity, error)
}

const (
	soldWindowDays   = 365
	recentWindowDays = 30
)

// agentService implements IAgentService.
type agentService struct {
	db    *mongo.Database
	cfg   *config.Config
	score ScoreFunc
}

// NewAgentService creates a new AgentService with the default scoring weights.
func NewAgentService(db *mongo.Database, cfg *config.Config) IAgentService {
	return NewAgentServiceWithScore(db, cfg, DefaultScore)
}

// NewAgentServiceWithScore creates a new AgentService with a custom scoring strategy.
func NewAgentServiceWithScore(db *mongo.Database, cfg *config.Config, score ScoreFunc) IAgentService {
	if score == nil {
		score = DefaultScore
	}
	return &agentService{db: db, cfg: cfg, score: score}
}

// ciSubstring builds a case-insensitive substring match for a filter value.
func ciSubstring(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

// GetAgentStats recomputes the full derived snapshot for one agent. The
// listing and inquiry counts are read in parallel; any read failure aborts
// the whole computation and propagates.
func (s *agentService) GetAgentStats(ctx context.Context, agentID utils.SixID) (*models.AgentStats, error) {
	if err := s.requireUser(ctx, agentID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	soldSince := now.AddDate(0, 0, -soldWindowDays)
	recentSince := now.AddDate(0, 0, -recentWindowDays)

	listings := s.db.Collection(listingsCollection)
	inquiries := s.db.Collection(inquiriesCollection)

	var (
		active, total, sold, newListings int64
		totalInq, responded, newInq      int64
		avgResponseMs                    *float64
	)

	g, gctx := errgroup.WithContext(ctx)

	countListings := func(dst *int64, filter bson.M) func() error {
		filter["user_id"] = agentID
		filter["deleted"] = false
		return func() error {
			n, err := listings.CountDocuments(gctx, filter)
			if err != nil {
				return fmt.Errorf("failed to count listings for agent %s: %w", agentID.String(), err)
			}
			*dst = n
			return nil
		}
	}
	countInquiries := func(dst *int64, filter bson.M) func() error {
		filter["listing_owner_id"] = agentID
		return func() error {
			n, err := inquiries.CountDocuments(gctx, filter)
			if err != nil {
				return fmt.Errorf("failed to count inquiries for agent %s: %w", agentID.String(), err)
			}
			*dst = n
			return nil
		}
	}

	g.Go(countListings(&active, bson.M{"is_active": true}))
	g.Go(countListings(&total, bson.M{}))
	g.Go(countListings(&sold, bson.M{"status": models.ListingStatusSold, "updated_at": bson.M{"$gte": soldSince}}))
	g.Go(countListings(&newListings, bson.M{"created_at": bson.M{"$gte": recentSince}}))
	g.Go(countInquiries(&totalInq, bson.M{}))
	g.Go(countInquiries(&responded, bson.M{"responded_at": bson.M{"$ne": nil}}))
	g.Go(countInquiries(&newInq, bson.M{"created_at": bson.M{"$gte": recentSince}}))
	g.Go(func() error {
		avg, err := s.averageResponseMs(gctx, agentID)
		if err != nil {
			return err
		}
		avgResponseMs = avg
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &models.AgentStats{
		Listings: models.AgentListingStats{
			Active:        int(active),
			Total:         int(total),
			Sold:          int(sold),
			NewLast30Days: int(newListings),
		},
		Inquiries: models.AgentInquiryStats{
			Total:         int(totalInq),
			Responded:     int(responded),
			NewLast30Days: int(newInq),
		},
	}
	if totalInq > 0 {
		stats.Inquiries.ResponseRate = int(math.Round(float64(responded) / float64(totalInq) * 100))
	}
	if avgResponseMs != nil {
		hours := math.Round(*avgResponseMs/3600000*100) / 100
		stats.Performance.AverageResponseTimeHours = &hours
	}
	if active > 0 {
		stats.Performance.ConversionRate = int(math.Round(float64(sold) / float64(active) * 100))
	}
	return stats, nil
}

// requireUser fails with NotFoundError unless a non-deleted user exists.
func (s *agentService) requireUser(ctx context.Context, agentID utils.SixID) error {
	err := s.db.Collection(usersCollection).FindOne(ctx,
		bson.M{"_id": agentID, "deleted": false},
		options.FindOne().SetProjection(bson.M{"_id": 1}),
	).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &NotFoundError{Kind: "agent", ID: agentID.String()}
		}
		return fmt.Errorf("error finding agent %s: %w", agentID.String(), err)
	}
	return nil
}

// averageResponseMs averages respondedAt minus createdAt over the agent's
// responded inquiries. Returns nil when none have been responded to.
func (s *agentService) averageResponseMs(ctx context.Context, agentID utils.SixID) (*float64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"listing_owner_id": agentID,
			"responded_at":     bson.M{"$ne": nil},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    nil,
			"avg_ms": bson.M{"$avg": bson.M{"$subtract": bson.A{"$responded_at", "$created_at"}}},
		}}},
	}

	cursor, err := s.db.Collection(inquiriesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate response time for agent %s: %w", agentID.String(), err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		AvgMs *float64 `bson:"avg_ms"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode response time aggregate: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].AvgMs, nil
}

// agentListingsLookup joins an agent's non-deleted listings under the given
// field, projected down to what the count stages need.
func agentListingsLookup(as string) bson.D {
	return bson.D{{Key: "$lookup", Value: bson.M{
		"from": listingsCollection,
		"let":  bson.M{"agent_id": "$_id"},
		"pipeline": bson.A{
			bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
				bson.M{"$eq": bson.A{"$user_id", "$$agent_id"}},
				bson.M{"$eq": bson.A{"$deleted", false}},
			}}}},
			bson.M{"$project": bson.M{"status": 1, "is_active": 1, "updated_at": 1}},
		},
		"as": as,
	}}}
}

// GetTopAgents ranks active agent-like users by performance score. The counts
// feeding the score come from one aggregation with per-agent sub-pipelines;
// the score itself is computed in Go so the strategy stays pluggable.
func (s *agentService) GetTopAgents(ctx context.Context, opts TopAgentsOptions) ([]models.AgentRanking, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}
	periodDays := opts.PeriodDays
	if periodDays <= 0 {
		periodDays = recentWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -periodDays)

	match := bson.M{
		"deleted":   false,
		"is_active": true,
		"role":      bson.M{"$in": models.AgentRoles},
	}
	if opts.City != "" {
		match["city"] = ciSubstring(opts.City)
	}
	if opts.State != "" {
		match["state"] = ciSubstring(opts.State)
	}
	if opts.Specialization != "" {
		match["specialization"] = ciSubstring(opts.Specialization)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		agentListingsLookup("agent_listings"),
		{{Key: "$lookup", Value: bson.M{
			"from": inquiriesCollection,
			"let":  bson.M{"agent_id": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$listing_owner_id", "$$agent_id"}}}},
				bson.M{"$project": bson.M{"created_at": 1}},
			},
			"as": "agent_inquiries",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"active_listings": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": "$agent_listings",
				"as":    "l",
				"cond":  bson.M{"$eq": bson.A{"$$l.is_active", true}},
			}}},
			"recent_sales": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": "$agent_listings",
				"as":    "l",
				"cond": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$$l.status", models.ListingStatusSold}},
					bson.M{"$gte": bson.A{"$$l.updated_at", since}},
				}},
			}}},
			"total_inquiries": bson.M{"$size": "$agent_inquiries"},
			"recent_inquiries": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": "$agent_inquiries",
				"as":    "i",
				"cond":  bson.M{"$gte": bson.A{"$$i.created_at", since}},
			}}},
		}}},
		{{Key: "$project", Value: bson.M{
			"agent_listings":  0,
			"agent_inquiries": 0,
			"password":        0,
		}}},
	}

	cursor, err := s.db.Collection(usersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate top agents: %w", err)
	}
	defer cursor.Close(ctx)

	var rankings []models.AgentRanking
	if err = cursor.All(ctx, &rankings); err != nil {
		return nil, fmt.Errorf("failed to decode top agents: %w", err)
	}

	for i := range rankings {
		r := &rankings[i]
		r.PerformanceScore = s.score(r.Rating, r.RecentSales, r.ActiveListings, r.RecentInquiries)
	}
	sort.SliceStable(rankings, func(a, b int) bool {
		if rankings[a].PerformanceScore != rankings[b].PerformanceScore {
			return rankings[a].PerformanceScore > rankings[b].PerformanceScore
		}
		return rankings[a].Rating > rankings[b].Rating
	})
	if len(rankings) > limit {
		rankings = rankings[:limit]
	}
	return rankings, nil
}

// SearchAgents runs the five-mode directory search. Every row carries a live
// active-listing count; one $facet stage produces the page and the total in a
// single round trip.
func (s *agentService) SearchAgents(ctx context.Context, filters AgentSearchFilters) ([]models.AgentSearchResult, models.Pagination, error) {
	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 10
	}

	match := bson.M{
		"deleted":   false,
		"is_active": true,
		"role":      bson.M{"$in": models.AgentRoles},
	}
	if filters.Query != "" {
		re := ciSubstring(filters.Query)
		match["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"email": re},
			bson.M{"specialization": re},
		}
	}
	if filters.City != "" {
		match["city"] = ciSubstring(filters.City)
	}
	if filters.State != "" {
		match["state"] = ciSubstring(filters.State)
	}
	if filters.Specialization != "" {
		match["specialization"] = ciSubstring(filters.Specialization)
	}
	if filters.Featured != nil {
		match["is_featured"] = *filters.Featured
	}
	if filters.MinRating != nil {
		match["rating"] = bson.M{"$gte": *filters.MinRating}
	}

	var sortSpec bson.D
	switch filters.SortBy {
	case "newest":
		sortSpec = bson.D{{Key: "created_at", Value: -1}}
	case "experience":
		sortSpec = bson.D{{Key: "experience", Value: -1}}
	case "name":
		sortSpec = bson.D{{Key: "name", Value: 1}}
	case "properties":
		sortSpec = bson.D{{Key: "properties_count", Value: -1}}
	default: // rating
		sortSpec = bson.D{{Key: "rating", Value: -1}, {Key: "total_reviews", Value: -1}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		agentListingsLookup("agent_listings"),
		{{Key: "$addFields", Value: bson.M{
			"properties_count": bson.M{"$size": bson.M{"$filter": bson.M{
				"input": "$agent_listings",
				"as":    "l",
				"cond":  bson.M{"$eq": bson.A{"$$l.is_active", true}},
			}}},
		}}},
		{{Key: "$project", Value: bson.M{"agent_listings": 0, "password": 0}}},
		{{Key: "$facet", Value: bson.M{
			"data": bson.A{
				bson.M{"$sort": sortSpec},
				bson.M{"$skip": (page - 1) * limit},
				bson.M{"$limit": limit},
			},
			"total": bson.A{bson.M{"$count": "count"}},
		}}},
	}

	cursor, err := s.db.Collection(usersCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to search agents: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Data  []models.AgentSearchResult `bson:"data"`
		Total []struct {
			Count int `bson:"count"`
		} `bson:"total"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to decode agent search results: %w", err)
	}

	agents := []models.AgentSearchResult{}
	total := 0
	if len(results) > 0 {
		agents = results[0].Data
		if len(results[0].Total) > 0 {
			total = results[0].Total[0].Count
		}
	}
	return agents, models.NewPagination(page, limit, total), nil
}

// GetAgentActivities merges the agent's recent listings and received
// inquiries into one feed, newest first.
func (s *agentService) GetAgentActivities(ctx context.Context, agentID utils.SixID, days int) ([]models.AgentActivity, error) {
	if err := s.requireUser(ctx, agentID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = recentWindowDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	var recentListings []models.Listing
	var recentInquiries []models.Inquiry

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor, err := s.db.Collection(listingsCollection).Find(gctx,
			bson.M{"user_id": agentID, "deleted": false, "created_at": bson.M{"$gte": since}},
			options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		)
		if err != nil {
			return fmt.Errorf("failed to query recent listings for agent %s: %w", agentID.String(), err)
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &recentListings)
	})
	g.Go(func() error {
		cursor, err := s.db.Collection(inquiriesCollection).Find(gctx,
			bson.M{"listing_owner_id": agentID, "created_at": bson.M{"$gte": since}},
			options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
		)
		if err != nil {
			return fmt.Errorf("failed to query recent inquiries for agent %s: %w", agentID.String(), err)
		}
		defer cursor.Close(gctx)
		return cursor.All(gctx, &recentInquiries)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	activities := make([]models.AgentActivity, 0, len(recentListings)+len(recentInquiries))
	for _, l := range recentListings {
		activities = append(activities, models.AgentActivity{
			Type:   "listing",
			Action: "created",
			Data:   l,
			Date:   l.CreatedAt,
		})
	}
	for _, i := range recentInquiries {
		activities = append(activities, models.AgentActivity{
			Type:   "inquiry",
			Action: "received",
			Data:   i,
			Date:   i.CreatedAt,
		})
	}
	sort.SliceStable(activities, func(a, b int) bool {
		return activities[a].Date.After(activities[b].Date)
	})
	return activities, nil
}
