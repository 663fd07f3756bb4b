package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/radheshyamgupta01/TLF-sub000/internal/config"
	"github.com/radheshyamgupta01/TLF-sub000/internal/db"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// CreateInquiryInput carries the lead form fields.
type CreateInquiryInput struct {
	ListingID      *utils.SixID
	ListingOwnerID *utils.SixID
	InquirerUserID *utils.SixID
	Name           string
	Email          string
	Phone          string
	Message        string
	Source         string
	Metadata       *models.InquiryMetadata
}

// ListInquiriesOptions control paging, filtering and ordering of ListByListing.
type ListInquiriesOptions struct {
	Page      int
	Limit     int
	Status    *models.InquiryStatus
	SortBy    string // createdAt (default), updatedAt, priority, status
	SortOrder int    // 1 ascending, -1 descending (default)
}

// IInquiryService defines the interface for lead lifecycle operations.
type IInquiryService interface {
	CreateInquiry(ctx context.Context, input CreateInquiryInput) (*models.Inquiry, error)
	FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error)
	TransitionStatus(ctx context.Context, inquiryID utils.SixID, newStatus models.InquiryStatus) (*models.Inquiry, error)
	RecordResponse(ctx context.Context, inquiryID utils.SixID, responseText string) (*models.Inquiry, error)
	LogFollowUp(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error)
	ListByListing(ctx context.Context, listingID *utils.SixID, opts ListInquiriesOptions) ([]models.Inquiry, models.Pagination, error)
	GetStats(ctx context.Context, listingOwnerID utils.SixID, dateRangeDays int) (*models.InquiryStats, error)
	FindNeedingFollowUp(ctx context.Context, listingOwnerID utils.SixID) ([]models.Inquiry, error)
	ListOwnersNeedingFollowUp(ctx context.Context) ([]utils.SixID, error)
}

const inquiriesCollection = "inquiries"

const maxInquiryTextLen = 1000

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// inquirySortFields whitelists ListByListing sort keys to BSON field names.
var inquirySortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"priority":  "priority",
	"status":    "status",
}

// inquiryService implements IInquiryService.
type inquiryService struct {
	db  *mongo.Database
	cfg *config.Config
}

// NewInquiryService creates a new InquiryService.
func NewInquiryService(db *mongo.Database, cfg *config.Config) IInquiryService {
	return &inquiryService{db: db, cfg: cfg}
}

// CreateInquiry validates the lead form input and persists a new inquiry in
// the "new" status. Validation fails fast before any storage access.
func (s *inquiryService) CreateInquiry(ctx context.Context, input CreateInquiryInput) (*models.Inquiry, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(input.Name)
	if len(name) < 2 || len(name) > 100 {
		fields["inquirerName"] = "must be between 2 and 100 characters"
	}

	email := strings.TrimSpace(input.Email)
	if !emailRe.MatchString(email) {
		fields["inquirerEmail"] = "must be a valid email address"
	}

	phone, ok := utils.NormalizePhone(input.Phone)
	if !ok {
		fields["inquirerPhone"] = "must contain exactly 10 digits"
	}

	message := strings.TrimSpace(input.Message)
	if len(message) > maxInquiryTextLen {
		fields["message"] = fmt.Sprintf("must not exceed %d characters", maxInquiryTextLen)
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	source := input.Source
	if source == "" {
		source = "web"
	}

	now := time.Now().UTC()
	doc, err := db.InsertOne(ctx, s.db.Collection(inquiriesCollection), &models.Inquiry{
		ListingID:      input.ListingID,
		ListingOwnerID: input.ListingOwnerID,
		InquirerUserID: input.InquirerUserID,
		InquirerName:   name,
		InquirerEmail:  email,
		InquirerPhone:  phone,
		Message:        message,
		Status:         models.InquiryStatusNew,
		Priority:       models.InquiryPriorityMedium,
		Source:         source,
		Metadata:       input.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	return doc.(*models.Inquiry), nil
}

// FindInquiryByID finds an inquiry by its ID.
func (s *inquiryService) FindInquiryByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	collection := s.db.Collection(inquiriesCollection)

	err := collection.FindOne(ctx, bson.M{"_id": inquiryID}).Decode(&inquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Kind: "inquiry", ID: inquiryID.String()}
		}
		return nil, fmt.Errorf("error finding inquiry by ID %s: %w", inquiryID.String(), err)
	}
	return &inquiry, nil
}

// TransitionStatus moves an inquiry through the status table. A first
// transition to "contacted" stamps respondedAt; a later pass through
// "contacted" leaves the existing respondedAt untouched.
func (s *inquiryService) TransitionStatus(ctx context.Context, inquiryID utils.SixID, newStatus models.InquiryStatus) (*models.Inquiry, error) {
	if !newStatus.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": fmt.Sprintf("unknown status %q", newStatus)}}
	}

	inquiry, err := s.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}

	if !inquiry.Status.CanTransitionTo(newStatus) {
		return nil, &InvalidTransitionError{From: inquiry.Status, To: newStatus}
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":     newStatus,
		"updated_at": now,
	}
	if newStatus == models.InquiryStatusContacted && inquiry.RespondedAt == nil {
		set["responded_at"] = now
	}

	return s.applyUpdate(ctx, inquiryID, bson.M{"$set": set})
}

// RecordResponse stores the owner's reply text, stamps respondedAt
// unconditionally, and moves the inquiry to "contacted".
func (s *inquiryService) RecordResponse(ctx context.Context, inquiryID utils.SixID, responseText string) (*models.Inquiry, error) {
	if len(responseText) > maxInquiryTextLen {
		return nil, &ValidationError{Fields: map[string]string{"response": fmt.Sprintf("must not exceed %d characters", maxInquiryTextLen)}}
	}

	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"response":     responseText,
		"responded_at": now,
		"status":       models.InquiryStatusContacted,
		"updated_at":   now,
	}}
	return s.applyUpdate(ctx, inquiryID, update)
}

// LogFollowUp records one more follow-up attempt after checking eligibility.
func (s *inquiryService) LogFollowUp(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	inquiry, err := s.FindInquiryByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !inquiry.CanFollowUp(now) {
		return nil, &FollowUpNotAllowedError{Reason: followUpDenialReason(inquiry, now)}
	}

	update := bson.M{
		"$inc": bson.M{"follow_up_count": 1},
		"$set": bson.M{
			"last_follow_up_at": now,
			"updated_at":        now,
		},
	}
	return s.applyUpdate(ctx, inquiryID, update)
}

func followUpDenialReason(inquiry *models.Inquiry, now time.Time) string {
	switch {
	case inquiry.FollowUpCount >= models.MaxFollowUps:
		return fmt.Sprintf("follow-up limit of %d reached", models.MaxFollowUps)
	case inquiry.Status.Terminal():
		return fmt.Sprintf("inquiry status %q is terminal", inquiry.Status)
	default:
		return "last follow-up was less than 24 hours ago"
	}
}

// applyUpdate applies an update to an inquiry and returns the updated document.
func (s *inquiryService) applyUpdate(ctx context.Context, inquiryID utils.SixID, update bson.M) (*models.Inquiry, error) {
	collection := s.db.Collection(inquiriesCollection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Inquiry
	err := collection.FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Kind: "inquiry", ID: inquiryID.String()}
		}
		return nil, fmt.Errorf("failed to update inquiry %s: %w", inquiryID.String(), err)
	}
	return &updated, nil
}

// ListByListing returns a page of inquiries for one listing. A nil listingID
// is an explicit filter for general inquiries (stored listing_id null), not
// the absence of a filter.
func (s *inquiryService) ListByListing(ctx context.Context, listingID *utils.SixID, opts ListInquiriesOptions) ([]models.Inquiry, models.Pagination, error) {
	collection := s.db.Collection(inquiriesCollection)

	filter := bson.M{}
	if listingID == nil {
		filter["listing_id"] = nil
	} else {
		filter["listing_id"] = *listingID
	}
	if opts.Status != nil {
		filter["status"] = *opts.Status
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	limit := opts.Limit
	if limit < 1 {
		limit = 10
	}

	sortField, ok := inquirySortFields[opts.SortBy]
	if !ok {
		sortField = "created_at"
	}
	sortOrder := opts.SortOrder
	if sortOrder != 1 {
		sortOrder = -1
	}

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to count inquiries: %w", err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortOrder}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to query inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	inquiries := []models.Inquiry{}
	if err = cursor.All(ctx, &inquiries); err != nil {
		return nil, models.Pagination{}, fmt.Errorf("failed to decode inquiries: %w", err)
	}

	return inquiries, models.NewPagination(page, limit, int(total)), nil
}

// GetStats aggregates the owner's inquiries over the trailing window: totals,
// per-status counts, average response latency over responded inquiries, and
// the general-versus-listing split. No matching inquiries yields a zeroed
// stats object, not an error.
func (s *inquiryService) GetStats(ctx context.Context, listingOwnerID utils.SixID, dateRangeDays int) (*models.InquiryStats, error) {
	if dateRangeDays <= 0 {
		dateRangeDays = 30
	}
	since := time.Now().UTC().AddDate(0, 0, -dateRangeDays)

	statusCount := func(status models.InquiryStatus) bson.M {
		return bson.M{"$sum": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", status}}, 1, 0,
		}}}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"listing_owner_id": listingOwnerID,
			"created_at":       bson.M{"$gte": since},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":            nil,
			"total":          bson.M{"$sum": 1},
			"new":            statusCount(models.InquiryStatusNew),
			"contacted":      statusCount(models.InquiryStatusContacted),
			"interested":     statusCount(models.InquiryStatusInterested),
			"not_interested": statusCount(models.InquiryStatusNotInterested),
			"closed":         statusCount(models.InquiryStatusClosed),
			// $avg ignores nulls, so unresponded inquiries do not dilute the mean.
			"avg_response_ms": bson.M{"$avg": bson.M{"$cond": bson.A{
				bson.M{"$ne": bson.A{"$responded_at", nil}},
				bson.M{"$subtract": bson.A{"$responded_at", "$created_at"}},
				nil,
			}}},
			"general_inquiries": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$listing_id", nil}}, 1, 0,
			}}},
			"listing_inquiries": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$ne": bson.A{"$listing_id", nil}}, 1, 0,
			}}},
		}}},
	}

	cursor, err := s.db.Collection(inquiriesCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate inquiry stats for owner %s: %w", listingOwnerID.String(), err)
	}
	defer cursor.Close(ctx)

	var results []models.InquiryStats
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode inquiry stats: %w", err)
	}
	if len(results) == 0 {
		return &models.InquiryStats{}, nil
	}
	return &results[0], nil
}

// FindNeedingFollowUp selects the owner's open, unanswered inquiries that are
// at least three days old and still below the follow-up cap.
func (s *inquiryService) FindNeedingFollowUp(ctx context.Context, listingOwnerID utils.SixID) ([]models.Inquiry, error) {
	collection := s.db.Collection(inquiriesCollection)

	cutoff := time.Now().UTC().Add(-models.FollowUpAge)
	filter := bson.M{
		"listing_owner_id": listingOwnerID,
		"status":           bson.M{"$in": bson.A{models.InquiryStatusNew, models.InquiryStatusContacted}},
		"created_at":       bson.M{"$lte": cutoff},
		"follow_up_count":  bson.M{"$lt": models.MaxFollowUps},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query inquiries needing follow-up for owner %s: %w", listingOwnerID.String(), err)
	}
	defer cursor.Close(ctx)

	var inquiries []models.Inquiry
	if err = cursor.All(ctx, &inquiries); err != nil {
		return nil, fmt.Errorf("failed to decode inquiries needing follow-up: %w", err)
	}
	return inquiries, nil
}

// ListOwnersNeedingFollowUp returns the distinct listing owners that currently
// have at least one inquiry needing follow-up. General inquiries carry no
// owner and are skipped.
func (s *inquiryService) ListOwnersNeedingFollowUp(ctx context.Context) ([]utils.SixID, error) {
	collection := s.db.Collection(inquiriesCollection)

	cutoff := time.Now().UTC().Add(-models.FollowUpAge)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"listing_owner_id": bson.M{"$ne": nil},
			"status":           bson.M{"$in": bson.A{models.InquiryStatusNew, models.InquiryStatusContacted}},
			"created_at":       bson.M{"$lte": cutoff},
			"follow_up_count":  bson.M{"$lt": models.MaxFollowUps},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$listing_owner_id"}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate owners needing follow-up: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		OwnerID utils.SixID `bson:"_id"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode owners needing follow-up: %w", err)
	}

	owners := make([]utils.SixID, 0, len(rows))
	for _, row := range rows {
		owners = append(owners, row.OwnerID)
	}
	return owners, nil
}
