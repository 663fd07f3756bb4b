package models

import (
	"fmt"
	"time"

	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// InquiryStatus is the lifecycle state of a lead.
type InquiryStatus string

const (
	InquiryStatusNew           InquiryStatus = "new"
	InquiryStatusContacted     InquiryStatus = "contacted"
	InquiryStatusInterested    InquiryStatus = "interested"
	InquiryStatusNotInterested InquiryStatus = "not-interested"
	InquiryStatusClosed        InquiryStatus = "closed"
)

// Valid reports whether the status is one of the known statuses.
func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryStatusNew, InquiryStatusContacted, InquiryStatusInterested,
		InquiryStatusNotInterested, InquiryStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s InquiryStatus) Terminal() bool {
	return s == InquiryStatusClosed || s == InquiryStatusNotInterested
}

// inquiryTransitions is the allowed status transition table. Closed and
// not-interested are terminal. A repeated "contacted" transition is allowed so
// that logging another contact attempt succeeds (respondedAt stays set-once).
var inquiryTransitions = map[InquiryStatus][]InquiryStatus{
	InquiryStatusNew:        {InquiryStatusContacted, InquiryStatusInterested, InquiryStatusNotInterested, InquiryStatusClosed},
	InquiryStatusContacted:  {InquiryStatusContacted, InquiryStatusInterested, InquiryStatusNotInterested, InquiryStatusClosed},
	InquiryStatusInterested: {InquiryStatusContacted, InquiryStatusNotInterested, InquiryStatusClosed},
}

// CanTransitionTo reports whether a status change from s to next is allowed.
func (s InquiryStatus) CanTransitionTo(next InquiryStatus) bool {
	for _, allowed := range inquiryTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// InquiryPriority is the triage priority of a lead.
type InquiryPriority string

const (
	InquiryPriorityLow    InquiryPriority = "low"
	InquiryPriorityMedium InquiryPriority = "medium"
	InquiryPriorityHigh   InquiryPriority = "high"
)

// Valid reports whether the priority is one of the known priorities.
func (p InquiryPriority) Valid() bool {
	switch p {
	case InquiryPriorityLow, InquiryPriorityMedium, InquiryPriorityHigh:
		return true
	}
	return false
}

// InquiryMetadata carries opaque request provenance. Never used in logic.
type InquiryMetadata struct {
	UserAgent string `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	IPAddress string `bson:"ip_address,omitempty" json:"ipAddress,omitempty"`
	Referrer  string `bson:"referrer,omitempty" json:"referrer,omitempty"`
}

// Inquiry represents a lead: a prospective buyer's interest in a listing, or a
// general inquiry when ListingID is nil. ListingID is stored without omitempty
// so that general inquiries persist an explicit null, which listing filters
// match by equality.
type Inquiry struct {
	Base           `bson:",inline"`
	ListingID      *utils.SixID     `bson:"listing_id" json:"listingId"`
	ListingOwnerID *utils.SixID     `bson:"listing_owner_id,omitempty" json:"listingOwnerId,omitempty"`
	InquirerUserID *utils.SixID     `bson:"inquirer_user_id,omitempty" json:"inquirerUserId,omitempty"`
	InquirerName   string           `bson:"inquirer_name" json:"inquirerName"`
	InquirerEmail  string           `bson:"inquirer_email" json:"inquirerEmail"`
	InquirerPhone  string           `bson:"inquirer_phone" json:"inquirerPhone"` // Digits only, exactly 10
	Message        string           `bson:"message,omitempty" json:"message,omitempty"`
	Status         InquiryStatus    `bson:"status" json:"status"`
	RespondedAt    *time.Time       `bson:"responded_at" json:"respondedAt"` // Set once, never overwritten
	Response       string           `bson:"response,omitempty" json:"response,omitempty"`
	Priority       InquiryPriority  `bson:"priority" json:"priority"`
	FollowUpCount  int              `bson:"follow_up_count" json:"followUpCount"`
	LastFollowUpAt *time.Time       `bson:"last_follow_up_at,omitempty" json:"lastFollowUpAt,omitempty"`
	Source         string           `bson:"source" json:"source"`
	Metadata       *InquiryMetadata `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time        `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time        `bson:"updated_at" json:"updatedAt"`
}

const (
	// MaxFollowUps caps logged follow-up attempts per inquiry.
	MaxFollowUps = 3
	// FollowUpSpacing is the minimum gap between follow-up attempts.
	FollowUpSpacing = 24 * time.Hour
	// FollowUpAge is how old an unanswered inquiry must be before it needs a follow-up.
	FollowUpAge = 72 * time.Hour
)

// IsRecent reports whether the inquiry was created within the last 24 hours.
func (i *Inquiry) IsRecent(now time.Time) bool {
	return now.Sub(i.CreatedAt) < 24*time.Hour
}

// TimeAgo renders the inquiry age as days, hours, or minutes, whichever is the
// largest whole unit, with a floor of one minute.
func (i *Inquiry) TimeAgo(now time.Time) string {
	age := now.Sub(i.CreatedAt)
	if days := int(age.Hours() / 24); days >= 1 {
		return agoString(days, "day")
	}
	if hours := int(age.Hours()); hours >= 1 {
		return agoString(hours, "hour")
	}
	minutes := int(age.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return agoString(minutes, "minute")
}

func agoString(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// NeedsFollowUp reports whether the inquiry is still open, has never been
// responded to, and is at least three days old. The boundary is inclusive:
// exactly three days counts.
func (i *Inquiry) NeedsFollowUp(now time.Time) bool {
	return !i.Status.Terminal() && i.RespondedAt == nil && now.Sub(i.CreatedAt) >= FollowUpAge
}

// CanFollowUp reports whether another follow-up attempt may be logged: fewer
// than MaxFollowUps so far, a non-terminal status, and at least FollowUpSpacing
// since the previous attempt.
func (i *Inquiry) CanFollowUp(now time.Time) bool {
	if i.FollowUpCount >= MaxFollowUps {
		return false
	}
	if i.Status.Terminal() {
		return false
	}
	if i.LastFollowUpAt != nil && now.Sub(*i.LastFollowUpAt) < FollowUpSpacing {
		return false
	}
	return true
}
