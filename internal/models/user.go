package models

import (
	"time"
)

// UserRole defines the account roles in the marketplace.
type UserRole string

const (
	RoleBuyer     UserRole = "buyer"
	RoleAgent     UserRole = "agent"
	RoleBroker    UserRole = "broker"
	RoleDeveloper UserRole = "developer"
	RoleAdmin     UserRole = "admin"
)

// AgentRoles are the roles that appear in the agent directory and rankings.
var AgentRoles = []UserRole{RoleAgent, RoleBroker, RoleDeveloper}

// IsAgentLike reports whether the role participates in the agent directory.
func (r UserRole) IsAgentLike() bool {
	for _, role := range AgentRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleBuyer, RoleAgent, RoleBroker, RoleDeveloper, RoleAdmin:
		return true
	}
	return false
}

// User represents a user account: buyers, agents/brokers/developers, and admins.
// Agent-specific fields (rating, experience, specialization) are zero-valued for buyers.
type User struct {
	Base           `bson:",inline"`
	Name           string    `bson:"name" json:"name"`
	Email          string    `bson:"email" json:"email"`
	Phone          string    `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash   string    `bson:"password" json:"-"` // Store hash, not plaintext
	Role           UserRole  `bson:"role" json:"role"`
	IsActive       bool      `bson:"is_active" json:"isActive"`
	IsFeatured     bool      `bson:"is_featured" json:"isFeatured"`
	Rating         float64   `bson:"rating" json:"rating"`
	TotalReviews   int       `bson:"total_reviews" json:"totalReviews"`
	Experience     int       `bson:"experience" json:"experience"` // Years in the business
	City           string    `bson:"city,omitempty" json:"city,omitempty"`
	State          string    `bson:"state,omitempty" json:"state,omitempty"`
	Specialization string    `bson:"specialization,omitempty" json:"specialization,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updatedAt"`
	Deleted        bool      `bson:"deleted" json:"-"` // Soft delete flag
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
