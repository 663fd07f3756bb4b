package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/auth"
	"github.com/radheshyamgupta01/TLF-sub000/internal/db"
	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
	"github.com/radheshyamgupta01/TLF-sub000/internal/utils"
)

// ErrEmailExists is returned when an attempt is made to use an email that already exists.
var ErrEmailExists = errors.New("email already in use by another account")

// ErrInvalidCredentials is returned when an email/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid email or password")

// RegisterUserInput carries the registration form fields. Agent fields are
// only meaningful for agent-like roles.
type RegisterUserInput struct {
	Name           string
	Email          string
	Password       string
	Phone          string
	Role           models.UserRole
	Experience     int
	City           string
	State          string
	Specialization string
}

// IUserService defines the interface for user-related operations.
// This allows for easier mocking in tests.
type IUserService interface {
	Register(ctx context.Context, input RegisterUserInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	ChangePassword(ctx context.Context, userID utils.SixID, oldPassword, newPassword string) error
	DeactivateUser(ctx context.Context, userID utils.SixID) error
	ReactivateUser(ctx context.Context, userID utils.SixID) error
	SetUserFeatured(ctx context.Context, userID utils.SixID, featured bool) error
	SetAgentRating(ctx context.Context, userID utils.SixID, rating float64, totalReviews int) error
}

const usersCollection = "users"

const minPasswordLen = 8

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// Register validates the input, hashes the password, and creates an active
// user account.
func (s *userService) Register(ctx context.Context, input RegisterUserInput) (*models.User, error) {
	fields := map[string]string{}

	name := strings.TrimSpace(input.Name)
	if len(name) < 2 || len(name) > 100 {
		fields["name"] = "must be between 2 and 100 characters"
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if !emailRe.MatchString(email) {
		fields["email"] = "must be a valid email address"
	}
	if len(input.Password) < minPasswordLen {
		fields["password"] = fmt.Sprintf("must be at least %d characters", minPasswordLen)
	}
	role := input.Role
	if role == "" {
		role = models.RoleBuyer
	}
	if !role.Valid() || role == models.RoleAdmin {
		fields["role"] = "must be buyer, agent, broker, or developer"
	}
	var phone string
	if input.Phone != "" {
		var ok bool
		phone, ok = utils.NormalizePhone(input.Phone)
		if !ok {
			fields["phone"] = "must contain exactly 10 digits"
		}
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	collection := s.db.Collection(usersCollection)
	count, err := collection.CountDocuments(ctx, bson.M{"email": email, "deleted": false})
	if err != nil {
		return nil, fmt.Errorf("error checking email uniqueness for %s: %w", email, err)
	}
	if count > 0 {
		return nil, ErrEmailExists
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc, err := db.InsertOne(ctx, collection, &models.User{
		Name:           name,
		Email:          email,
		Phone:          phone,
		PasswordHash:   hash,
		Role:           role,
		IsActive:       true,
		Experience:     input.Experience,
		City:           input.City,
		State:          input.State,
		Specialization: input.Specialization,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		// The unique email index can still race the uniqueness check above.
		if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "email") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("error inserting new user for %s: %w", email, err)
	}
	return doc.(*models.User), nil
}

// Authenticate verifies an email/password pair against an active account.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindByEmail finds a non-deleted user by their email address.
// Returns nil and mongo.ErrNoDocuments if not found.
func (s *userService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"email": email, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}
	return &user, nil
}

// FindByID finds a non-deleted user by their ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	collection := s.db.Collection(usersCollection)
	filter := bson.M{"_id": userID, "deleted": false}

	err := collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &NotFoundError{Kind: "user", ID: userID.String()}
		}
		return nil, fmt.Errorf("error finding user by ID %s: %w", userID.String(), err)
	}
	return &user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *userService) ChangePassword(ctx context.Context, userID utils.SixID, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return &ValidationError{Fields: map[string]string{"newPassword": fmt.Sprintf("must be at least %d characters", minPasswordLen)}}
	}

	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.updateUser(ctx, userID, bson.M{"password": hash})
}

// DeactivateUser takes an account out of circulation: it can no longer log in
// and drops out of the agent directory.
func (s *userService) DeactivateUser(ctx context.Context, userID utils.SixID) error {
	return s.updateUser(ctx, userID, bson.M{"is_active": false})
}

// ReactivateUser restores a deactivated account.
func (s *userService) ReactivateUser(ctx context.Context, userID utils.SixID) error {
	return s.updateUser(ctx, userID, bson.M{"is_active": true})
}

// SetUserFeatured toggles the featured flag used by directory search.
func (s *userService) SetUserFeatured(ctx context.Context, userID utils.SixID, featured bool) error {
	return s.updateUser(ctx, userID, bson.M{"is_featured": featured})
}

// SetAgentRating stores a recomputed rating and review count for an agent.
func (s *userService) SetAgentRating(ctx context.Context, userID utils.SixID, rating float64, totalReviews int) error {
	if rating < 0 || rating > 5 {
		return &ValidationError{Fields: map[string]string{"rating": "must be between 0 and 5"}}
	}
	return s.updateUser(ctx, userID, bson.M{"rating": rating, "total_reviews": totalReviews})
}

func (s *userService) updateUser(ctx context.Context, userID utils.SixID, set bson.M) error {
	collection := s.db.Collection(usersCollection)
	set["updated_at"] = time.Now().UTC()

	result, err := collection.UpdateOne(ctx, bson.M{"_id": userID, "deleted": false}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("error updating user %s: %w", userID.String(), err)
	}
	if result.MatchedCount == 0 {
		return &NotFoundError{Kind: "user", ID: userID.String()}
	}
	return nil
}
