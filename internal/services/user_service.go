package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nyumbani/rental/internal/auth"
	"nyumbani/rental/internal/db"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/utils"
)

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Email           string      `json:"email"`
	Password        string      `json:"password"`
	FullName        string      `json:"full_name"`
	Phone           string      `json:"phone"`
	Role            models.Role `json:"role"`
	CompanyName     string      `json:"company_name"`
	BusinessAddress string      `json:"business_address"`
}

// ProfileUpdate carries the mutable profile fields. Tenant-specific fields
// are ignored for landlords.
type ProfileUpdate struct {
	FullName           string     `json:"full_name"`
	Phone              string     `json:"phone"`
	PreferredLocations []string   `json:"preferred_locations"`
	MaxBudget          *float64   `json:"max_budget"`
	MoveInDate         *time.Time `json:"move_in_date"`
}

// IUserService defines the interface for user-related operations.
type IUserService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	FindByID(ctx context.Context, userID utils.SixID) (*models.User, error)
	UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error)
	AdjustTotalListings(ctx context.Context, landlordID utils.SixID, delta int) error
	SaveProperty(ctx context.Context, actor models.Actor, propertyID utils.SixID) error
	UnsaveProperty(ctx context.Context, actor models.Actor, propertyID utils.SixID) error
	EnsureIndexes(ctx context.Context) error
}

const usersCollection = "users"

// userService implements IUserService.
type userService struct {
	db *mongo.Database
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database) IUserService {
	return &userService{db: db}
}

// EnsureIndexes creates the unique email index.
func (s *userService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("email_1").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user indexes: %w", err)
	}
	return nil
}

var errMissingField = func(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
}

// Register creates a new user with a hashed password and returns it.
func (s *userService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	switch {
	case in.Email == "":
		return nil, errMissingField("email")
	case len(in.Password) < 6:
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	case strings.TrimSpace(in.FullName) == "":
		return nil, errMissingField("full name")
	case in.Phone == "":
		return nil, errMissingField("phone")
	case !in.Role.Valid():
		return nil, fmt.Errorf("%w: role must be either tenant or landlord", ErrInvalidInput)
	}
	if in.Role == models.RoleLandlord {
		if in.CompanyName == "" {
			return nil, errMissingField("company name")
		}
		if in.BusinessAddress == "" {
			return nil, errMissingField("business address")
		}
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()

	var newUser *models.User
	operation := func() error {
		newUser = &models.User{
			ID:              utils.NewSixID(),
			Email:           in.Email,
			PasswordHash:    passwordHash,
			FullName:        strings.TrimSpace(in.FullName),
			Phone:           in.Phone,
			Role:            in.Role,
			CompanyName:     in.CompanyName,
			BusinessAddress: in.BusinessAddress,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		_, insertErr := collection.InsertOne(ctx, newUser)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if db.IsDuplicateKeyOnIndex(err, "email_1") {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert new user %s after retries: %w", in.Email, err)
	}

	return newUser, nil
}

// Authenticate verifies the credentials and returns the matching user.
// The same ErrForbidden comes back for an unknown email and a wrong
// password so callers cannot probe which emails are registered.
func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrForbidden)
		}
		return nil, fmt.Errorf("error finding user by email %s: %w", email, err)
	}

	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", ErrForbidden)
	}
	return &user, nil
}

// FindByID returns the user with the given ID.
func (s *userService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID.String(), err)
	}
	return &user, nil
}

// UpdateProfile applies the profile mutation and returns the updated user.
// Tenant-only fields are applied only when the user is a tenant.
func (s *userService) UpdateProfile(ctx context.Context, userID utils.SixID, update ProfileUpdate) (*models.User, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if update.FullName != "" {
		set["full_name"] = strings.TrimSpace(update.FullName)
	}
	if update.Phone != "" {
		set["phone"] = update.Phone
	}
	if user.Role == models.RoleTenant {
		if update.PreferredLocations != nil {
			set["preferred_locations"] = update.PreferredLocations
		}
		if update.MaxBudget != nil && *update.MaxBudget > 0 {
			set["max_budget"] = *update.MaxBudget
		}
		if update.MoveInDate != nil {
			set["move_in_date"] = update.MoveInDate
		}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err = s.db.Collection(usersCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).
		Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile for user %s: %w", userID.String(), err)
	}
	return &updated, nil
}

// AdjustTotalListings increments (or decrements) a landlord's listing counter.
func (s *userService) AdjustTotalListings(ctx context.Context, landlordID utils.SixID, delta int) error {
	_, err := s.db.Collection(usersCollection).UpdateByID(ctx, landlordID,
		bson.M{"$inc": bson.M{"total_listings": delta}})
	if err != nil {
		return fmt.Errorf("failed to adjust total listings for %s: %w", landlordID.String(), err)
	}
	return nil
}

// SaveProperty adds a property to the tenant's saved list. Saving an
// already-saved property is a no-op.
func (s *userService) SaveProperty(ctx context.Context, actor models.Actor, propertyID utils.SixID) error {
	if actor.Role != models.RoleTenant {
		return fmt.Errorf("only tenants can save properties: %w", ErrForbidden)
	}
	res, err := s.db.Collection(usersCollection).UpdateByID(ctx, actor.ID,
		bson.M{"$addToSet": bson.M{"saved_properties": propertyID}})
	if err != nil {
		return fmt.Errorf("failed to save property %s for user %s: %w", propertyID.String(), actor.ID.String(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", actor.ID.String(), ErrNotFound)
	}
	return nil
}

// UnsaveProperty removes a property from the tenant's saved list.
func (s *userService) UnsaveProperty(ctx context.Context, actor models.Actor, propertyID utils.SixID) error {
	if actor.Role != models.RoleTenant {
		return fmt.Errorf("only tenants can unsave properties: %w", ErrForbidden)
	}
	res, err := s.db.Collection(usersCollection).UpdateByID(ctx, actor.ID,
		bson.M{"$pull": bson.M{"saved_properties": propertyID}})
	if err != nil {
		return fmt.Errorf("failed to unsave property %s for user %s: %w", propertyID.String(), actor.ID.String(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", actor.ID.String(), ErrNotFound)
	}
	return nil
}
