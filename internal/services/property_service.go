package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nyumbani/rental/internal/db"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/utils"
)

// CreatePropertyInput carries the fields accepted when listing a property.
type CreatePropertyInput struct {
	Title           string                  `json:"title"`
	Description     string                  `json:"description"`
	PropertyType    models.PropertyType     `json:"property_type"`
	Price           float64                 `json:"price"`
	PriceFrequency  string                  `json:"price_frequency"`
	SecurityDeposit float64                 `json:"security_deposit"`
	Location        models.PropertyLocation `json:"location"`
	Specifications  models.Specifications   `json:"specifications"`
	Amenities       []string                `json:"amenities"`
	ContactInfo     models.ContactInfo      `json:"contact_info"`
	Availability    *models.Availability    `json:"availability"`
}

// PropertyFilter carries the supported search filters for listing
// properties. Zero values mean "no filter".
type PropertyFilter struct {
	PropertyType string
	MinPrice     float64
	MaxPrice     float64
	City         string
	Bedrooms     *int
	Furnished    *bool
	Search       string
}

// IPropertyService defines the interface for property operations.
type IPropertyService interface {
	Create(ctx context.Context, actor models.Actor, in CreatePropertyInput) (*models.Property, error)
	FindByID(ctx context.Context, propertyID utils.SixID) (*models.Property, error)
	Get(ctx context.Context, actor models.Actor, propertyID utils.SixID) (*models.Property, error)
	List(ctx context.Context, actor models.Actor, filter PropertyFilter, page, limit int, sort string) ([]models.Property, int64, error)
	Update(ctx context.Context, actor models.Actor, propertyID utils.SixID, updates map[string]interface{}) (*models.Property, error)
	Delete(ctx context.Context, actor models.Actor, propertyID utils.SixID) error
	SavedProperties(ctx context.Context, actor models.Actor) ([]models.Property, error)
	AddPhoto(ctx context.Context, actor models.Actor, propertyID utils.SixID, photo models.PropertyPhoto) (*models.Property, error)
	ReplacePhotoURL(ctx context.Context, propertyID utils.SixID, key, url string) error
	IncrementInquiries(ctx context.Context, propertyID utils.SixID) error
	EnsureIndexes(ctx context.Context) error
}

const propertiesCollection = "properties"

// propertyService implements IPropertyService.
type propertyService struct {
	db          *mongo.Database
	userService IUserService
}

// NewPropertyService creates a new PropertyService.
func NewPropertyService(db *mongo.Database, userService IUserService) IPropertyService {
	return &propertyService{db: db, userService: userService}
}

// EnsureIndexes creates the text search index over the searchable fields.
func (s *propertyService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(propertiesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "location.city", Value: "text"},
				{Key: "location.neighborhood", Value: "text"},
			},
			Options: options.Index().SetName("property_text_search"),
		},
		{
			Keys:    bson.D{{Key: "landlord_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("landlord_created"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create property indexes: %w", err)
	}
	return nil
}

// Create inserts a new property owned by the acting landlord and bumps the
// landlord's listing counter.
func (s *propertyService) Create(ctx context.Context, actor models.Actor, in CreatePropertyInput) (*models.Property, error) {
	if actor.Role != models.RoleLandlord {
		return nil, fmt.Errorf("only landlords can list properties: %w", ErrForbidden)
	}
	if err := validatePropertyInput(in); err != nil {
		return nil, err
	}

	availability := models.Availability{IsAvailable: true}
	if in.Availability != nil {
		availability = *in.Availability
	}

	collection := s.db.Collection(propertiesCollection)
	now := time.Now().UTC()

	var property *models.Property
	operation := func() error {
		property = &models.Property{
			ID:              utils.NewSixID(),
			LandlordID:      actor.ID,
			Title:           strings.TrimSpace(in.Title),
			Description:     in.Description,
			PropertyType:    in.PropertyType,
			Price:           in.Price,
			PriceFrequency:  in.PriceFrequency,
			SecurityDeposit: in.SecurityDeposit,
			Location:        in.Location,
			Specifications:  in.Specifications,
			Amenities:       in.Amenities,
			ContactInfo:     in.ContactInfo,
			Availability:    availability,
			Status:          models.PropertyStatusActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if property.PriceFrequency == "" {
			property.PriceFrequency = "monthly"
		}
		if property.ContactInfo.PreferredContact == "" {
			property.ContactInfo.PreferredContact = "phone"
		}
		_, insertErr := collection.InsertOne(ctx, property)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert property for landlord %s after retries: %w", actor.ID.String(), err)
	}

	if err := s.userService.AdjustTotalListings(ctx, actor.ID, 1); err != nil {
		log.Printf("WARN: failed to bump total listings for landlord %s: %v", actor.ID.String(), err)
	}

	return property, nil
}

func validatePropertyInput(in CreatePropertyInput) error {
	switch {
	case strings.TrimSpace(in.Title) == "" || len(in.Title) > 100:
		return fmt.Errorf("%w: title is required and must be under 100 characters", ErrInvalidInput)
	case in.Description == "" || len(in.Description) > 2000:
		return fmt.Errorf("%w: description is required and must be under 2000 characters", ErrInvalidInput)
	case !in.PropertyType.Valid():
		return fmt.Errorf("%w: invalid property type", ErrInvalidInput)
	case in.Price < 0:
		return fmt.Errorf("%w: price cannot be negative", ErrInvalidInput)
	case in.Location.Address == "":
		return fmt.Errorf("%w: address is required", ErrInvalidInput)
	case in.Location.City == "":
		return fmt.Errorf("%w: city is required", ErrInvalidInput)
	case in.Specifications.Bedrooms < 0 || in.Specifications.Bathrooms < 0:
		return fmt.Errorf("%w: bedrooms and bathrooms must not be negative", ErrInvalidInput)
	case in.ContactInfo.Phone == "":
		return fmt.Errorf("%w: contact phone is required", ErrInvalidInput)
	}
	return nil
}

// FindByID returns the property regardless of caller; used internally where
// availability checks do not apply.
func (s *propertyService) FindByID(ctx context.Context, propertyID utils.SixID) (*models.Property, error) {
	var property models.Property
	err := s.db.Collection(propertiesCollection).FindOne(ctx, bson.M{"_id": propertyID}).Decode(&property)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("property %s: %w", propertyID.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("error finding property %s: %w", propertyID.String(), err)
	}
	return &property, nil
}

// Get returns a property for display. Tenants cannot see unavailable
// properties; every successful read bumps the view counter.
func (s *propertyService) Get(ctx context.Context, actor models.Actor, propertyID utils.SixID) (*models.Property, error) {
	property, err := s.FindByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleTenant && !property.Availability.IsAvailable {
		return nil, fmt.Errorf("property %s: %w", propertyID.String(), ErrPropertyUnavailable)
	}

	if err := s.incrementCounter(ctx, propertyID, "views"); err != nil {
		log.Printf("WARN: failed to bump views for property %s: %v", propertyID.String(), err)
	} else {
		property.Views++
	}
	return property, nil
}

// List returns a page of properties scoped by role: landlords see their own
// listings, tenants see available active ones.
func (s *propertyService) List(ctx context.Context, actor models.Actor, filter PropertyFilter, page, limit int, sort string) ([]models.Property, int64, error) {
	query := bson.M{}
	if actor.Role == models.RoleLandlord {
		query["landlord_id"] = actor.ID
	} else {
		query["availability.is_available"] = true
		query["status"] = models.PropertyStatusActive
	}

	if filter.PropertyType != "" {
		query["property_type"] = filter.PropertyType
	}
	if filter.MinPrice > 0 || filter.MaxPrice > 0 {
		price := bson.M{}
		if filter.MinPrice > 0 {
			price["$gte"] = filter.MinPrice
		}
		if filter.MaxPrice > 0 {
			price["$lte"] = filter.MaxPrice
		}
		query["price"] = price
	}
	if filter.City != "" {
		query["location.city"] = primitive.Regex{Pattern: filter.City, Options: "i"}
	}
	if filter.Bedrooms != nil {
		query["specifications.bedrooms"] = *filter.Bedrooms
	}
	if filter.Furnished != nil {
		query["specifications.furnished"] = *filter.Furnished
	}
	if filter.Search != "" {
		query["$text"] = bson.M{"$search": filter.Search}
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	opts := options.Find().
		SetSort(parseSortParam(sort, "created_at")).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	collection := s.db.Collection(propertiesCollection)
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list properties: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Property
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, fmt.Errorf("failed to decode properties: %w", err)
	}

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count properties: %w", err)
	}

	return results, total, nil
}

// Update applies whitelisted field updates to a property owned by the actor.
func (s *propertyService) Update(ctx context.Context, actor models.Actor, propertyID utils.SixID, updates map[string]interface{}) (*models.Property, error) {
	property, err := s.FindByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.LandlordID != actor.ID {
		return nil, fmt.Errorf("you can only update your own properties: %w", ErrForbidden)
	}

	allowed := bson.M{}
	for key, value := range updates {
		switch key {
		case "title", "description", "property_type", "price", "price_frequency",
			"security_deposit", "location", "specifications", "amenities",
			"contact_info", "availability", "status":
			allowed[key] = value
		default:
			return nil, fmt.Errorf("%w: field %q cannot be updated", ErrInvalidInput, key)
		}
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: no valid fields provided for update", ErrInvalidInput)
	}
	allowed["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Property
	err = s.db.Collection(propertiesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": propertyID, "landlord_id": actor.ID}, bson.M{"$set": allowed}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("property %s: %w", propertyID.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update property %s: %w", propertyID.String(), err)
	}
	return &updated, nil
}

// Delete removes a property owned by the actor and decrements the landlord's
// listing counter. Inquiries referencing the property are left in place; the
// conversation history remains readable.
func (s *propertyService) Delete(ctx context.Context, actor models.Actor, propertyID utils.SixID) error {
	property, err := s.FindByID(ctx, propertyID)
	if err != nil {
		return err
	}
	if property.LandlordID != actor.ID {
		return fmt.Errorf("you can only delete your own properties: %w", ErrForbidden)
	}

	if _, err := s.db.Collection(propertiesCollection).DeleteOne(ctx, bson.M{"_id": propertyID}); err != nil {
		return fmt.Errorf("failed to delete property %s: %w", propertyID.String(), err)
	}

	if err := s.userService.AdjustTotalListings(ctx, actor.ID, -1); err != nil {
		log.Printf("WARN: failed to decrement total listings for landlord %s: %v", actor.ID.String(), err)
	}
	return nil
}

// SavedProperties returns the tenant's saved properties that are still
// available.
func (s *propertyService) SavedProperties(ctx context.Context, actor models.Actor) ([]models.Property, error) {
	if actor.Role != models.RoleTenant {
		return nil, fmt.Errorf("only tenants have saved properties: %w", ErrForbidden)
	}
	user, err := s.userService.FindByID(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	if len(user.SavedProperties) == 0 {
		return []models.Property{}, nil
	}

	cursor, err := s.db.Collection(propertiesCollection).Find(ctx, bson.M{
		"_id":                       bson.M{"$in": user.SavedProperties},
		"availability.is_available": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load saved properties for %s: %w", actor.ID.String(), err)
	}
	defer cursor.Close(ctx)

	var results []models.Property
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode saved properties: %w", err)
	}
	return results, nil
}

// AddPhoto appends an uploaded photo to a property owned by the actor. The
// first photo becomes primary.
func (s *propertyService) AddPhoto(ctx context.Context, actor models.Actor, propertyID utils.SixID, photo models.PropertyPhoto) (*models.Property, error) {
	property, err := s.FindByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}
	if property.LandlordID != actor.ID {
		return nil, fmt.Errorf("you can only add photos to your own properties: %w", ErrForbidden)
	}

	photo.IsPrimary = len(property.Photos) == 0

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Property
	err = s.db.Collection(propertiesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": propertyID}, bson.M{
			"$push": bson.M{"photos": photo},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
		}, opts).
		Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to add photo to property %s: %w", propertyID.String(), err)
	}
	return &updated, nil
}

// ReplacePhotoURL swaps in the final URL for a photo identified by its S3
// key, once background processing has produced the normalized image.
func (s *propertyService) ReplacePhotoURL(ctx context.Context, propertyID utils.SixID, key, url string) error {
	res, err := s.db.Collection(propertiesCollection).UpdateOne(ctx,
		bson.M{"_id": propertyID, "photos.key": key},
		bson.M{"$set": bson.M{"photos.$.url": url, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("failed to replace photo URL on property %s: %w", propertyID.String(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("photo %s on property %s: %w", key, propertyID.String(), ErrNotFound)
	}
	return nil
}

// IncrementInquiries bumps the property's inquiry counter. Called by the
// inquiry service when a new inquiry is created.
func (s *propertyService) IncrementInquiries(ctx context.Context, propertyID utils.SixID) error {
	return s.incrementCounter(ctx, propertyID, "inquiries")
}

func (s *propertyService) incrementCounter(ctx context.Context, propertyID utils.SixID, field string) error {
	res, err := s.db.Collection(propertiesCollection).UpdateByID(ctx, propertyID,
		bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return fmt.Errorf("db error incrementing %s for property %s: %w", field, propertyID.String(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("property %s: %w", propertyID.String(), ErrNotFound)
	}
	return nil
}

// parseSortParam turns a "-field" / "field" string into a Mongo sort
// document, defaulting to newest-first on defaultField.
func parseSortParam(sort, defaultField string) bson.D {
	if sort == "" {
		return bson.D{{Key: defaultField, Value: -1}}
	}
	field := sort
	order := 1
	if strings.HasPrefix(sort, "-") {
		field = strings.TrimPrefix(sort, "-")
		order = -1
	}
	if field == "" {
		return bson.D{{Key: defaultField, Value: -1}}
	}
	return bson.D{{Key: field, Value: order}}
}
