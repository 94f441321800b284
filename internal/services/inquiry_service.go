package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"nyumbani/rental/internal/db"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/utils"
)

// activeInquiryIndex enforces one active inquiry per (property, tenant)
// pair. The partial filter keys off the derived "active" flag, which every
// status mutation keeps in sync with the status itself.
const activeInquiryIndex = "uniq_active_property_tenant"

// Notifier dispatches inquiry lifecycle notifications to the affected
// party. Delivery is asynchronous; a nil Notifier disables notifications.
type Notifier interface {
	NotifyInquiryReceived(ctx context.Context, inquiry *models.Inquiry) error
	NotifyInquiryReply(ctx context.Context, inquiry *models.Inquiry, recipientID utils.SixID) error
	NotifyViewingScheduled(ctx context.Context, inquiry *models.Inquiry) error
}

// CreateInquiryInput carries the tenant-supplied fields of a new inquiry.
type CreateInquiryInput struct {
	PropertyID        utils.SixID `json:"property_id"`
	Message           string      `json:"message"`
	MoveInDate        time.Time   `json:"move_in_date"`
	NumberOfOccupants int         `json:"number_of_occupants"`
}

// ScheduleViewingInput carries the landlord-proposed viewing slot.
type ScheduleViewingInput struct {
	Date  time.Time `json:"date"`
	Time  string    `json:"time"`
	Notes string    `json:"notes"`
}

// InquiryFilter narrows an inquiry listing. Status empty means all.
type InquiryFilter struct {
	Status string
}

// IInquiryService defines the interface for the inquiry lifecycle.
type IInquiryService interface {
	Create(ctx context.Context, actor models.Actor, in CreateInquiryInput) (*models.Inquiry, error)
	GetByID(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error)
	List(ctx context.Context, actor models.Actor, filter InquiryFilter, page, limit int, sort string) ([]models.Inquiry, int64, error)
	Reply(ctx context.Context, actor models.Actor, inquiryID utils.SixID, message string) (*models.Inquiry, error)
	ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID, in ScheduleViewingInput) (*models.Inquiry, error)
	ConfirmViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error)
	SetStatus(ctx context.Context, actor models.Actor, inquiryID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error)
	EnsureIndexes(ctx context.Context) error
}

const inquiriesCollection = "inquiries"

// inquiryService implements IInquiryService.
type inquiryService struct {
	db              *mongo.Database
	propertyService IPropertyService
	notifier        Notifier
}

// NewInquiryService creates a new InquiryService. notifier may be nil.
func NewInquiryService(db *mongo.Database, propertyService IPropertyService, notifier Notifier) IInquiryService {
	return &inquiryService{db: db, propertyService: propertyService, notifier: notifier}
}

// EnsureIndexes creates the partial unique index backing the one-active-
// inquiry constraint plus the listing indexes.
func (s *inquiryService) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(inquiriesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "property_id", Value: 1}, {Key: "tenant_id", Value: 1}},
			Options: options.Index().
				SetName(activeInquiryIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("tenant_updated"),
		},
		{
			Keys:    bson.D{{Key: "landlord_id", Value: 1}, {Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("landlord_updated"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create inquiry indexes: %w", err)
	}
	return nil
}

// Create opens a new inquiry from the acting tenant on a property. The
// landlord is resolved from the property record, never from the caller.
// A second active inquiry on the same property by the same tenant is
// rejected with ErrInquiryConflict; the unique index makes this hold under
// concurrent creates.
func (s *inquiryService) Create(ctx context.Context, actor models.Actor, in CreateInquiryInput) (*models.Inquiry, error) {
	if actor.Role != models.RoleTenant {
		return nil, fmt.Errorf("only tenants can send inquiries: %w", ErrForbidden)
	}
	if strings.TrimSpace(in.Message) == "" || len(in.Message) > 1000 {
		return nil, fmt.Errorf("%w: message is required and must be under 1000 characters", ErrInvalidInput)
	}
	if in.NumberOfOccupants < 1 {
		in.NumberOfOccupants = 1
	}

	property, err := s.propertyService.FindByID(ctx, in.PropertyID)
	if err != nil {
		return nil, err
	}
	if !property.Availability.IsAvailable {
		return nil, fmt.Errorf("property %s is not accepting inquiries: %w", property.ID.String(), ErrPropertyUnavailable)
	}

	collection := s.db.Collection(inquiriesCollection)
	now := time.Now().UTC()

	var inquiry *models.Inquiry
	operation := func() error {
		inquiry = &models.Inquiry{
			ID:                utils.NewSixID(),
			PropertyID:        property.ID,
			TenantID:          actor.ID,
			LandlordID:        property.LandlordID,
			Message:           strings.TrimSpace(in.Message),
			MoveInDate:        in.MoveInDate,
			NumberOfOccupants: in.NumberOfOccupants,
			Status:            models.InquiryStatusPending,
			Active:            true,
			Replies:           []models.InquiryReply{},
			ViewedByLandlord:  false,
			ViewedByTenant:    true,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		_, insertErr := collection.InsertOne(ctx, inquiry)
		return insertErr
	}

	if err := db.Try(operation); err != nil {
		if db.IsDuplicateKeyOnIndex(err, activeInquiryIndex) {
			return nil, fmt.Errorf("you already have an active inquiry for this property: %w", ErrInquiryConflict)
		}
		return nil, fmt.Errorf("failed to insert inquiry for tenant %s after retries: %w", actor.ID.String(), err)
	}

	if err := s.propertyService.IncrementInquiries(ctx, property.ID); err != nil {
		log.Printf("WARN: failed to bump inquiry count for property %s: %v", property.ID.String(), err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyInquiryReceived(ctx, inquiry); err != nil {
			log.Printf("WARN: failed to enqueue inquiry notification for %s: %v", inquiry.ID.String(), err)
		}
	}
	return inquiry, nil
}

// GetByID returns an inquiry to one of its participants and records the
// read: the reader's viewed flag is set and their unread replies are
// marked read. Reads never change the status. Rereading an already-seen
// inquiry writes nothing.
func (s *inquiryService) GetByID(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error) {
	inquiry, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if !inquiry.IsParticipant(actor) {
		return nil, fmt.Errorf("inquiry %s does not involve user %s: %w", inquiryID.String(), actor.ID.String(), ErrForbidden)
	}

	set := bson.M{}
	if actor.ID == inquiry.LandlordID {
		if !inquiry.ViewedByLandlord {
			set["viewed_by_landlord"] = true
		}
	} else if !inquiry.ViewedByTenant {
		set["viewed_by_tenant"] = true
	}
	unread := hasUnreadFrom(inquiry, otherParticipant(inquiry, actor))
	if len(set) == 0 && !unread {
		return inquiry, nil
	}
	set["replies.$[unread].read"] = true

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{Filters: []interface{}{
			bson.M{"unread.sender_id": otherParticipant(inquiry, actor), "unread.read": false},
		}})

	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{"$set": set}, opts).
		Decode(&updated)
	if err != nil {
		return nil, fmt.Errorf("failed to record read of inquiry %s: %w", inquiryID.String(), err)
	}
	return &updated, nil
}

// List returns a page of the actor's inquiries, newest activity first
// unless the caller supplies a sort field. Tenants see inquiries they
// sent, landlords the ones on their properties.
func (s *inquiryService) List(ctx context.Context, actor models.Actor, filter InquiryFilter, page, limit int, sort string) ([]models.Inquiry, int64, error) {
	query := bson.M{}
	if actor.Role == models.RoleLandlord {
		query["landlord_id"] = actor.ID
	} else {
		query["tenant_id"] = actor.ID
	}
	if filter.Status != "" {
		if !models.InquiryStatus(filter.Status).Valid() {
			return nil, 0, fmt.Errorf("%w: unknown inquiry status %q", ErrInvalidInput, filter.Status)
		}
		query["status"] = filter.Status
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	opts := options.Find().
		SetSort(parseSortParam(sort, "updated_at")).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	collection := s.db.Collection(inquiriesCollection)
	cursor, err := collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Inquiry
	if err := cursor.All(ctx, &results); err != nil {
		return nil, 0, fmt.Errorf("failed to decode inquiries: %w", err)
	}

	total, err := collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count inquiries: %w", err)
	}
	return results, total, nil
}

// Reply appends a message to the conversation. The push, the move to
// replied and the flag reset land in one document update, so concurrent
// replies interleave but never drop. Only the other party's viewed flag
// is cleared; the sender's own flag is left alone. Replying always forces
// the status to replied, even on a cancelled or completed inquiry, which
// re-activates it. If the tenant has opened a newer active inquiry on the
// same property in the meantime, the re-activation trips the one-active
// constraint and fails with ErrInquiryConflict.
func (s *inquiryService) Reply(ctx context.Context, actor models.Actor, inquiryID utils.SixID, message string) (*models.Inquiry, error) {
	if strings.TrimSpace(message) == "" || len(message) > 1000 {
		return nil, fmt.Errorf("%w: reply message is required and must be under 1000 characters", ErrInvalidInput)
	}

	inquiry, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if !inquiry.IsParticipant(actor) {
		return nil, fmt.Errorf("inquiry %s does not involve user %s: %w", inquiryID.String(), actor.ID.String(), ErrForbidden)
	}

	reply := models.InquiryReply{
		SenderID:  actor.ID,
		Message:   strings.TrimSpace(message),
		Read:      false,
		CreatedAt: time.Now().UTC(),
	}

	set := bson.M{
		"status":     models.InquiryStatusReplied,
		"active":     true,
		"updated_at": reply.CreatedAt,
	}
	if actor.ID == inquiry.LandlordID {
		set["viewed_by_tenant"] = false
	} else {
		set["viewed_by_landlord"] = false
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{
			"$push": bson.M{"replies": reply},
			"$set":  set,
		}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("inquiry %s: %w", inquiryID.String(), ErrNotFound)
		}
		if db.IsDuplicateKeyOnIndex(err, activeInquiryIndex) {
			return nil, fmt.Errorf("a newer active inquiry exists for this property and tenant: %w", ErrInquiryConflict)
		}
		return nil, fmt.Errorf("failed to append reply to inquiry %s: %w", inquiryID.String(), err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyInquiryReply(ctx, &updated, otherParticipant(&updated, actor)); err != nil {
			log.Printf("WARN: failed to enqueue reply notification for %s: %v", inquiryID.String(), err)
		}
	}
	return &updated, nil
}

// ScheduleViewing records a landlord-proposed viewing slot and moves the
// inquiry to scheduled. Only the inquiry's landlord may schedule, and both
// date and time are required. Rescheduling overwrites the previous slot and
// resets confirmation.
func (s *inquiryService) ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID, in ScheduleViewingInput) (*models.Inquiry, error) {
	if in.Date.IsZero() || strings.TrimSpace(in.Time) == "" {
		return nil, fmt.Errorf("%w: viewing date and time are required", ErrInvalidInput)
	}

	inquiry, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if actor.ID != inquiry.LandlordID {
		return nil, fmt.Errorf("only the property's landlord can schedule a viewing: %w", ErrForbidden)
	}

	viewing := models.ScheduledViewing{
		Date:      in.Date,
		Time:      strings.TrimSpace(in.Time),
		Notes:     in.Notes,
		Confirmed: false,
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{"$set": bson.M{
			"scheduled_viewing": viewing,
			"status":            models.InquiryStatusScheduled,
			"active":            true,
			"viewed_by_tenant":  false,
			"updated_at":        time.Now().UTC(),
		}}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("inquiry %s: %w", inquiryID.String(), ErrNotFound)
		}
		if db.IsDuplicateKeyOnIndex(err, activeInquiryIndex) {
			return nil, fmt.Errorf("a newer active inquiry exists for this property and tenant: %w", ErrInquiryConflict)
		}
		return nil, fmt.Errorf("failed to schedule viewing on inquiry %s: %w", inquiryID.String(), err)
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyViewingScheduled(ctx, &updated); err != nil {
			log.Printf("WARN: failed to enqueue viewing notification for %s: %v", inquiryID.String(), err)
		}
	}
	return &updated, nil
}

// ConfirmViewing marks the proposed viewing as confirmed by the tenant
// and re-affirms the scheduled status, restoring it if a status override
// landed in between. Confirming an already confirmed, still scheduled
// viewing is a no-op, not an error.
func (s *inquiryService) ConfirmViewing(ctx context.Context, actor models.Actor, inquiryID utils.SixID) (*models.Inquiry, error) {
	inquiry, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if actor.ID != inquiry.TenantID {
		return nil, fmt.Errorf("only the inquiring tenant can confirm a viewing: %w", ErrForbidden)
	}
	if inquiry.ScheduledViewing == nil {
		return nil, fmt.Errorf("%w: no viewing has been scheduled for this inquiry", ErrInvalidInput)
	}
	if inquiry.ScheduledViewing.Confirmed && inquiry.Status == models.InquiryStatusScheduled {
		return inquiry, nil
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{"$set": bson.M{
			"scheduled_viewing.confirmed": true,
			"status":                      models.InquiryStatusScheduled,
			"active":                      true,
			"viewed_by_landlord":          false,
			"updated_at":                  time.Now().UTC(),
		}}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("inquiry %s: %w", inquiryID.String(), ErrNotFound)
		}
		if db.IsDuplicateKeyOnIndex(err, activeInquiryIndex) {
			return nil, fmt.Errorf("a newer active inquiry exists for this property and tenant: %w", ErrInquiryConflict)
		}
		return nil, fmt.Errorf("failed to confirm viewing on inquiry %s: %w", inquiryID.String(), err)
	}
	return &updated, nil
}

// SetStatus moves the inquiry to any valid status. Either participant may
// change the status; the derived active flag follows it, so cancelling or
// completing releases the tenant's inquiry slot on the property.
func (s *inquiryService) SetStatus(ctx context.Context, actor models.Actor, inquiryID utils.SixID, status models.InquiryStatus) (*models.Inquiry, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown inquiry status %q", ErrInvalidInput, status)
	}

	inquiry, err := s.findByID(ctx, inquiryID)
	if err != nil {
		return nil, err
	}
	if !inquiry.IsParticipant(actor) {
		return nil, fmt.Errorf("inquiry %s does not involve user %s: %w", inquiryID.String(), actor.ID.String(), ErrForbidden)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.Inquiry
	err = s.db.Collection(inquiriesCollection).
		FindOneAndUpdate(ctx, bson.M{"_id": inquiryID}, bson.M{"$set": bson.M{
			"status":     status,
			"active":     status.Active(),
			"updated_at": time.Now().UTC(),
		}}, opts).
		Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("inquiry %s: %w", inquiryID.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set status on inquiry %s: %w", inquiryID.String(), err)
	}
	return &updated, nil
}

func (s *inquiryService) findByID(ctx context.Context, inquiryID utils.SixID) (*models.Inquiry, error) {
	var inquiry models.Inquiry
	err := s.db.Collection(inquiriesCollection).FindOne(ctx, bson.M{"_id": inquiryID}).Decode(&inquiry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("inquiry %s: %w", inquiryID.String(), ErrNotFound)
		}
		return nil, fmt.Errorf("error finding inquiry %s: %w", inquiryID.String(), err)
	}
	return &inquiry, nil
}

// otherParticipant returns the participant that is not the actor.
func otherParticipant(inquiry *models.Inquiry, actor models.Actor) utils.SixID {
	if actor.ID == inquiry.LandlordID {
		return inquiry.TenantID
	}
	return inquiry.LandlordID
}

func hasUnreadFrom(inquiry *models.Inquiry, senderID utils.SixID) bool {
	for _, r := range inquiry.Replies {
		if r.SenderID == senderID && !r.Read {
			return true
		}
	}
	return false
}
