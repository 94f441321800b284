package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"nyumbani/rental/internal/config"
	"nyumbani/rental/internal/models"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/utils"
)

// TaskNotifier implements services.Notifier by enqueuing email delivery
// tasks. Lookup failures are logged and swallowed; a missing recipient must
// not fail the triggering request.
type TaskNotifier struct {
	cfg             *config.Config
	client          *asynq.Client
	userService     services.IUserService
	propertyService services.IPropertyService
}

func NewTaskNotifier(cfg *config.Config, client *asynq.Client, userService services.IUserService, propertyService services.IPropertyService) *TaskNotifier {
	return &TaskNotifier{
		cfg:             cfg,
		client:          client,
		userService:     userService,
		propertyService: propertyService,
	}
}

// NotifyInquiryReceived tells the landlord a new inquiry arrived.
func (n *TaskNotifier) NotifyInquiryReceived(ctx context.Context, inquiry *models.Inquiry) error {
	return n.enqueueInquiryEmail(ctx, "inquiry_received", inquiry.LandlordID, inquiry, inquiry.Message)
}

// NotifyInquiryReply tells the other party there is a new reply.
func (n *TaskNotifier) NotifyInquiryReply(ctx context.Context, inquiry *models.Inquiry, recipientID utils.SixID) error {
	message := ""
	if len(inquiry.Replies) > 0 {
		message = inquiry.Replies[len(inquiry.Replies)-1].Message
	}
	return n.enqueueInquiryEmail(ctx, "inquiry_reply", recipientID, inquiry, message)
}

// NotifyViewingScheduled tells the tenant a viewing slot was proposed.
func (n *TaskNotifier) NotifyViewingScheduled(ctx context.Context, inquiry *models.Inquiry) error {
	if inquiry.ScheduledViewing == nil {
		return nil
	}
	recipient, property, err := n.lookupParties(ctx, inquiry.TenantID, inquiry.PropertyID)
	if err != nil {
		log.Printf("WARN: skipping viewing notification for inquiry %s: %v", inquiry.ID.String(), err)
		return nil
	}
	return n.enqueue(ctx, EmailTaskPayload{
		To:         recipient.Email,
		TemplateID: "viewing_scheduled",
		Data: map[string]interface{}{
			"name":           recipient.FullName,
			"property_title": property.Title,
			"date":           inquiry.ScheduledViewing.Date.Format("Mon, 2 Jan 2006"),
			"time":           inquiry.ScheduledViewing.Time,
		},
	})
}

// NotifyWelcome greets a newly registered user.
func (n *TaskNotifier) NotifyWelcome(ctx context.Context, user *models.User) error {
	return n.enqueue(ctx, EmailTaskPayload{
		To:         user.Email,
		TemplateID: "welcome",
		Data: map[string]interface{}{
			"name":     user.FullName,
			"app_name": n.cfg.AppName,
		},
	})
}

// EnqueuePhotoProcess queues normalization of a freshly uploaded photo.
func (n *TaskNotifier) EnqueuePhotoProcess(ctx context.Context, propertyID utils.SixID, s3Key string) error {
	payload, err := json.Marshal(PhotoTaskPayload{S3Key: s3Key, PropertyID: propertyID.String()})
	if err != nil {
		return fmt.Errorf("failed to marshal photo task payload: %w", err)
	}
	task := asynq.NewTask(TypePhotoProcess, payload)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("photos")); err != nil {
		return fmt.Errorf("failed to enqueue photo task for %s: %w", s3Key, err)
	}
	return nil
}

func (n *TaskNotifier) enqueueInquiryEmail(ctx context.Context, templateID string, recipientID utils.SixID, inquiry *models.Inquiry, message string) error {
	recipient, property, err := n.lookupParties(ctx, recipientID, inquiry.PropertyID)
	if err != nil {
		log.Printf("WARN: skipping %s notification for inquiry %s: %v", templateID, inquiry.ID.String(), err)
		return nil
	}
	return n.enqueue(ctx, EmailTaskPayload{
		To:         recipient.Email,
		TemplateID: templateID,
		Data: map[string]interface{}{
			"name":           recipient.FullName,
			"property_title": property.Title,
			"message":        message,
		},
	})
}

func (n *TaskNotifier) lookupParties(ctx context.Context, recipientID, propertyID utils.SixID) (*models.User, *models.Property, error) {
	recipient, err := n.userService.FindByID(ctx, recipientID)
	if err != nil {
		return nil, nil, fmt.Errorf("recipient lookup: %w", err)
	}
	property, err := n.propertyService.FindByID(ctx, propertyID)
	if err != nil {
		return nil, nil, fmt.Errorf("property lookup: %w", err)
	}
	return recipient, property, nil
}

func (n *TaskNotifier) enqueue(ctx context.Context, payload EmailTaskPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email task payload: %w", err)
	}
	task := asynq.NewTask(TypeEmailDelivery, data)
	if _, err := n.client.EnqueueContext(ctx, task, asynq.Queue("default")); err != nil {
		return fmt.Errorf("failed to enqueue email task to %s: %w", payload.To, err)
	}
	return nil
}
