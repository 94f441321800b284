package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"nyumbani/rental/internal/config"
	"nyumbani/rental/internal/email"
	"nyumbani/rental/internal/services"
	"nyumbani/rental/internal/storage"
	"nyumbani/rental/internal/utils"
)

const (
	TypeEmailDelivery = "email:deliver"
	TypePhotoProcess  = "photo:process"
)

// NewClient creates an asynq client sharing the redis connection settings.
func NewClient(rdb *redis.Client) *asynq.Client {
	opts := rdb.Options()
	return asynq.NewClient(asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// TaskProcessor holds the dependencies the task handlers need.
type TaskProcessor struct {
	cfg             *config.Config
	emailSender     email.Sender
	photoStorage    storage.IPhotoStorage
	propertyService services.IPropertyService
	userService     services.IUserService
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	photoStorage storage.IPhotoStorage,
	propertyService services.IPropertyService,
	userService services.IUserService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:             cfg,
		emailSender:     emailSender,
		photoStorage:    photoStorage,
		propertyService: propertyService,
		userService:     userService,
	}
}

// NewServer configures an asynq server. The caller runs it with the mux from
// NewMux.
func NewServer(rdb *redis.Client) *asynq.Server {
	opts := rdb.Options()
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB},
		asynq.Config{
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"photos":   3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)
}

// NewMux registers the task handlers.
func NewMux(processor *TaskProcessor) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypePhotoProcess, processor.HandlePhotoProcessTask)
	return mux
}

// EmailTaskPayload is the payload of an email delivery task.
type EmailTaskPayload struct {
	To         string                 `json:"to"`
	TemplateID string                 `json:"template_id"`
	Data       map[string]interface{} `json:"data"`
}

// emailTemplate is a notification template. Placeholders use {{.key}} syntax
// and are substituted from the task payload's Data map.
type emailTemplate struct {
	Subject string
	Body    string
}

var emailTemplates = map[string]emailTemplate{
	"inquiry_received": {
		Subject: "New inquiry for {{.property_title}}",
		Body: "Hello {{.name}},\n\nYou have a new inquiry for \"{{.property_title}}\":\n\n" +
			"{{.message}}\n\nLog in to reply.\n",
	},
	"inquiry_reply": {
		Subject: "New reply on your inquiry for {{.property_title}}",
		Body: "Hello {{.name}},\n\nThere is a new reply in your conversation about " +
			"\"{{.property_title}}\":\n\n{{.message}}\n\nLog in to continue the conversation.\n",
	},
	"viewing_scheduled": {
		Subject: "Viewing scheduled for {{.property_title}}",
		Body: "Hello {{.name}},\n\nA viewing for \"{{.property_title}}\" has been scheduled on " +
			"{{.date}} at {{.time}}. Please confirm it from your inquiries page.\n",
	},
	"welcome": {
		Subject: "Welcome to {{.app_name}}",
		Body:    "Hello {{.name}},\n\nYour account is ready. Happy house hunting!\n",
	},
}

// HandleEmailDeliveryTask renders the template and sends the email.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}

	tmpl, ok := emailTemplates[payload.TemplateID]
	if !ok {
		log.Printf("Unknown email template %q for %s", payload.TemplateID, payload.To)
		return fmt.Errorf("email template not found: %w", asynq.SkipRetry)
	}

	subjectRendered := tmpl.Subject
	bodyRendered := tmpl.Body
	for key, val := range payload.Data {
		placeholder := fmt.Sprintf("{{.%s}}", key)
		valueStr := fmt.Sprintf("%v", val)
		subjectRendered = strings.ReplaceAll(subjectRendered, placeholder, valueStr)
		bodyRendered = strings.ReplaceAll(bodyRendered, placeholder, valueStr)
	}

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@example.com"
		log.Printf("Warning: SmtpFromAddress not configured, using fallback %s for email to %s", fromAddress, payload.To)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.To))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subjectRendered))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(bodyRendered)
	sb.WriteString("\r\n")

	if err := p.emailSender.Send(ctx, []string{payload.To}, subjectRendered, []byte(sb.String())); err != nil {
		log.Printf("Email sending failed for %s (will retry): %v", payload.To, err)
		return err
	}
	return nil
}

// PhotoTaskPayload is the payload of a photo normalization task.
type PhotoTaskPayload struct {
	S3Key      string `json:"s3_key"`
	PropertyID string `json:"property_id"`
}

// HandlePhotoProcessTask downloads an uploaded photo, resizes it to the
// configured maximum dimension, re-uploads the normalized JPEG and points the
// property's photo record at the final URL.
func (p *TaskProcessor) HandlePhotoProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload PhotoTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal photo task payload: %v: %w", err, asynq.SkipRetry)
	}

	propertyID, err := utils.ParseSixID(payload.PropertyID)
	if err != nil {
		log.Printf("Invalid PropertyID in photo task payload: %s", payload.PropertyID)
		return fmt.Errorf("invalid property ID in payload: %w", asynq.SkipRetry)
	}

	s3Client := p.photoStorage.Client()
	getObjectOutput, err := s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.cfg.AwsS3Bucket),
		Key:    aws.String(payload.S3Key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("S3 object %s not found, upload likely failed.", payload.S3Key)
			return fmt.Errorf("s3 object not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to download photo from S3: %w", err)
	}
	defer getObjectOutput.Body.Close()

	imgData, err := io.ReadAll(getObjectOutput.Body)
	if err != nil {
		return fmt.Errorf("failed to read photo data for key %s: %w", payload.S3Key, err)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding photo %s: %v", payload.S3Key, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded photo %s, format: %s, size: %dx%d", payload.S3Key, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.PhotoMaxDimension)
	processedData := imgData
	contentType := aws.ToString(getObjectOutput.ContentType)

	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		resizedImg := resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, resizedImg, &jpeg.Options{Quality: 85}); err != nil {
			return fmt.Errorf("failed to re-encode resized photo %s: %w", payload.S3Key, err)
		}
		processedData = buf.Bytes()
		contentType = "image/jpeg"
		log.Printf("Resized photo %s to %dx%d", payload.S3Key, resizedImg.Bounds().Dx(), resizedImg.Bounds().Dy())
	}

	_, err = s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.AwsS3Bucket),
		Key:         aws.String(payload.S3Key),
		Body:        bytes.NewReader(processedData),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload processed photo %s: %w", payload.S3Key, err)
	}

	finalURL := p.photoStorage.PublicURL(payload.S3Key)
	if err := p.propertyService.ReplacePhotoURL(ctx, propertyID, payload.S3Key, finalURL); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			log.Printf("Property or photo gone for key %s, dropping task.", payload.S3Key)
			return fmt.Errorf("photo record not found: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to update property with processed photo: %w", err)
	}

	log.Printf("Photo task processed: Key=%s, PropertyID=%s", payload.S3Key, payload.PropertyID)
	return nil
}
