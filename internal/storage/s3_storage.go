package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"nyumbani/rental/internal/config"
)

// IPhotoStorage defines the interface for property photo storage.
type IPhotoStorage interface {
	GeneratePresignedPutURL(ctx context.Context, landlordID, propertyID, filename, contentType string) (string, string, error)
	PublicURL(key string) string
	Client() *s3.Client
}

// s3Storage implements IPhotoStorage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 photo storage service.
func NewS3Storage(cfg *config.Config) (IPhotoStorage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: s3.NewPresignClient(s3Client),
	}, nil
}

// GeneratePresignedPutURL creates a pre-signed URL for uploading a property
// photo. It returns the URL and the generated S3 object key. The filename is
// reduced to its base name so keys stay flat under the property prefix.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, landlordID, propertyID, filename, contentType string) (string, string, error) {
	if !strings.HasPrefix(contentType, "image/") {
		return "", "", fmt.Errorf("unsupported content type %q", contentType)
	}
	safeName := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	objectKey := fmt.Sprintf("photos/%s/%s/%s_%s", landlordID, propertyID, uuid.NewString(), safeName)

	expiration := 15 * time.Minute
	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	return presignedReq.URL, objectKey, nil
}

// PublicURL returns the public URL a stored photo is served from.
func (s *s3Storage) PublicURL(key string) string {
	if s.cfg.PhotoBaseURL != "" {
		return strings.TrimSuffix(s.cfg.PhotoBaseURL, "/") + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.AwsS3Bucket, s.cfg.AwsRegion, key)
}

// Client exposes the underlying S3 client for workers that read and write
// objects directly.
func (s *s3Storage) Client() *s3.Client {
	return s.s3Client
}
