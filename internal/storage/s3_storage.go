package storage

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"estatehub/api/internal/config"
)

// UploadURL is a presigned PUT target for one listing image.
type UploadURL struct {
	URL       string    `json:"uploadUrl"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	GeneratePresignedPutURL(ctx context.Context, listingID, filename, contentType string) (*UploadURL, error)
	// PublicURL is the address an uploaded object is served from.
	PublicURL(key string) string
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	presignClient *s3.PresignClient
}

// NewS3Client builds an S3 client from the static credentials in cfg.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
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
	return s3.NewFromConfig(awsCfg), nil
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config, client *s3.Client) IS3Storage {
	return &s3Storage{
		cfg:           cfg,
		presignClient: s3.NewPresignClient(client),
	}
}

// ImageKeyPrefix is the object key prefix for a listing's images.
func ImageKeyPrefix(listingID string) string {
	return "listings/" + listingID + "/"
}

// ImageKey builds a unique object key for an uploaded file. The base name is
// slugified so client-supplied names cannot escape the listing prefix.
func ImageKey(listingID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := strings.ToLower(path.Ext(base))
	name := slug.Make(strings.TrimSuffix(base, path.Ext(base)))
	if name == "" {
		name = "image"
	}
	if len(ext) < 2 || slug.Make(ext) != ext[1:] {
		ext = ""
	}
	return ImageKeyPrefix(listingID) + uuid.NewString() + "_" + name + ext
}

// GeneratePresignedPutURL creates a pre-signed URL for uploading an image.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, listingID, filename, contentType string) (*UploadURL, error) {
	objectKey := ImageKey(listingID, filename)
	expiration := s.cfg.UploadURLTTL
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(expiration))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", objectKey, err)
	}

	log.Printf("Generated presigned upload URL for key: %s", objectKey)
	return &UploadURL{
		URL:       presignedReq.URL,
		Key:       objectKey,
		ExpiresAt: time.Now().UTC().Add(expiration),
	}, nil
}

func (s *s3Storage) PublicURL(key string) string {
	if s.cfg.ImageBaseS3URL == "" {
		return key
	}
	return strings.TrimSuffix(s.cfg.ImageBaseS3URL, "/") + "/" + key
}
