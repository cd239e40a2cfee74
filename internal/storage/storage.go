// Package storage keeps user avatars in an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/aura/internal/config"
)

var (
	// ErrTooLarge is returned when an avatar exceeds the configured size.
	ErrTooLarge = errors.New("avatar too large")
	// ErrUnsupportedType is returned for anything but the accepted images.
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrDisabled is returned by the no-op store.
	ErrDisabled = errors.New("avatar storage is not configured")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// AvatarStore is what the profile handlers need.
type AvatarStore interface {
	Save(ctx context.Context, userID uint64, data []byte) (string, error)
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// DetectImage sniffs the content type of data and checks it against the
// accepted image types and maxBytes.
func DetectImage(data []byte, maxBytes int64) (string, error) {
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}
	ct := http.DetectContentType(data)
	if _, ok := allowedTypes[ct]; !ok {
		return "", ErrUnsupportedType
	}
	return ct, nil
}

// AvatarKey builds the object key for a new avatar of userID.
func AvatarKey(userID uint64, contentType string) string {
	return fmt.Sprintf("avatars/%d/%s%s", userID, uuid.NewString(), allowedTypes[contentType])
}

// S3Avatars implements AvatarStore with the AWS SDK v2.
type S3Avatars struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	presignExpiration time.Duration
	maxBytes          int64
	logger            *zap.Logger
}

// New returns an S3 backed store, or a disabled one when cfg lacks a bucket
// or credentials.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (AvatarStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled() {
		logger.Info("avatar storage disabled")
		return Disabled{}, nil
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	expiration := cfg.PresignExpiration
	if expiration <= 0 {
		expiration = 15 * time.Minute
	}
	return &S3Avatars{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		presignExpiration: expiration,
		maxBytes:          cfg.MaxAvatarBytes,
		logger:            logger,
	}, nil
}

// Save validates data and uploads it under a fresh key.
func (s *S3Avatars) Save(ctx context.Context, userID uint64, data []byte) (string, error) {
	ct, err := DetectImage(data, s.maxBytes)
	if err != nil {
		return "", err
	}
	key := AvatarKey(userID, ct)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(ct),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("upload avatar: %w", err)
	}
	s.logger.Debug("avatar uploaded", zap.Uint64("user_id", userID), zap.String("key", key))
	return key, nil
}

// URL returns a presigned GET URL for key.
func (s *S3Avatars) URL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", fmt.Errorf("presign avatar: %w", err)
	}
	return req.URL, nil
}

// Delete removes key; an empty key is a no-op.
func (s *S3Avatars) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete avatar: %w", err)
	}
	return nil
}

// Disabled rejects uploads and yields no URLs.
type Disabled struct{}

func (Disabled) Save(context.Context, uint64, []byte) (string, error) { return "", ErrDisabled }
func (Disabled) URL(context.Context, string) (string, error)          { return "", nil }
func (Disabled) Delete(context.Context, string) error                 { return nil }
