// Package storage uploads deployment packages to S3-compatible blob storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/artpar/cloudpublish/internal/shell/channel"
	"github.com/artpar/cloudpublish/internal/shell/publish"
)

const (
	DefaultBucket      = "deployments"
	DefaultRegion      = "us-east-1"
	DefaultPresignTTL  = 24 * time.Hour
	packageContentType = "application/octet-stream"
)

var ErrEndpointRequired = errors.New("storage endpoint is required")

// Config holds blob storage settings shared by every storage account.
type Config struct {
	Bucket     string
	PresignTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.PresignTTL <= 0 {
		c.PresignTTL = DefaultPresignTTL
	}
	return c
}

// =============================================================================
// Uploader
// =============================================================================

// Uploader puts packages into one bucket of a storage account.
type Uploader struct {
	client  *s3.Client
	presign *s3.PresignClient
	config  Config
	logger  *slog.Logger
}

var _ publish.PackageUploader = (*Uploader)(nil)

// NewUploader creates an uploader for the storage account the keys belong to.
func NewUploader(keys channel.StorageKeys, cfg Config, logger *slog.Logger) (*Uploader, error) {
	if keys.Endpoint == "" {
		return nil, ErrEndpointRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	region := keys.Region
	if region == "" {
		region = DefaultRegion
	}

	client := s3.New(s3.Options{
		BaseEndpoint:               aws.String(keys.Endpoint),
		Region:                     region,
		Credentials:                credentials.NewStaticCredentialsProvider(keys.AccessKey, keys.SecretKey, ""),
		UsePathStyle:               true,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})

	return &Uploader{
		client:  client,
		presign: s3.NewPresignClient(client),
		config:  cfg.withDefaults(),
		logger:  logger.With("component", "blob_storage", "endpoint", keys.Endpoint),
	}, nil
}

// NewFactory returns an uploader factory for the orchestrator.
func NewFactory(cfg Config, logger *slog.Logger) publish.UploaderFactory {
	return func(_ context.Context, keys channel.StorageKeys) (publish.PackageUploader, error) {
		return NewUploader(keys, cfg, logger)
	}
}

// EnsureBucket creates the package bucket if it does not exist.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.config.Bucket)})
	if err == nil {
		return nil
	}
	if !isMissingBucket(err) {
		return fmt.Errorf("head bucket %s: %w", u.config.Bucket, err)
	}

	u.logger.Info("creating bucket", "bucket", u.config.Bucket)
	_, err = u.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(u.config.Bucket)})
	if err != nil && !isOwnedBucket(err) {
		return fmt.Errorf("create bucket %s: %w", u.config.Bucket, err)
	}
	return nil
}

// UploadPackage stores the file at path under blobName and returns a
// presigned URL the platform can fetch it from.
func (u *Uploader) UploadPackage(ctx context.Context, blobName, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open package: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat package: %w", err)
	}

	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}

	start := time.Now()
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.config.Bucket),
		Key:           aws.String(blobName),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(packageContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", blobName, err)
	}
	u.logger.Info("package uploaded",
		"bucket", u.config.Bucket,
		"key", blobName,
		"bytes", info.Size(),
		"duration", time.Since(start),
	)

	req, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.config.Bucket),
		Key:    aws.String(blobName),
	}, s3.WithPresignExpires(u.config.PresignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", blobName, err)
	}
	return req.URL, nil
}

func isMissingBucket(err error) bool {
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *s3types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchBucket")
}

func isOwnedBucket(err error) bool {
	var owned *s3types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
}
