// Package storage archives raw billing API responses of failed operations
// in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
	infraconfig "github.com/erp/invoicesync/internal/infrastructure/config"
)

// ObjectAPI is the subset of the S3 client the archive needs
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3DiagnosticsArchive implements DiagnosticsArchive on any S3-compatible
// store (AWS S3, MinIO, RustFS). Keys look like
// diagnostics/2024-03-09/1002/<uuid>.json.
type S3DiagnosticsArchive struct {
	client ObjectAPI
	bucket string
	logger *zap.Logger
	now    func() time.Time
}

// ArchiveOption is a functional option for configuring S3DiagnosticsArchive
type ArchiveOption func(*S3DiagnosticsArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) ArchiveOption {
	return func(a *S3DiagnosticsArchive) {
		a.logger = logger
	}
}

// WithClient replaces the S3 client
func WithClient(client ObjectAPI) ArchiveOption {
	return func(a *S3DiagnosticsArchive) {
		a.client = client
	}
}

// NewS3DiagnosticsArchive creates an archive from configuration. Static
// credentials are used when both keys are set; otherwise the default AWS
// credential chain applies.
func NewS3DiagnosticsArchive(ctx context.Context, cfg *infraconfig.StorageConfig, opts ...ArchiveOption) (*S3DiagnosticsArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}

	a := &S3DiagnosticsArchive{
		bucket: cfg.Bucket,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.client != nil {
		return a, nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	a.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(normalizeEndpoint(cfg.Endpoint))
		}
	})
	return a, nil
}

func normalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// EnsureBucket creates the bucket if it doesn't exist
func (a *S3DiagnosticsArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating diagnostics bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Archive stores one raw response body and returns its object key
func (a *S3DiagnosticsArchive) Archive(ctx context.Context, orderID int64, operation integration.Operation, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("empty diagnostics payload")
	}

	key := a.objectKey(orderID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType(payload)),
		Metadata: map[string]string{
			"order-id":  strconv.FormatInt(orderID, 10),
			"operation": operation.String(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload diagnostics for order %d: %w", orderID, err)
	}
	return key, nil
}

func (a *S3DiagnosticsArchive) objectKey(orderID int64) string {
	return fmt.Sprintf("diagnostics/%s/%d/%s.json", a.now().UTC().Format("2006-01-02"), orderID, uuid.NewString())
}

// contentType reports JSON bodies as JSON and anything else (HTML error
// pages from proxies) as plain text
func contentType(payload []byte) string {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Ensure S3DiagnosticsArchive implements DiagnosticsArchive
var _ integration.DiagnosticsArchive = (*S3DiagnosticsArchive)(nil)
