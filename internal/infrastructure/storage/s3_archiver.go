// Package storage uploads expired activity log files to S3-compatible
// object storage before they are removed from disk
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/erp/odoosync/internal/infrastructure/activitylog"
	infraconfig "github.com/erp/odoosync/internal/infrastructure/config"
	"go.uber.org/zap"
)

var _ activitylog.Archiver = (*S3Archiver)(nil)

var (
	ErrBucketRequired = errors.New("storage: bucket is required")
	ErrKeyRequired    = errors.New("storage: object key is required")
)

const contentTypeNDJSON = "application/x-ndjson"

// S3Archiver stores log files under {prefix}/{key} in one bucket. It works
// with AWS S3 and S3-compatible servers such as MinIO.
type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// Option configures an S3Archiver
type Option func(*S3Archiver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(a *S3Archiver) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewS3Archiver builds the S3 client from config. Without static keys the
// default AWS credential chain is used.
func NewS3Archiver(ctx context.Context, cfg infraconfig.StorageConfig, opts ...Option) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrBucketRequired
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint))
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	a := &S3Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func endpointURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

// ObjectKey returns the full object key of a log-relative key
func (a *S3Archiver) ObjectKey(key string) string {
	if a.prefix == "" {
		return key
	}
	return path.Join(a.prefix, key)
}

// Archive uploads one file
func (a *S3Archiver) Archive(ctx context.Context, key string, body io.Reader, size int64) error {
	if key == "" {
		return ErrKeyRequired
	}
	objectKey := a.ObjectKey(key)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(objectKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentTypeNDJSON),
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", objectKey, err)
	}
	a.logger.Debug("activity log archived",
		zap.String("bucket", a.bucket),
		zap.String("key", objectKey),
		zap.Int64("bytes", size),
	)
	return nil
}

// Check verifies that the bucket is reachable
func (a *S3Archiver) Check(ctx context.Context) error {
	if _, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		return fmt.Errorf("bucket %s not reachable: %w", a.bucket, err)
	}
	return nil
}
