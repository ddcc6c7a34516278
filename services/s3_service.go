package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const archiveTimeLayout = "20060102T150405.000000000Z"

// ObjectStore is the part of the S3 API the event archive uses
type ObjectStore interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3ArchiveConfig holds the settings of the S3 event archive
type S3ArchiveConfig struct {
	Region          string
	Bucket          string
	Prefix          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Archiver is a Notifier that keeps every order event as a JSON object,
// giving the plant a long-term record outside the database
type S3Archiver struct {
	client ObjectStore
	bucket string
	prefix string
}

// NewS3Archiver builds an archiver from AWS settings. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3Archiver(ctx context.Context, cfg S3ArchiveConfig) (*S3Archiver, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3ArchiverFromClient(client, cfg.Bucket, cfg.Prefix), nil
}

// NewS3ArchiverFromClient wraps an existing object store
func NewS3ArchiverFromClient(client ObjectStore, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

// ArchiveKey returns the object key of an event: <prefix>/site-<id>/<order_no>/<time>-<type>.json
func ArchiveKey(prefix string, event OrderEvent) string {
	name := fmt.Sprintf("%s-%s.json", event.OccurredAt.UTC().Format(archiveTimeLayout), event.Type)
	return path.Join(prefix, fmt.Sprintf("site-%d", event.SiteID), event.OrderNo, name)
}

// Publish uploads the event to the archive bucket
func (a *S3Archiver) Publish(ctx context.Context, event OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	key := ArchiveKey(a.prefix, event)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"order-id":   strconv.FormatUint(uint64(event.OrderID), 10),
			"event-type": string(event.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to archive order event to S3: %w", err)
	}

	return nil
}

// Close is a no-op; the S3 client holds no connections that need releasing
func (a *S3Archiver) Close() error {
	return nil
}
