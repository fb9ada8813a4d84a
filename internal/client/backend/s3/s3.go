// Package s3 stores user-uploaded images in an S3-compatible object store
// (minio in the self-hosted deployment).
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dmitrijs2005/framefeed/internal/client/config"
	"github.com/dmitrijs2005/framefeed/internal/logging"
)

// seams for tests
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(client *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return client.PutObject(ctx, in)
	}
)

// BlobStore implements backend.BlobStore over aws-sdk-go-v2.
type BlobStore struct {
	client    *s3.Client
	publicURL string
	log       logging.Logger
}

func New(cfg *config.Config, log logging.Logger) (*BlobStore, error) {
	if log == nil {
		log = logging.Discard()
	}

	awsCfg, err := loadDefaultAWSConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("s3 config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		o.UsePathStyle = true
	})

	publicURL := cfg.S3PublicURL
	if publicURL == "" {
		publicURL = cfg.S3Endpoint
	}

	return &BlobStore{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       log,
	}, nil
}

func (b *BlobStore) Upload(ctx context.Context, bucket, name string, data []byte, contentType string) error {
	_, err := putObject(b.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", bucket, name, err)
	}
	b.log.Debug(ctx, "object stored", "bucket", bucket, "name", name, "bytes", len(data))
	return nil
}

func (b *BlobStore) PublicURL(bucket, name string) string {
	return b.publicURL + "/" + bucket + "/" + name
}
