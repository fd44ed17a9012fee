package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	s3Prefix    = "snapshots/"
	builtAtMeta = "built-at"
)

type S3Config struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
}

// S3 shares cached snapshots between server instances through an
// S3-compatible bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

func NewS3(ctx context.Context, c S3Config) (*S3, error) {
	if c.Bucket == "" {
		return nil, errors.New("s3 cache: bucket is required")
	}
	region := c.Region
	if region == "" {
		region = "auto"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			c.AccessKeyID, c.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3{client: client, bucket: c.Bucket}, nil
}

func (s *S3) Get(ctx context.Context, key string) (Entry, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s3Prefix + key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read snapshot %s: %w", key, err)
	}
	builtAt, err := time.Parse(time.RFC3339Nano, out.Metadata[builtAtMeta])
	if err != nil {
		// Written by something else; treat as stale.
		return Entry{}, false, nil
	}
	return Entry{Payload: payload, BuiltAt: builtAt}, true, nil
}

func (s *S3) Put(ctx context.Context, key string, e Entry) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s3Prefix + key),
		Body:        bytes.NewReader(e.Payload),
		ContentType: aws.String("application/msgpack"),
		Metadata:    map[string]string{builtAtMeta: e.BuiltAt.UTC().Format(time.RFC3339Nano)},
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}
	return nil
}

// Sweep deletes objects by their last-modified time, which trails the build
// time by at most one upload.
func (s *S3) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s3Prefix),
	})
	n := 0
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return n, fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.LastModified == nil || !obj.LastModified.Before(cutoff) {
				continue
			}
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return n, fmt.Errorf("failed to delete %s: %w", aws.ToString(obj.Key), err)
			}
			n++
		}
	}
	return n, nil
}
