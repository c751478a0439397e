package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
)

// S3Options configures S3Store. Empty credentials fall back to the default
// AWS chain.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SealPassword    string
}

// S3Store keeps bundles in a bucket under Prefix/<id>.pdf.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
	password string
}

// NewS3Store creates a new S3 client for the bundle bucket.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("storage: bucket not configured")
	}
	loaders := []func(*awscfg.LoadOptions) error{}
	if opts.Region != "" {
		loaders = append(loaders, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loaders = append(loaders, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	cli := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   cli,
		uploader: manager.NewUploader(cli),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
		password: opts.SealPassword,
	}, nil
}

func (s *S3Store) key(id string) string { return path.Join(s.prefix, id+".pdf") }

// Put uploads a bundle and returns its object key.
func (s *S3Store) Put(ctx context.Context, id string, data []byte, meta Meta) (string, error) {
	if !safeID(id) {
		return "", fmt.Errorf("storage: invalid id %q", id)
	}
	body := data
	if s.password != "" {
		sealed, err := Seal(data, s.password)
		if err != nil {
			return "", fmt.Errorf("failed to seal bundle: %w", err)
		}
		body = sealed
		meta.Sealed = true
	}
	key := s.key(id)
	contentType := "application/pdf"
	if meta.Sealed {
		contentType = "application/octet-stream"
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata:    meta.toObjectMetadata(),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("bundle upload failed")
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Info().Str("key", key).Int("size", len(body)).Bool("sealed", meta.Sealed).Msg("uploaded bundle to S3")
	return key, nil
}

// Get downloads a bundle, opening it when it was sealed.
func (s *S3Store) Get(ctx context.Context, id string) ([]byte, Meta, error) {
	if !safeID(id) {
		return nil, Meta{}, ErrNotFound
	}
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, Meta{}, ErrNotFound
		}
		return nil, Meta{}, fmt.Errorf("failed to download from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("failed to read S3 object: %w", err)
	}
	meta := metaFromObject(result.Metadata)
	if meta.Sealed || IsSealed(data) {
		if s.password == "" {
			return nil, meta, errors.New("storage: bundle is sealed but no password is configured")
		}
		if data, err = Open(data, s.password); err != nil {
			return nil, meta, err
		}
	}
	meta.ContentType = "application/pdf"
	meta.Size = int64(len(data))
	return data, meta, nil
}

// Ping checks that the bucket is reachable.
func (s *S3Store) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}
