package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures the client built by NewS3Client.
type S3Options struct {
	Region    string
	Endpoint  string // S3-compatible endpoint (MinIO); empty for AWS
	AccessKey string
	SecretKey string
}

// NewS3Client builds an S3 client from the default AWS chain, with optional
// static credentials and a custom endpoint for S3-compatible servers.
func NewS3Client(ctx context.Context, opts S3Options) (*s3.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// S3Store keeps envelopes as objects in a bucket under an optional prefix.
type S3Store struct {
	client     S3API
	bucketName string
	prefix     string
	logger     *slog.Logger
	newName    func(originalName string) string
}

// NewS3Store wraps an S3 client.
func NewS3Store(client S3API, bucketName, prefix string, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:     client,
		bucketName: bucketName,
		prefix:     prefix,
		logger:     logger,
		newName:    GenerateName,
	}
}

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads the envelope with If-None-Match so an existing object is never
// replaced; a precondition failure triggers a new name.
func (s *S3Store) Put(ctx context.Context, originalName string, envelope []byte) (string, error) {
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := s.newName(originalName)

		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucketName),
			Key:           aws.String(s.key(name)),
			Body:          bytes.NewReader(envelope),
			ContentLength: aws.Int64(int64(len(envelope))),
			ContentType:   aws.String("application/octet-stream"),
			IfNoneMatch:   aws.String("*"),
		})
		if err == nil {
			return name, nil
		}
		if !isPreconditionFailed(err) {
			return "", fmt.Errorf("put object %s: %w", name, err)
		}
		s.logger.WarnContext(ctx, "storage name collision, retrying", "name", name)
	}
	return "", ErrNameCollision
}

// Get downloads the full object.
func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	if !validName(name) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("get object %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", name, err)
	}
	return data, nil
}

// Delete removes the object. S3 deletes are silent about missing keys, so a
// HEAD request decides the reported status.
func (s *S3Store) Delete(ctx context.Context, name string) (bool, error) {
	if !validName(name) {
		return false, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("head object %s: %w", name, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(s.key(name)),
	}); err != nil {
		return false, fmt.Errorf("delete object %s: %w", name, err)
	}
	return true, nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
