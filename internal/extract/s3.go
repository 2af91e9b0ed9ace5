package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ppiankov/claimlink/internal/model"
)

// s3API is the subset of the S3 client the source uses
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ErrBucketNotAllowed is returned for buckets outside the source's allow-list
var ErrBucketNotAllowed = errors.New("document bucket not allowed")

// S3Source reads uploaded documents from s3://bucket/key URIs
type S3Source struct {
	client   s3API
	maxBytes int64
	buckets  map[string]bool // nil allows every bucket
}

// AllowBuckets restricts the source to the named buckets
func (s *S3Source) AllowBuckets(buckets ...string) *S3Source {
	s.buckets = make(map[string]bool, len(buckets))
	for _, b := range buckets {
		s.buckets[strings.TrimSpace(b)] = true
	}
	return s
}

// NewS3Source loads AWS configuration and creates an S3-backed source
func NewS3Source(ctx context.Context, cfg model.AWSConfig, maxBytes int64) (*S3Source, error) {
	awsCfg, err := loadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newS3SourceWithClient(client, maxBytes), nil
}

// loadAWSConfig resolves region and credentials. Static keys take precedence
// over a named profile; otherwise the default credential chain is used.
func loadAWSConfig(ctx context.Context, cfg model.AWSConfig) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)))
	case cfg.Profile != "":
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func newS3SourceWithClient(client s3API, maxBytes int64) *S3Source {
	return &S3Source{client: client, maxBytes: maxBytes}
}

// Open downloads the object named by uri
func (s *S3Source) Open(ctx context.Context, uri string) (Document, error) {
	bucket, key, err := parseS3URI(uri)
	if err != nil {
		return Document{}, err
	}
	if s.buckets != nil && !s.buckets[bucket] {
		return Document{}, ErrBucketNotAllowed
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Document{}, fmt.Errorf("get s3 object %s: %w", uri, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := readLimited(out.Body, s.maxBytes)
	if err != nil {
		return Document{}, fmt.Errorf("read s3 object %s: %w", uri, err)
	}

	contentType := aws.ToString(out.ContentType)
	if contentType == "" {
		contentType = contentTypeFor(key)
	}

	return Document{
		URI:         uri,
		Name:        path.Base(key),
		ContentType: contentType,
		Data:        data,
	}, nil
}

func parseS3URI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse s3 URI: %w", err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("invalid s3 URI %q", uri)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 URI %q has no object key", uri)
	}
	return u.Host, key, nil
}
