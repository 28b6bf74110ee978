package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/samse/lottiekit/internal/shared"
)

// S3API is the part of the S3 client used by [S3Opener].
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Opener reads s3://bucket/key URLs.
type S3Opener struct {
	client S3API
}

// NewS3Opener loads the default AWS credential chain and builds a client.
// Endpoint and path-style overrides support S3-compatible stores.
func NewS3Opener(ctx context.Context, cfg shared.S3Config) (*S3Opener, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return NewS3OpenerWithClient(s3.NewFromConfig(awsConfig, s3Opts...)), nil
}

// NewS3OpenerWithClient wraps an existing client.
func NewS3OpenerWithClient(client S3API) *S3Opener {
	return &S3Opener{client: client}
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("not an s3 url: %s", rawURL)
	}

	bucket, key = u.Host, strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 url needs bucket and key: %s", rawURL)
	}
	return bucket, key, nil
}

// Open implements [Opener].
func (o *S3Opener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3URL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			return nil, shared.NewLoadError(shared.ErrNotFound, "fetch", rawURL, err)
		}
		return nil, shared.WrapLoadError(err, "fetch", rawURL, shared.ErrNetwork)
	}
	return out.Body, nil
}
