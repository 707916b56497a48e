// Package s3 publishes documents to an S3-compatible bucket (AWS S3 or MinIO).
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"elwinator/internal/blob/core"
)

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Store implements core.Store on a single bucket. Keys map to object keys directly.
type Store struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// Config holds explicit construction parameters. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string // optional; enables a custom endpoint such as MinIO
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// ConfigFromEnv reads:
//
//	ELWINATOR_BLOB_S3_BUCKET=<bucket> (required)
//	ELWINATOR_BLOB_S3_REGION=<region> (default us-east-1)
//	ELWINATOR_BLOB_S3_ENDPOINT=<url> (optional, for MinIO)
//	ELWINATOR_BLOB_S3_PATH_STYLE=true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
func ConfigFromEnv() Config {
	return Config{
		Bucket:    os.Getenv("ELWINATOR_BLOB_S3_BUCKET"),
		Region:    os.Getenv("ELWINATOR_BLOB_S3_REGION"),
		Endpoint:  os.Getenv("ELWINATOR_BLOB_S3_ENDPOINT"),
		PathStyle: strings.EqualFold(os.Getenv("ELWINATOR_BLOB_S3_PATH_STYLE"), "true"),
	}
}

// New creates an S3 blob store from cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newStore(client, cfg.Bucket), nil
}

// OpenFromEnv constructs an S3 store from the process environment.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	cfg := ConfigFromEnv()
	if cfg.Bucket == "" {
		return nil, errors.New("ELWINATOR_BLOB_S3_BUCKET required for s3 driver")
	}
	return New(ctx, cfg)
}

func newStore(client *s3.Client, bucket string) *Store {
	return &Store{client: client, bucket: bucket, now: func() time.Time { return time.Now().UTC() }}
}

// Bucket returns the bucket the store writes to.
func (s *Store) Bucket() string { return s.bucket }

// Driver returns core.DriverS3.
func (s *Store) Driver() core.Driver { return core.DriverS3 }

// Put uploads the object, replacing any existing version.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	clean, err := core.CleanKey(key)
	if err != nil {
		return core.Info{}, err
	}
	input := &s3.PutObjectInput{Bucket: &s.bucket, Key: &clean, Body: r}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = core.CloneMetadata(opts.Metadata)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", clean, err)
	}
	return s.Head(ctx, clean)
}

// Get streams the object body. The caller closes it.
func (s *Store) Get(ctx context.Context, key string) (core.Info, io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, nil, s.wrap(key, err)
	}
	info := s.fromHead(key, aws.ToInt64(out.ContentLength), out.ContentType, out.ETag, out.Metadata, out.LastModified)
	return info, out.Body, nil
}

// Head returns object metadata.
func (s *Store) Head(ctx context.Context, key string) (core.Info, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return core.Info{}, s.wrap(key, err)
	}
	return s.fromHead(key, aws.ToInt64(out.ContentLength), out.ContentType, out.ETag, out.Metadata, out.LastModified), nil
}

// Delete removes the object. S3 deletes are idempotent, so existence is checked first.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if _, err := s.Head(ctx, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: &key}); err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return true, nil
}

// List pages through ListObjectsV2 and returns the objects sorted by key.
func (s *Store) List(ctx context.Context, prefix string) ([]core.Info, error) {
	var infos []core.Info
	var token *string
	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: &s.bucket, Prefix: &prefix, ContinuationToken: token})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			infos = append(infos, core.Info{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		token = out.NextContinuationToken
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (s *Store) wrap(key string, err error) error {
	var re *awshttp.ResponseError
	if errors.As(err, &re) && re.HTTPStatusCode() == http.StatusNotFound {
		return fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	return fmt.Errorf("s3 %s: %w", key, err)
}

func (s *Store) fromHead(key string, size int64, contentType, etag *string, md map[string]string, lastModified *time.Time) core.Info {
	lm := s.now()
	if lastModified != nil {
		lm = *lastModified
	}
	return core.Info{
		Key:          key,
		Size:         size,
		ContentType:  aws.ToString(contentType),
		ETag:         strings.Trim(aws.ToString(etag), `"`),
		Metadata:     md,
		LastModified: lm,
	}
}
