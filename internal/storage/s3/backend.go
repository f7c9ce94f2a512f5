// Package s3 provides an S3-compatible storage backend with metrics.
// Directories are implied by key prefixes, as S3 has none of its own.
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/sorenbs/ai-chatbot-full/internal/logging"
	"github.com/sorenbs/ai-chatbot-full/internal/metrics"
	"github.com/sorenbs/ai-chatbot-full/internal/models"
)

const (
	backendType = "s3"
	delimiter   = "/"
)

// BackendConfig is a JSON-serializable config for S3 backends.
type BackendConfig struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	UseSSL    bool   `json:"use_ssl"`
}

// S3Backend implements storage.Backend using S3/MinIO.
type S3Backend struct {
	client *s3.Client
	bucket string
}

// NewBackend creates a new S3 backend from a BackendConfig.
func NewBackend(ctx context.Context, cfg BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := endpointURL(cfg.Endpoint, cfg.UseSSL)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})

	backend := &S3Backend{
		client: client,
		bucket: cfg.Bucket,
	}

	// Verify bucket exists
	if err := backend.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.Error(err))
	}

	return backend, nil
}

// NewBackendFromJSON creates an S3Backend from raw JSON config.
func NewBackendFromJSON(ctx context.Context, raw json.RawMessage) (*S3Backend, error) {
	var cfg BackendConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse s3 config: %w", err)
	}
	return NewBackend(ctx, cfg)
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if endpoint == "" || strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func record(op string, start time.Time, err *error) {
	metrics.RecordStorageOperation(backendType, op, time.Since(start), *err == nil)
}

func (b *S3Backend) ensureBucket(ctx context.Context) (err error) {
	defer record("head_bucket", time.Now(), &err)

	_, err = b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err == nil {
		return nil
	}
	_, err = b.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket %s does not exist and cannot create: %w", b.bucket, err)
	}
	logging.Info("created S3 bucket", zap.String("bucket", b.bucket))
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func dirPrefix(key string) string {
	key = strings.Trim(key, delimiter)
	if key == "" {
		return ""
	}
	return key + delimiter
}

// List returns the objects and common prefixes directly under key.
func (b *S3Backend) List(ctx context.Context, key string) (infos []models.ObjectInfo, err error) {
	defer record("list", time.Now(), &err)

	prefix := dirPrefix(key)
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(delimiter),
	})

	infos = []models.ObjectInfo{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", key, err)
		}
		for _, cp := range page.CommonPrefixes {
			dir := strings.TrimSuffix(aws.ToString(cp.Prefix), delimiter)
			infos = append(infos, models.ObjectInfo{
				Key:   dir,
				Name:  path.Base(dir),
				IsDir: true,
			})
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if k == prefix {
				// Directory marker object.
				continue
			}
			infos = append(infos, models.ObjectInfo{
				Key:          k,
				Name:         path.Base(k),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	if len(infos) == 0 && prefix != "" {
		return nil, fmt.Errorf("list %s: %w", key, fs.ErrNotExist)
	}
	return infos, nil
}

// Stat describes the object at key, or the implied directory when key is
// a prefix of other objects.
func (b *S3Backend) Stat(ctx context.Context, key string) (info models.ObjectInfo, err error) {
	defer record("stat", time.Now(), &err)

	if strings.Trim(key, delimiter) == "" {
		return models.ObjectInfo{IsDir: true}, nil
	}

	head, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return models.ObjectInfo{
			Key:          key,
			Name:         path.Base(key),
			Size:         aws.ToInt64(head.ContentLength),
			LastModified: aws.ToTime(head.LastModified),
		}, nil
	}
	if !isNotFound(err) {
		return models.ObjectInfo{}, fmt.Errorf("head %s: %w", key, err)
	}

	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(dirPrefix(key)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return models.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if aws.ToInt32(out.KeyCount) == 0 {
		return models.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, fs.ErrNotExist)
	}
	return models.ObjectInfo{Key: key, Name: path.Base(key), IsDir: true}, nil
}

// GetObject retrieves an object from S3.
func (b *S3Backend) GetObject(ctx context.Context, key string) (rc io.ReadCloser, size int64, err error) {
	defer record("get_object", time.Now(), &err)

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("get object %s: %w", key, fs.ErrNotExist)
		}
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}
	return result.Body, aws.ToInt64(result.ContentLength), nil
}

// PutObject uploads content to S3.
func (b *S3Backend) PutObject(ctx context.Context, key string, body io.Reader, size int64) (err error) {
	defer record("put_object", time.Now(), &err)

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}

	logging.Debug("S3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Type returns "s3".
func (b *S3Backend) Type() string { return backendType }

// Close is a no-op for S3 backends.
func (b *S3Backend) Close() error { return nil }
