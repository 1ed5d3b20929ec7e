package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds the configuration for the S3 artifact mirror.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
}

// S3Store wraps a LocalStore and mirrors every saved artifact to an S3
// bucket. Local disk stays the source of truth for Exists and serving;
// the mirror is for durability and sharing.
type S3Store struct {
	*LocalStore
	client *s3.Client
	bucket string
	region string
}

// NewS3Store creates an S3Store mirroring the given local root into the
// configured bucket.
func NewS3Store(root string, cfg S3Config) (*S3Store, error) {
	local, err := NewLocalStore(root)
	if err != nil {
		return nil, err
	}

	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		LocalStore: local,
		client:     s3.NewFromConfig(awsCfg, clientOpts...),
		bucket:     cfg.Bucket,
		region:     cfg.Region,
	}, nil
}

// Save persists the artifact locally, then uploads the written file to
// S3 under its root-relative key. A mirror failure removes the local
// file too; Exists then stays false and the next reconciliation pass
// retries both the download and the upload.
func (s *S3Store) Save(ctx context.Context, path string, r io.Reader) error {
	if err := s.LocalStore.Save(ctx, path, r); err != nil {
		return err
	}

	key, err := filepath.Rel(s.Root(), path)
	if err != nil {
		return fmt.Errorf("artifact key from path: %w", err)
	}
	key = filepath.ToSlash(key)

	f, err := os.Open(path) // #nosec G304 - path was just written by LocalStore.Save
	if err != nil {
		return fmt.Errorf("open artifact for upload: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("upload to S3: %w", err)
	}
	return nil
}

// ObjectURL returns the public URL of a mirrored artifact key.
func (s *S3Store) ObjectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

var _ Store = (*S3Store)(nil)
