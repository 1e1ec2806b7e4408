package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/noah-isme/learnupon-exporter/pkg/config"
)

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies finished exports to the configured bucket.
type S3Uploader struct {
	client objectPutter
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Uploader builds an uploader from cfg. When any of bucket, path prefix,
// access key id or secret is empty the uploader is disabled.
func NewS3Uploader(cfg config.StorageConfig, logger *zap.Logger) *S3Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &S3Uploader{bucket: cfg.Bucket, prefix: cfg.PathPrefix, logger: logger}
	if !cfg.UploadEnabled() {
		return u
	}

	opts := s3.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	u.client = s3.New(opts)
	return u
}

func newS3UploaderWithClient(client objectPutter, bucket, prefix string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, prefix: prefix, logger: zap.NewNop()}
}

// Enabled reports whether Upload will contact the object store.
func (u *S3Uploader) Enabled() bool {
	return u != nil && u.client != nil
}

// Key returns the object key for filename.
func (u *S3Uploader) Key(filename string) string {
	return u.prefix + filename
}

// Upload rewinds file and stores its full content at prefix+filename. It
// returns false without error when uploading is disabled.
func (u *S3Uploader) Upload(ctx context.Context, file io.ReadSeeker, filename string) (bool, error) {
	if !u.Enabled() {
		u.logger.Debug("upload disabled", zap.String("file", filename))
		return false, nil
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind %s: %w", filename, err)
	}

	key := u.Key(filename)
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String("text/csv"),
	}); err != nil {
		return false, fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}

	u.logger.Info("uploaded export", zap.String("bucket", u.bucket), zap.String("key", key))
	return true, nil
}
