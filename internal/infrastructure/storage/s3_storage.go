// Package storage provides object storage for rendered invoices.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	infraconfig "github.com/erp/invoicer/internal/infrastructure/config"
	"github.com/erp/invoicer/internal/infrastructure/printing"
)

const pdfContentType = "application/pdf"

// Ensure S3Storage implements PDFStorage
var _ printing.PDFStorage = (*S3Storage)(nil)

// S3Storage stores rendered PDFs in an S3 bucket.
// It is compatible with any S3-compatible storage (AWS S3, MinIO, etc.)
type S3Storage struct {
	client            *s3.Client
	presignClient     *s3.PresignClient
	bucket            string
	prefix            string
	endpoint          string
	usePathStyle      bool
	presignExpiration time.Duration
	logger            *zap.Logger
}

// S3StorageOption is a functional option for configuring S3Storage
type S3StorageOption func(*S3Storage)

// WithLogger sets a custom logger for S3Storage
func WithLogger(logger *zap.Logger) S3StorageOption {
	return func(s *S3Storage) {
		s.logger = logger
	}
}

// WithPresignExpiration sets a custom presign expiration duration
func WithPresignExpiration(d time.Duration) S3StorageOption {
	return func(s *S3Storage) {
		s.presignExpiration = d
	}
}

// NewS3Storage creates a new S3Storage from configuration.
func NewS3Storage(cfg *infraconfig.S3Config, opts ...S3StorageOption) (*S3Storage, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}

	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	// An empty endpoint means AWS S3 itself
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	storage := &S3Storage{
		client:            client,
		presignClient:     s3.NewPresignClient(client),
		bucket:            cfg.Bucket,
		prefix:            strings.Trim(cfg.Prefix, "/"),
		endpoint:          endpoint,
		usePathStyle:      cfg.UsePathStyle,
		presignExpiration: cfg.PresignExpiration,
		logger:            zap.NewNop(),
	}

	for _, opt := range opts {
		opt(storage)
	}

	if storage.presignExpiration == 0 {
		storage.presignExpiration = 15 * time.Minute
	}

	return storage, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating storage bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Lost a creation race with another process
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	s.logger.Info("Storage bucket created successfully", zap.String("bucket", s.bucket))
	return nil
}

// Key returns the object key for a file name
func (s *S3Storage) Key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

// Store uploads the PDF under {prefix}/{file name} and returns a presigned
// download URL.
func (s *S3Storage) Store(ctx context.Context, req *printing.StoreRequest) (*printing.StoreResult, error) {
	if req == nil {
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "store request is nil", nil)
	}
	if err := printing.ValidateFileName(req.FileName); err != nil {
		return nil, err
	}
	if len(req.PDFData) == 0 {
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "PDF data is empty", nil)
	}

	key := s.Key(req.FileName)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(req.PDFData),
		ContentLength: aws.Int64(int64(len(req.PDFData))),
		ContentType:   aws.String(pdfContentType),
	})
	if err != nil {
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "failed to upload object "+key, err)
	}

	downloadURL, err := s.presignGet(ctx, key)
	if err != nil {
		s.logger.Warn("failed to presign download URL", zap.String("key", key), zap.Error(err))
		downloadURL = s.GetURL(req.FileName)
	}

	s.logger.Info("PDF stored",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("size", len(req.PDFData)))

	return &printing.StoreResult{
		Path: key,
		URL:  downloadURL,
		Size: int64(len(req.PDFData)),
	}, nil
}

// Get downloads a stored PDF by file name
func (s *S3Storage) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := printing.ValidateFileName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.Key(name)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "PDF not found", errors.Join(printing.ErrPDFNotFound, err))
		}
		return nil, printing.NewRenderError(printing.ErrCodeStorageFailed, "failed to download object", err)
	}
	return out.Body, nil
}

// GetURL returns the unsigned object URL; it is only reachable when the
// bucket allows public reads.
func (s *S3Storage) GetURL(name string) string {
	key := s.Key(name)
	if s.endpoint == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
	}
	base := strings.TrimRight(s.endpoint, "/")
	if s.usePathStyle {
		return base + "/" + path.Join(s.bucket, key)
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "/" + path.Join(s.bucket, key)
	}
	u.Host = s.bucket + "." + u.Host
	u.Path = "/" + key
	return u.String()
}

func (s *S3Storage) presignGet(ctx context.Context, key string) (string, error) {
	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignExpiration))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// GetBucket returns the bucket name
func (s *S3Storage) GetBucket() string {
	return s.bucket
}
