package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/artgallery/service/internal/config"
)

// MinioProvider implements Provider using a MinIO (or any S3-compatible) backend.
type MinioProvider struct {
	client     *minio.Client
	bucket     string
	publicBase string
	logger     *zap.Logger
}

// NewMinioProvider creates a MinIO client, ensures the bucket exists with a
// public-read policy, and returns a ready-to-use MinioProvider.
func NewMinioProvider(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*MinioProvider, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		logger.Info("created bucket", zap.String("bucket", cfg.Bucket))
	}

	if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioProvider{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: cfg.PublicBase,
		logger:     logger,
	}, nil
}

// Put streams in.Body to the bucket. in.Size must be the exact byte count.
func (p *MinioProvider) Put(ctx context.Context, in PutInput) (*Object, error) {
	key := ObjectKey(in.Name, in.AddRandomSuffix)

	// Read access comes from the bucket policy; MinIO has no object ACLs.
	info, err := p.client.PutObject(ctx, p.bucket, key, in.Body, in.Size, minio.PutObjectOptions{
		ContentType: in.ContentType,
	})
	if err != nil {
		return nil, fmt.Errorf("put object %q: %w", key, err)
	}

	p.logger.Debug("object stored",
		zap.String("bucket", p.bucket),
		zap.String("key", key),
		zap.Int64("size", info.Size),
	)

	return &Object{
		URL:         PublicURL(p.publicBase, key),
		Key:         key,
		ContentType: in.ContentType,
		Size:        info.Size,
	}, nil
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
