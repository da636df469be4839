// Package storage defines the object-storage capability used by uploads.
// Swap implementations by changing the driver at startup: MinIO works with any
// S3-compatible provider, the S3 driver talks to AWS S3 or Cloudflare R2.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/artgallery/service/internal/config"
)

// ErrNotConfigured is returned by New when the provider credentials are missing.
var ErrNotConfigured = errors.New("storage credentials are not configured")

// Access is the visibility of a stored object.
type Access string

const (
	AccessPublicRead Access = "public-read"
	AccessPrivate    Access = "private"
)

// PutInput describes one object to store.
type PutInput struct {
	Name        string
	Body        io.Reader
	Size        int64 // exact byte count of Body
	ContentType string
	Access      Access
	// AddRandomSuffix appends a random string to Name so an existing object is never overwritten.
	AddRandomSuffix bool
}

// Object is the result of a successful put.
type Object struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Provider stores objects and returns their public URL.
type Provider interface {
	Put(ctx context.Context, in PutInput) (*Object, error)
}

// New builds the provider selected by cfg.Driver. It returns ErrNotConfigured
// when a credential-based driver has no credentials.
func New(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (Provider, error) {
	if cfg.Driver == "memory" {
		return NewMemory(cfg.PublicBase), nil
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	switch cfg.Driver {
	case "minio":
		return NewMinioProvider(ctx, cfg, logger)
	case "s3":
		return NewS3Provider(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Open builds the provider for cfg as the binaries need it. It returns nil
// when credentials are missing, so every upload reports a misconfigured
// server. Any other build failure is logged and retried on the first Put.
func Open(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) Provider {
	p, err := New(ctx, cfg, logger)
	switch {
	case errors.Is(err, ErrNotConfigured):
		logger.Warn("object storage credentials missing; uploads will fail until configured",
			zap.String("driver", cfg.Driver))
		return nil
	case err != nil:
		logger.Error("object storage init failed; retrying on first upload",
			zap.String("driver", cfg.Driver), zap.Error(err))
		return NewLazy(func(ctx context.Context) (Provider, error) {
			return New(ctx, cfg, logger)
		})
	}
	return p
}
