// Package upload implements the single-file upload ingestion endpoint:
// parse a multipart body, validate it, and relay it to object storage.
package upload

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/artgallery/service/internal/apperr"
	"github.com/artgallery/service/internal/storage"
)

// Config is the upload policy injected at construction time.
type Config struct {
	MaxBytes int64
	// AllowedContentTypes restricts uploads to these media types. Empty accepts any.
	AllowedContentTypes []string
	TempDir             string
	// Secrets are redacted from provider errors before they reach a response.
	Secrets []string
}

// Service validates uploads and stores them through a storage.Provider.
type Service struct {
	store   storage.Provider
	cfg     Config
	allowed map[string]bool
	logger  *zap.Logger
}

// NewService creates a Service. A nil store means storage is not configured;
// every upload then fails with apperr.ErrServerMisconfigured.
func NewService(store storage.Provider, cfg Config, logger *zap.Logger) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedContentTypes))
	for _, ct := range cfg.AllowedContentTypes {
		allowed[strings.ToLower(strings.TrimSpace(ct))] = true
	}
	return &Service{store: store, cfg: cfg, allowed: allowed, logger: logger}
}

// Configured reports whether a storage provider is available.
func (s *Service) Configured() bool {
	return s.store != nil
}

// Parse reads and validates the multipart body of r. The caller owns the
// returned Request and must Close it.
func (s *Service) Parse(w http.ResponseWriter, r *http.Request) (*Request, error) {
	return parseMultipart(w, r, parseOptions{
		maxBytes: s.cfg.MaxBytes,
		allowed:  s.allowed,
		tempDir:  s.cfg.TempDir,
	})
}

// Store puts req into object storage with public-read access and a random
// name suffix. The provider is called exactly once.
func (s *Service) Store(ctx context.Context, req *Request) (*storage.Object, error) {
	if !s.Configured() {
		return nil, apperr.ErrServerMisconfigured
	}

	body, err := req.Body()
	if err != nil {
		return nil, apperr.ErrInternal.WithCause(err)
	}

	obj, err := s.store.Put(ctx, storage.PutInput{
		Name:            req.Filename,
		Body:            body,
		Size:            req.Size,
		ContentType:     req.ContentType,
		Access:          storage.AccessPublicRead,
		AddRandomSuffix: true,
	})
	if err != nil {
		return nil, apperr.ErrProviderFailure.
			WithDetails(redact(err.Error(), s.cfg.Secrets)).
			WithCause(err)
	}
	return obj, nil
}

// redact replaces every non-empty secret in msg.
func redact(msg string, secrets []string) string {
	for _, secret := range secrets {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, "[REDACTED]")
		}
	}
	return msg
}
