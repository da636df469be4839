package upload

import (
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/artgallery/service/internal/apperr"
	"github.com/artgallery/service/internal/response"
)

// Handler holds the HTTP handler for the upload endpoint.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Upload godoc
//
//	@Summary		Upload an artwork image
//	@Description	Accepts one file in the "file" part of a multipart form, stores it with public-read access under a randomly suffixed name and returns its public URL. An optional "filename" field overrides the file's own name.
//	@Tags			upload
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file		formData	file	true	"Image to upload"
//	@Param			filename	formData	string	false	"Name to store the file under"
//	@Success		200			{object}	response.URLBody
//	@Failure		400			{object}	response.ErrorBody
//	@Failure		401			{object}	response.ErrorBody
//	@Failure		405			{object}	response.ErrorBody
//	@Failure		500			{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.fail(w, r, apperr.ErrMethodNotAllowed)
		return
	}
	if !h.svc.Configured() {
		h.fail(w, r, apperr.ErrServerMisconfigured)
		return
	}

	start := time.Now()
	req, err := h.svc.Parse(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	defer func() {
		if err := req.Close(); err != nil {
			h.logger.Error("temp file cleanup failed", zap.Error(err))
		}
	}()

	obj, err := h.svc.Store(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.Info("upload stored",
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		zap.String("key", obj.Key),
		zap.String("content_type", obj.ContentType),
		zap.Int64("size", obj.Size),
		zap.Duration("duration", time.Since(start)),
	)
	response.URL(w, obj.URL)
}

// fail logs the underlying cause and writes the client-safe error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := apperr.As(err)
	fields := []zap.Field{
		zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("code", e.Code),
		zap.Int("status", e.Status),
		zap.Error(err),
	}
	if e.Status >= http.StatusInternalServerError {
		h.logger.Error("upload failed", fields...)
	} else {
		h.logger.Warn("upload rejected", fields...)
	}
	response.Fail(w, err)
}
