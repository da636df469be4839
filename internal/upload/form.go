package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"strings"
	"unicode"

	"github.com/artgallery/service/internal/apperr"
)

const (
	fileField     = "file"
	filenameField = "filename"

	defaultContentType = "application/octet-stream"
	fallbackName       = "upload"

	// TempPattern is the os.CreateTemp pattern for buffered uploads.
	TempPattern = "upload-*"

	// multipartOverhead is the slack allowed on top of MaxBytes for boundaries,
	// part headers and small fields.
	multipartOverhead = 1 << 20
	maxFieldBytes     = 1 << 10
)

// Request is a parsed upload whose file body is buffered in a temp file.
// Close must be called to remove it.
type Request struct {
	Filename    string
	ContentType string
	Size        int64

	file *os.File
}

// Body rewinds the buffered file and returns it for reading.
func (req *Request) Body() (io.Reader, error) {
	if _, err := req.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return req.file, nil
}

// Close closes and deletes the temp file.
func (req *Request) Close() error {
	if req.file == nil {
		return nil
	}
	name := req.file.Name()
	closeErr := req.file.Close()
	req.file = nil
	if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return closeErr
}

type parseOptions struct {
	maxBytes int64
	allowed  map[string]bool
	tempDir  string
}

// parseMultipart streams r's multipart body. The file part is copied to a temp
// file through a limit of maxBytes+1, so an oversized upload is rejected after
// at most maxBytes+1 bytes of it are read. Nothing is buffered in memory.
func parseMultipart(w http.ResponseWriter, r *http.Request, opts parseOptions) (*Request, error) {
	bodyLimit := opts.maxBytes + multipartOverhead
	if r.ContentLength > bodyLimit {
		return nil, apperr.ErrPayloadTooLarge.WithDetails(limitDetails(opts.maxBytes))
	}
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.ErrMalformedBody.WithCause(err)
	}

	req := &Request{}
	ok := false
	defer func() {
		if !ok {
			_ = req.Close()
		}
	}()

	var explicitName, partName string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, bodyError(err, opts.maxBytes)
		}

		switch part.FormName() {
		case fileField:
			if req.file != nil {
				part.Close()
				return nil, apperr.ErrMalformedBody.WithDetails("only one file may be uploaded per request")
			}
			partName = part.FileName()
			req.ContentType = mediaType(part.Header.Get("Content-Type"))
			if len(opts.allowed) > 0 && !opts.allowed[req.ContentType] {
				part.Close()
				return nil, apperr.ErrUnsupportedContentType.WithDetails(req.ContentType)
			}
			if err := req.buffer(part, opts); err != nil {
				part.Close()
				return nil, err
			}

		case filenameField:
			b, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				part.Close()
				return nil, bodyError(err, opts.maxBytes)
			}
			if len(b) > maxFieldBytes {
				part.Close()
				return nil, apperr.ErrMalformedBody.WithDetails("filename field is too long")
			}
			explicitName = strings.TrimSpace(string(b))

		default:
			if _, err := io.Copy(io.Discard, part); err != nil {
				part.Close()
				return nil, bodyError(err, opts.maxBytes)
			}
		}
		part.Close()
	}

	if req.file == nil {
		return nil, apperr.ErrMissingFile
	}

	name := explicitName
	if name == "" {
		name = partName
	}
	req.Filename = sanitizeFilename(name, req.ContentType)
	ok = true
	return req, nil
}

func (req *Request) buffer(part io.Reader, opts parseOptions) error {
	tmp, err := os.CreateTemp(opts.tempDir, TempPattern)
	if err != nil {
		return apperr.ErrInternal.WithCause(fmt.Errorf("create temp file: %w", err))
	}
	req.file = tmp

	n, err := io.Copy(tmp, io.LimitReader(part, opts.maxBytes+1))
	if err != nil {
		return bodyError(err, opts.maxBytes)
	}
	if n > opts.maxBytes {
		return apperr.ErrPayloadTooLarge.WithDetails(limitDetails(opts.maxBytes))
	}
	req.Size = n
	return nil
}

// bodyError classifies a read failure on the request body.
func bodyError(err error, maxBytes int64) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.ErrPayloadTooLarge.WithDetails(limitDetails(maxBytes)).WithCause(err)
	}
	return apperr.ErrMalformedBody.WithCause(err)
}

func limitDetails(maxBytes int64) string {
	return fmt.Sprintf("maximum upload size is %d bytes", maxBytes)
}

// mediaType lowercases the media type and drops parameters.
func mediaType(header string) string {
	if strings.TrimSpace(header) == "" {
		return defaultContentType
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return mt
}

// sanitizeFilename keeps the base name only and strips control characters.
// An empty result becomes "upload" plus an extension for contentType.
func sanitizeFilename(name, contentType string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)

	switch name {
	case "", ".", "..", "/":
		name = fallbackName
		if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}
