// Package client submits artwork to the upload endpoint and tracks the
// upload widget's state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxErrorBody = 64 << 10

// File is a user-selected file. Open is called once per submission so a
// failed upload can be retried with the same selection.
type File struct {
	Name        string
	ContentType string
	// StoreAs, when set, is sent as the "filename" field.
	StoreAs string
	Open    func() (io.ReadCloser, error)
}

// FileFromPath selects a file on disk. The content type is derived from the
// extension.
func FileFromPath(p string) File {
	return File{
		Name:        filepath.Base(p),
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
		Open:        func() (io.ReadCloser, error) { return os.Open(p) },
	}
}

// FileFromBytes selects an in-memory file.
func FileFromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// UploadError is a non-2xx answer from the endpoint. Message is the server's
// error text verbatim, or the raw body when it is not JSON.
type UploadError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *UploadError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Details)
	}
	return e.Message
}

// Uploader posts files to the upload endpoint.
type Uploader struct {
	endpoint   string
	httpClient *http.Client
	token      string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(u *Uploader) { u.httpClient = c }
}

// WithToken sends token as a Bearer Authorization header.
func WithToken(token string) Option {
	return func(u *Uploader) { u.token = token }
}

// NewUploader creates an Uploader for endpoint, e.g.
// "https://gallery.example/api/upload".
func NewUploader(endpoint string, opts ...Option) *Uploader {
	u := &Uploader{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload submits f and returns the public URL. Non-2xx answers are returned
// as *UploadError.
func (u *Uploader) Upload(ctx context.Context, f File) (string, error) {
	if f.Open == nil {
		return "", errors.New("file has no content")
	}
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, f, src))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, pr)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if u.token != "" {
		req.Header.Set("Authorization", "Bearer "+u.token)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeForm(mw *multipart.Writer, f File, src io.Reader) error {
	if f.StoreAs != "" {
		if err := mw.WriteField("filename", f.StoreAs); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

func decodeResponse(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var body struct {
		URL     string `json:"url"`
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	isJSON := json.Unmarshal(raw, &body) == nil

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if isJSON && body.URL != "" {
			return body.URL, nil
		}
		return "", &UploadError{StatusCode: resp.StatusCode, Message: "upload response did not include a url"}
	}

	upErr := &UploadError{StatusCode: resp.StatusCode}
	switch {
	case isJSON && body.Error != "":
		upErr.Message = body.Error
		upErr.Details = body.Details
	case len(bytes.TrimSpace(raw)) > 0:
		upErr.Message = strings.TrimSpace(string(raw))
	default:
		upErr.Message = http.StatusText(resp.StatusCode)
		if upErr.Message == "" {
			upErr.Message = fmt.Sprintf("upload failed with status %d", resp.StatusCode)
		}
	}
	return "", upErr
}
