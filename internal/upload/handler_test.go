package upload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/artgallery/service/internal/storage"
)

const testMaxBytes = 10 << 20

var imageTypes = []string{"image/jpeg", "image/png", "image/webp"}

type formPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func filePart(filename, contentType string, data []byte) formPart {
	return formPart{field: "file", filename: filename, contentType: contentType, data: data}
}

func fieldPart(name, value string) formPart {
	return formPart{field: name, data: []byte(value)}
}

// multipartBody encodes parts in order and returns the body and its Content-Type.
func multipartBody(t *testing.T, parts ...formPart) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		if p.field == "file" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
			if p.contentType != "" {
				h.Set("Content-Type", p.contentType)
			}
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

type fixture struct {
	handler *Handler
	store   *storage.Memory
	tempDir string
}

func newFixture(t *testing.T, allowed []string) *fixture {
	t.Helper()

	store := storage.NewMemory("https://blob.example.com/artwork")
	tempDir := t.TempDir()
	svc := NewService(store, Config{
		MaxBytes:            testMaxBytes,
		AllowedContentTypes: allowed,
		TempDir:             tempDir,
		Secrets:             []string{"SECRETKEY"},
	}, zap.NewNop())

	return &fixture{handler: NewHandler(svc, zap.NewNop()), store: store, tempDir: tempDir}
}

func (f *fixture) do(method string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/api/upload", body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.handler.Upload(rec, req)
	return rec
}

func (f *fixture) assertTempDirEmpty(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(f.tempDir)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("temp dir not empty: %v", names)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()

	var m map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestUploadPNGWithoutFilenameField(t *testing.T) {
	f := newFixture(t, imageTypes)
	data := bytes.Repeat([]byte{0x89}, 500*1024)
	body, ct := multipartBody(t, filePart("cat.png", "image/png", data))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	url := decodeBody(t, rec)["url"]
	if !regexp.MustCompile(`^https://blob\.example\.com/artwork/cat-[0-9a-f]{12}\.png$`).MatchString(url) {
		t.Errorf("url = %q, want suffixed cat.png", url)
	}

	key := strings.TrimPrefix(url, "https://blob.example.com/artwork/")
	stored, storedType, ok := f.store.Get(key)
	if !ok {
		t.Fatalf("object %q not stored", key)
	}
	if !bytes.Equal(stored, data) {
		t.Errorf("stored %d bytes, want %d", len(stored), len(data))
	}
	if storedType != "image/png" {
		t.Errorf("content type = %q", storedType)
	}
	if f.store.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestUploadValidRequestsSucceed(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		size        int
	}{
		{"empty jpeg", "image/jpeg", 0},
		{"small webp", "image/webp", 1},
		{"png at limit", "image/png", testMaxBytes},
		{"png with params", "image/png; charset=binary", 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, imageTypes)
			body, ct := multipartBody(t, filePart("art.img", tt.contentType, make([]byte, tt.size)))

			rec := f.do(http.MethodPost, body, ct)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if url := decodeBody(t, rec)["url"]; !strings.HasPrefix(url, "https://") {
				t.Errorf("url = %q", url)
			}
			if f.store.BytesReceived() != int64(tt.size) {
				t.Errorf("bytes forwarded = %d, want %d", f.store.BytesReceived(), tt.size)
			}
			f.assertTempDirEmpty(t)
		})
	}
}

func TestUploadFilenameFieldOverridesPartName(t *testing.T) {
	tests := []struct {
		name  string
		parts func(file formPart) []formPart
	}{
		{"field before file", func(file formPart) []formPart {
			return []formPart{fieldPart("filename", "sunset.png"), file}
		}},
		{"field after file", func(file formPart) []formPart {
			return []formPart{file, fieldPart("filename", "sunset.png")}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, imageTypes)
			body, ct := multipartBody(t, tt.parts(filePart("IMG_0001.png", "image/png", []byte("px")))...)

			rec := f.do(http.MethodPost, body, ct)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if url := decodeBody(t, rec)["url"]; !strings.Contains(url, "/sunset-") {
				t.Errorf("url = %q, want sunset-*.png", url)
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	f := newFixture(t, imageTypes)
	body, ct := multipartBody(t, fieldPart("filename", "cat.png"), fieldPart("title", "Art 9"))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeBody(t, rec)["error"]; msg != "No file provided." {
		t.Errorf("error = %q", msg)
	}
	if f.store.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestUploadPayloadTooLarge(t *testing.T) {
	data := make([]byte, 15<<20)

	tests := []struct {
		name string
		wrap func(b *bytes.Buffer) io.Reader
	}{
		{"known content length", func(b *bytes.Buffer) io.Reader { return b }},
		// io.MultiReader hides the length, so the request is read as a stream.
		{"streamed body", func(b *bytes.Buffer) io.Reader { return io.MultiReader(b) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, imageTypes)
			body, ct := multipartBody(t, filePart("huge.png", "image/png", data))

			rec := f.do(http.MethodPost, tt.wrap(body), ct)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if msg := decodeBody(t, rec)["error"]; msg != "File exceeds the maximum upload size." {
				t.Errorf("error = %q", msg)
			}
			if f.store.Calls() != 0 || f.store.BytesReceived() != 0 {
				t.Errorf("provider calls = %d, bytes = %d, want none", f.store.Calls(), f.store.BytesReceived())
			}
			f.assertTempDirEmpty(t)
		})
	}
}

func TestUploadOneByteOverLimit(t *testing.T) {
	f := newFixture(t, nil)
	body, ct := multipartBody(t, filePart("edge.bin", "application/octet-stream", make([]byte, testMaxBytes+1)))

	rec := f.do(http.MethodPost, io.MultiReader(body), ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.store.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestUploadMethodNotAllowed(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead} {
		t.Run(method, func(t *testing.T) {
			f := newFixture(t, imageTypes)
			body, ct := multipartBody(t, filePart("cat.png", "image/png", []byte("px")))

			rec := f.do(method, body, ct)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status = %d", rec.Code)
			}
			if method != http.MethodHead {
				if got := strings.TrimSpace(rec.Body.String()); got != `{"error":"Method Not Allowed"}` {
					t.Errorf("body = %s", got)
				}
			}
			if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
				t.Errorf("Allow = %q", allow)
			}
			if f.store.Calls() != 0 {
				t.Errorf("provider calls = %d, want 0", f.store.Calls())
			}
		})
	}
}

// countingReader records whether the handler touched the request body.
type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

func TestUploadServerMisconfigured(t *testing.T) {
	tempDir := t.TempDir()
	svc := NewService(nil, Config{MaxBytes: testMaxBytes, TempDir: tempDir}, zap.NewNop())
	h := NewHandler(svc, zap.NewNop())

	buf, ct := multipartBody(t, filePart("cat.png", "image/png", []byte("px")))
	body := &countingReader{r: buf}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if msg := decodeBody(t, rec)["error"]; msg != "Server storage is not configured." {
		t.Errorf("error = %q", msg)
	}
	if body.reads != 0 {
		t.Errorf("body read %d times, want 0", body.reads)
	}
	if entries, _ := os.ReadDir(tempDir); len(entries) != 0 {
		t.Errorf("temp dir not empty")
	}
}

func TestUploadUnsupportedContentType(t *testing.T) {
	f := newFixture(t, imageTypes)
	body, ct := multipartBody(t, filePart("doc.pdf", "application/pdf", []byte("%PDF-1.7")))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["error"] != "Unsupported file type." || got["details"] != "application/pdf" {
		t.Errorf("body = %v", got)
	}
	if f.store.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestUploadEmptyAllowListAcceptsAnyType(t *testing.T) {
	f := newFixture(t, nil)
	body, ct := multipartBody(t, filePart("doc.pdf", "application/pdf", []byte("%PDF-1.7")))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestUploadDefaultsContentType(t *testing.T) {
	f := newFixture(t, nil)
	body, ct := multipartBody(t, filePart("blob", "", []byte("raw")))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	key := strings.TrimPrefix(decodeBody(t, rec)["url"], "https://blob.example.com/artwork/")
	if _, storedType, _ := f.store.Get(key); storedType != "application/octet-stream" {
		t.Errorf("content type = %q", storedType)
	}
}

func TestUploadMalformedBody(t *testing.T) {
	valid, validCT := multipartBody(t, filePart("cat.png", "image/png", []byte("pixels")))
	truncated := valid.Bytes()[:valid.Len()-20]

	tests := []struct {
		name        string
		body        io.Reader
		contentType string
	}{
		{"not multipart", strings.NewReader(`{"file":"x"}`), "application/json"},
		{"missing boundary", strings.NewReader("--x\r\n"), "multipart/form-data"},
		{"no content type", strings.NewReader("data"), ""},
		{"truncated body", bytes.NewReader(truncated), validCT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, imageTypes)

			rec := f.do(http.MethodPost, tt.body, tt.contentType)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if msg := decodeBody(t, rec)["error"]; msg == "" {
				t.Error("empty error message")
			}
			if f.store.Calls() != 0 {
				t.Errorf("provider calls = %d, want 0", f.store.Calls())
			}
			f.assertTempDirEmpty(t)
		})
	}
}

func TestUploadRejectsSecondFile(t *testing.T) {
	f := newFixture(t, imageTypes)
	body, ct := multipartBody(t,
		filePart("a.png", "image/png", []byte("a")),
		filePart("b.png", "image/png", []byte("b")),
	)

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.store.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

// failingReader yields data and then fails, like a client that disconnects.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestUploadClientDisconnectCleansUp(t *testing.T) {
	f := newFixture(t, imageTypes)
	body, ct := multipartBody(t, filePart("cat.png", "image/png", make([]byte, 256*1024)))
	partial := body.Bytes()[:128*1024]

	rec := f.do(http.MethodPost, &failingReader{data: partial, err: io.ErrUnexpectedEOF}, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.store.Calls() != 0 {
		t.Errorf("provider calls = %d, want 0", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestUploadProviderFailure(t *testing.T) {
	f := newFixture(t, imageTypes)
	f.store.FailWith(errors.New("signature for key SECRETKEY does not match"))
	body, ct := multipartBody(t, filePart("cat.png", "image/png", []byte("px")))

	rec := f.do(http.MethodPost, body, ct)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody(t, rec)
	if got["error"] != "Failed to upload image." {
		t.Errorf("error = %q", got["error"])
	}
	if strings.Contains(got["details"], "SECRETKEY") || !strings.Contains(got["details"], "[REDACTED]") {
		t.Errorf("details = %q", got["details"])
	}
	if f.store.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", f.store.Calls())
	}
	f.assertTempDirEmpty(t)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name, contentType, want string
	}{
		{"cat.png", "image/png", "cat.png"},
		{"  cat.png  ", "image/png", "cat.png"},
		{"../../etc/passwd", "image/png", "passwd"},
		{`C:\Users\me\cat.png`, "image/png", "cat.png"},
		{"ca\x00t.png", "image/png", "cat.png"},
		{"", "image/png", "upload.png"},
		{"..", "image/png", "upload.png"},
		{"", "application/x-unknown-kind", "upload"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.name, tt.contentType); got != tt.want {
			t.Errorf("sanitizeFilename(%q, %q) = %q, want %q", tt.name, tt.contentType, got, tt.want)
		}
	}
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		header, want string
	}{
		{"", "application/octet-stream"},
		{"image/PNG", "image/png"},
		{"image/jpeg; q=1", "image/jpeg"},
		{"not a type;;", "not a type;;"},
	}
	for _, tt := range tests {
		if got := mediaType(tt.header); got != tt.want {
			t.Errorf("mediaType(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
