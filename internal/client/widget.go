package client

import (
	"context"
	"errors"
	"sync"

	"github.com/artgallery/service/internal/gallery"
)

var (
	// ErrInFlight is returned by Submit while an upload is pending.
	ErrInFlight = errors.New("an upload is already in progress")
	// ErrNoSelection is returned by Submit when no file is selected.
	ErrNoSelection = errors.New("no file selected")
	// ErrSuperseded is returned by a Submit whose result was discarded
	// because a newer selection replaced it.
	ErrSuperseded = errors.New("upload superseded by a newer selection")
)

// State is the widget's display state.
type State int

const (
	StateIdle State = iota
	StateInFlight
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInFlight:
		return "in-flight"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Submitter uploads one file and returns its public URL.
type Submitter interface {
	Upload(ctx context.Context, f File) (string, error)
}

// Snapshot is a copy of the widget's state for rendering.
type Snapshot struct {
	State    State
	Selected *File
	// URL is set when the last upload succeeded.
	URL string
	// Message is set when the last upload failed.
	Message string
	Items   []gallery.Item
}

// Widget tracks selection and upload state. Only the most recent request may
// change what is displayed.
type Widget struct {
	up Submitter

	mu       sync.Mutex
	state    State
	selected *File
	gen      uint64
	cancel   context.CancelFunc
	url      string
	message  string
	items    []gallery.Item
	onChange func(Snapshot)
}

// NewWidget creates a Widget displaying items.
func NewWidget(up Submitter, items []gallery.Item) *Widget {
	return &Widget{up: up, items: append([]gallery.Item(nil), items...)}
}

// OnChange registers fn to be called after every state change.
func (w *Widget) OnChange(fn func(Snapshot)) {
	w.mu.Lock()
	w.onChange = fn
	w.mu.Unlock()
}

// Select replaces the selected file. A pending upload is cancelled and its
// result discarded.
func (w *Widget) Select(f File) {
	w.mu.Lock()
	w.selected = &f
	if w.state == StateInFlight {
		w.gen++
		w.cancel()
		w.cancel = nil
	}
	w.state = StateIdle
	w.url, w.message = "", ""
	w.mu.Unlock()
	w.notify()
}

// Submit uploads the selected file and blocks until it settles. On success
// the new item is prepended and the selection cleared. On failure the
// selection is kept so the user can retry.
func (w *Widget) Submit(ctx context.Context) (string, error) {
	w.mu.Lock()
	if w.state == StateInFlight {
		w.mu.Unlock()
		return "", ErrInFlight
	}
	if w.selected == nil {
		w.mu.Unlock()
		return "", ErrNoSelection
	}
	w.gen++
	gen := w.gen
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.state = StateInFlight
	w.url, w.message = "", ""
	file := *w.selected
	w.mu.Unlock()
	w.notify()

	url, err := w.up.Upload(ctx, file)
	cancel()

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return "", ErrSuperseded
	}
	w.state = StateSettled
	w.cancel = nil
	if err != nil {
		w.message = failureMessage(err)
	} else {
		w.url = url
		w.items = gallery.Prepend(w.items, gallery.NewUploadedItem(url, displayName(file)))
		w.selected = nil
	}
	w.mu.Unlock()
	w.notify()

	return url, err
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Widget) snapshotLocked() Snapshot {
	s := Snapshot{
		State:   w.state,
		URL:     w.url,
		Message: w.message,
		Items:   append([]gallery.Item(nil), w.items...),
	}
	if w.selected != nil {
		f := *w.selected
		s.Selected = &f
	}
	return s
}

func (w *Widget) notify() {
	w.mu.Lock()
	fn := w.onChange
	s := w.snapshotLocked()
	w.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func displayName(f File) string {
	if f.StoreAs != "" {
		return f.StoreAs
	}
	return f.Name
}

// failureMessage is never empty.
func failureMessage(err error) string {
	var upErr *UploadError
	if errors.As(err, &upErr) && upErr.Message != "" {
		return upErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Upload failed."
}
