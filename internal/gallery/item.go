// Package gallery models the artwork records the front-end displays.
package gallery

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// UploadedCategory is the category given to items added through an upload.
const UploadedCategory = "Uploaded"

// Item is one artwork in the displayed collection.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Src      string `json:"src"`
}

// NewUploadedItem builds the record for a freshly uploaded file. The title is
// the file name without its extension.
func NewUploadedItem(src, filename string) Item {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	title := strings.TrimSuffix(base, path.Ext(base))
	if title == "" || title == "." || title == "/" {
		title = "Untitled"
	}
	return Item{
		ID:       uuid.NewString(),
		Title:    title,
		Category: UploadedCategory,
		Src:      src,
	}
}

// Prepend returns a new slice with item in front of items. items is not
// modified.
func Prepend(items []Item, item Item) []Item {
	out := make([]Item, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}
