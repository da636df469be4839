package storage

import (
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
)

const suffixLen = 12

// ObjectKey returns the key an object named name is stored under.
// With addSuffix, "cat.png" becomes "cat-3f9a1c2b7d4e.png".
func ObjectKey(name string, addSuffix bool) string {
	if !addSuffix {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return base + "-" + randomSuffix() + ext
}

// randomSuffix returns the first hex digits of a v4 UUID, all of which are random.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
}

// PublicURL joins base and key, escaping each key segment.
func PublicURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segments, "/")
}
