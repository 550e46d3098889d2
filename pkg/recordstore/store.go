package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Document is one schemaless record as stored, addressed by its full path.
type Document = json.RawMessage

// ErrBadPath indicates a malformed record path.
var ErrBadPath = errors.New("record path must be collection-rooted with non-empty segments")

// Store is a path-addressed document tree. Paths look like
// "appliances/{id}" or "messages/{conversationKey}/{messageId}"; the first
// segment is the collection. List returns every document under a collection
// (or any deeper prefix) keyed by the path remainder after the prefix.
//
// Writes to the same path are last-write-wins; nothing serializes concurrent
// read-modify-write cycles.
type Store interface {
	Get(ctx context.Context, path string) (Document, bool, error)
	Set(ctx context.Context, path string, doc Document) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) (map[string]Document, error)
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// Join builds a record path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath validates a path and returns its collection and remainder.
func SplitPath(path string) (collection, rest string, err error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", "", ErrBadPath
	}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			return "", "", ErrBadPath
		}
	}
	collection, rest, _ = strings.Cut(path, "/")
	return collection, rest, nil
}

// Marshal encodes an entity into a storable document.
func Marshal(v any) (Document, error) {
	return json.Marshal(v)
}

// Unmarshal decodes a document into an entity.
func Unmarshal(doc Document, v any) error {
	return json.Unmarshal(doc, v)
}
