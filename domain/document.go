package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// DefaultTitle is used when a document has no title of its own.
const DefaultTitle = "Shopping"

// Document is the persisted state of one shared list.
type Document struct {
	Title     string `json:"title"`
	Items     []Item `json:"items"`
	Version   int64  `json:"version"`
	UpdatedAt int64  `json:"updated_at"`
}

// ErrCorruptDocument is returned when a stored blob cannot be read as a document.
var ErrCorruptDocument = errors.New("corrupt stored document")

// NewDocument returns the empty document served for tokens without state.
func NewDocument(title string, now int64) Document {
	if title == "" {
		title = DefaultTitle
	}
	return Document{Title: title, Items: []Item{}, Version: 0, UpdatedAt: now}
}

// DecodeStored parses a persisted blob. Items that fail normalization are
// skipped and reported in the second return value; a blob that is not a JSON
// object yields ErrCorruptDocument.
func DecodeStored(data []byte, defaultTitle string, now int64) (Document, []*ValidationError, error) {
	var raw any
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return Document{}, nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	rec, ok := raw.(map[string]any)
	if !ok {
		return Document{}, nil, fmt.Errorf("%w: not an object", ErrCorruptDocument)
	}

	doc := NewDocument(defaultTitle, now)
	if title, ok := rec["title"].(string); ok {
		doc.Title = title
	}
	if v, ok := finiteNumber(rec["version"]); ok && v >= 0 {
		doc.Version = int64(v)
	}
	if ts, ok := finiteNumber(rec["updated_at"]); ok && ts > 0 {
		doc.UpdatedAt = int64(ts)
	}

	var skipped []*ValidationError
	list, _ := rec["items"].([]any)
	for i, entry := range list {
		item, err := NormalizeItem(entry, i, now)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				skipped = append(skipped, verr)
			}
			continue
		}
		doc.Items = append(doc.Items, item)
	}
	return doc, skipped, nil
}

// EncodeDocument serializes a document for storage.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc.Items == nil {
		doc.Items = []Item{}
	}
	return json.Marshal(doc)
}
