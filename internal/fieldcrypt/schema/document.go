package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/piivault/internal/fieldcrypt/domain"
)

// Document is one stored record: its id and the raw JSON object as persisted.
//
// Raw values are never decrypted in place; use the Binding accessors to read plaintext.
// The document keeps a snapshot of the last persisted state so writes only touch fields
// that actually changed.
type Document struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	data     map[string]any
	snapshot map[string]any
	isNew    bool
	dirty    bool
}

// NewDocument creates an unsaved document. An empty id gets a fresh UUIDv7.
func NewDocument(id string, data map[string]any) *Document {
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Document{
		ID:       id,
		data:     cloneValue(data).(map[string]any),
		snapshot: map[string]any{},
		isNew:    true,
	}
}

// LoadDocument wraps a document read from storage.
func LoadDocument(id string, data map[string]any, createdAt, updatedAt time.Time) *Document {
	if data == nil {
		data = map[string]any{}
	}
	data = cloneValue(data).(map[string]any)
	return &Document{
		ID:        id,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		data:      data,
		snapshot:  cloneValue(data).(map[string]any),
	}
}

// NewDocumentFrom encodes v through its json tags into a new document.
func NewDocumentFrom(id string, v any) (*Document, error) {
	data, err := toMap(v)
	if err != nil {
		return nil, err
	}
	return NewDocument(id, data), nil
}

// Data returns the raw stored object. Callers must treat it as read-only.
func (d *Document) Data() map[string]any {
	return d.data
}

// IsNew reports whether the document has never been persisted.
func (d *Document) IsNew() bool {
	return d.isNew
}

// IsDirty reports whether a force rewrite changed the document since it was persisted.
func (d *Document) IsDirty() bool {
	return d.dirty
}

// MarkPersisted records the current raw state as the stored state.
func (d *Document) MarkPersisted() {
	d.snapshot = cloneValue(d.data).(map[string]any)
	d.isNew = false
	d.dirty = false
}

// Get returns the raw value at a dotted path.
func (d *Document) Get(path string) (any, bool) {
	return lookup(d.data, path)
}

// Set stores a raw value at a dotted path, creating intermediate objects.
func (d *Document) Set(path string, value any) error {
	return assign(d.data, path, cloneValue(value))
}

// Unset removes the value at a dotted path. Missing paths are ignored.
func (d *Document) Unset(path string) {
	remove(d.data, path)
}

// Changed reports whether the value at path differs from the persisted snapshot.
// Every path of a new document counts as changed.
func (d *Document) Changed(path string) bool {
	if d.isNew {
		return true
	}
	current, ok1 := lookup(d.data, path)
	stored, ok2 := lookup(d.snapshot, path)
	return ok1 != ok2 || !reflect.DeepEqual(current, stored)
}

// MarshalRaw encodes the stored object exactly as it is persisted.
func (d *Document) MarshalRaw() ([]byte, error) {
	return json.Marshal(d.data)
}

// DecodeRaw decodes a stored JSON object. Numbers are kept as json.Number so a
// read-modify-write never rounds integers beyond 2^53.
func DecodeRaw(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after document object")
	}
	return data, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrInvalidFieldPath)
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFieldPath, path)
		}
	}
	return parts, nil
}

func lookup(data map[string]any, path string) (any, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}
	var current any = data
	for _, p := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func assign(data map[string]any, path string, value any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	current := data
	for _, p := range parts[:len(parts)-1] {
		next, ok := current[p]
		if !ok || next == nil {
			child := map[string]any{}
			current[p] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %q crosses a non-object value", domain.ErrInvalidFieldPath, path)
		}
		current = child
	}
	current[parts[len(parts)-1]] = value
	return nil
}

func remove(data map[string]any, path string) {
	parts, err := splitPath(path)
	if err != nil {
		return
	}
	current := data
	for _, p := range parts[:len(parts)-1] {
		child, ok := current[p].(map[string]any)
		if !ok {
			return
		}
		current = child
	}
	delete(current, parts[len(parts)-1])
}

// cloneValue deep-copies a JSON-like value. []string becomes []any so that values set
// in code compare equal to values decoded from storage.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	default:
		return v
	}
}

// asStrings converts a raw array to []string. Non-string elements fail the conversion.
func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, len(t))
		for i, el := range t {
			s, ok := el.(string)
			if !ok {
				return nil, false
			}
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	data, err := DecodeRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}
