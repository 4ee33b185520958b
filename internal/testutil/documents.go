package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/allisson/piivault/internal/errors"
	"github.com/allisson/piivault/internal/fieldcrypt/schema"
)

// ErrMemoryDuplicate and ErrMemoryNotFound mirror the SQL repositories' conflict and
// not-found errors so callers can match them with errors.Is against the shared sentinels.
var (
	ErrMemoryDuplicate = apperrors.Wrap(apperrors.ErrConflict, "duplicate value for unique index")
	ErrMemoryNotFound  = apperrors.Wrap(apperrors.ErrNotFound, "document not found")
)

type storedDocument struct {
	raw       []byte
	createdAt time.Time
	updatedAt time.Time
}

// MemoryDocumentStore is an in-memory document repository for use case tests.
// Documents are stored as encoded JSON so every read returns an independent copy,
// and unique paths are enforced per collection like the SQL indexes.
type MemoryDocumentStore struct {
	mu      sync.Mutex
	docs    map[string]map[string]storedDocument
	unique  map[string]map[string]struct{}
	synced  map[string][]string
	writes  int
	applies int

	// FailReplace, when set, is returned by Replace for matching document ids.
	FailReplace map[string]error
}

// NewMemoryDocumentStore creates an empty store. uniquePaths maps collection names to
// the paths that must be unique from the start.
func NewMemoryDocumentStore(uniquePaths map[string][]string) *MemoryDocumentStore {
	s := &MemoryDocumentStore{
		docs:        make(map[string]map[string]storedDocument),
		unique:      make(map[string]map[string]struct{}),
		synced:      make(map[string][]string),
		FailReplace: make(map[string]error),
	}
	for collection, paths := range uniquePaths {
		for _, p := range paths {
			s.addUnique(collection, p)
		}
	}
	return s
}

func (s *MemoryDocumentStore) addUnique(collection, path string) {
	if s.unique[collection] == nil {
		s.unique[collection] = make(map[string]struct{})
	}
	s.unique[collection][path] = struct{}{}
}

// Seed stores raw data as an already persisted document, bypassing every check.
func (s *MemoryDocumentStore) Seed(collection, id string, data map[string]any) {
	raw, err := json.Marshal(data)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]storedDocument)
	}
	now := time.Now().UTC()
	s.docs[collection][id] = storedDocument{raw: raw, createdAt: now, updatedAt: now}
}

// Raw returns the stored data of a document, or nil when missing.
func (s *MemoryDocumentStore) Raw(collection, id string) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.docs[collection][id]
	if !ok {
		return nil
	}
	data, _ := schema.DecodeRaw(stored.raw)
	return data
}

// Writes returns the number of successful Insert and Replace calls.
func (s *MemoryDocumentStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Applies returns the number of successful Apply calls.
func (s *MemoryDocumentStore) Applies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applies
}

// SyncedIndexes returns the paths passed to SyncIndexes for a collection.
func (s *MemoryDocumentStore) SyncedIndexes(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.synced[collection]...)
}

// Save inserts or replaces doc and marks it persisted.
func (s *MemoryDocumentStore) Save(ctx context.Context, collection string, doc *schema.Document) error {
	var err error
	if doc.IsNew() {
		err = s.Insert(ctx, collection, doc)
	} else {
		err = s.Replace(ctx, collection, doc)
	}
	if err != nil {
		return err
	}
	doc.MarkPersisted()
	return nil
}

// Insert stores a new document.
func (s *MemoryDocumentStore) Insert(ctx context.Context, collection string, doc *schema.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[collection][doc.ID]; exists {
		return ErrMemoryDuplicate
	}
	return s.put(collection, doc, true)
}

// Replace overwrites an existing document.
func (s *MemoryDocumentStore) Replace(ctx context.Context, collection string, doc *schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailReplace[doc.ID]; err != nil {
		return err
	}
	if _, exists := s.docs[collection][doc.ID]; !exists {
		return ErrMemoryNotFound
	}
	return s.put(collection, doc, false)
}

func (s *MemoryDocumentStore) put(collection string, doc *schema.Document, insert bool) error {
	data := doc.Data()
	for path := range s.unique[collection] {
		value, ok := stringAt(data, path)
		if !ok {
			continue
		}
		for id, other := range s.docs[collection] {
			if id == doc.ID {
				continue
			}
			otherData, _ := schema.DecodeRaw(other.raw)
			if v, ok := stringAt(otherData, path); ok && v == value {
				return ErrMemoryDuplicate
			}
		}
	}

	raw, err := doc.MarshalRaw()
	if err != nil {
		return err
	}
	if s.docs[collection] == nil {
		s.docs[collection] = make(map[string]storedDocument)
	}
	now := time.Now().UTC()
	stored := storedDocument{raw: raw, createdAt: now, updatedAt: now}
	if !insert {
		stored.createdAt = s.docs[collection][doc.ID].createdAt
	}
	s.docs[collection][doc.ID] = stored
	s.writes++

	if insert {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	return nil
}

// Get loads a document.
func (s *MemoryDocumentStore) Get(ctx context.Context, collection, id string) (*schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(collection, id)
}

func (s *MemoryDocumentStore) load(collection, id string) (*schema.Document, error) {
	stored, ok := s.docs[collection][id]
	if !ok {
		return nil, ErrMemoryNotFound
	}
	data, err := schema.DecodeRaw(stored.raw)
	if err != nil {
		return nil, err
	}
	return schema.LoadDocument(id, data, stored.createdAt, stored.updatedAt), nil
}

// FindOneByAny returns the lowest-id document whose string at path is one of values.
func (s *MemoryDocumentStore) FindOneByAny(
	ctx context.Context,
	collection, path string,
	values []string,
) (*schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[string]struct{}, len(values))
	for _, v := range values {
		want[v] = struct{}{}
	}
	for _, id := range s.sortedIDs(collection) {
		data, _ := schema.DecodeRaw(s.docs[collection][id].raw)
		if v, ok := stringAt(data, path); ok {
			if _, match := want[v]; match {
				return s.load(collection, id)
			}
		}
	}
	return nil, ErrMemoryNotFound
}

// Apply performs a mutation atomically.
func (s *MemoryDocumentStore) Apply(ctx context.Context, collection, id string, m schema.Mutation) error {
	if m.IsEmpty() {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(collection, id)
	if err != nil {
		return err
	}
	if err := m.Apply(doc); err != nil {
		return err
	}
	if err := s.put(collection, doc, false); err != nil {
		return err
	}
	s.applies++
	return nil
}

// Scan returns up to limit documents with id greater than afterID in id order.
func (s *MemoryDocumentStore) Scan(
	ctx context.Context,
	collection, afterID string,
	limit int,
) ([]*schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*schema.Document
	for _, id := range s.sortedIDs(collection) {
		if id <= afterID {
			continue
		}
		doc, err := s.load(collection, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SyncIndexes records the paths and enforces them on later writes. Existing duplicates
// fail the call like a unique index build would.
func (s *MemoryDocumentStore) SyncIndexes(ctx context.Context, collection string, paths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range paths {
		seen := make(map[string]string)
		for _, id := range s.sortedIDs(collection) {
			data, _ := schema.DecodeRaw(s.docs[collection][id].raw)
			if v, ok := stringAt(data, path); ok {
				if other, dup := seen[v]; dup {
					return fmt.Errorf("%w: %s and %s share %s", ErrMemoryDuplicate, other, id, path)
				}
				seen[v] = id
			}
		}
		s.addUnique(collection, path)
	}
	s.synced[collection] = append(s.synced[collection], paths...)
	return nil
}

func (s *MemoryDocumentStore) sortedIDs(collection string) []string {
	ids := make([]string, 0, len(s.docs[collection]))
	for id := range s.docs[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func stringAt(data map[string]any, path string) (string, bool) {
	doc := schema.LoadDocument("", data, time.Time{}, time.Time{})
	v, ok := doc.Get(path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
