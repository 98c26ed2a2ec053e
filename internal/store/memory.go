package store

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider backing tests and dry runs.
// It honors the equality + $ne query subset the crawler relies on.
type MemoryProvider struct {
	mu     sync.RWMutex
	nextID int
	data   map[string][]map[string]any
}

// NewMemoryProvider returns an empty in-memory store.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string][]map[string]any)}
}

// FindOne scans the collection in insertion order.
func (m *MemoryProvider) FindOne(_ context.Context, collection string, query map[string]any) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.data[collection] {
		if matches(doc, query) {
			return maps.Clone(doc), nil
		}
	}
	return nil, nil
}

// UpsertIfAbsent inserts doc unless the uniqueField value is already
// present.
func (m *MemoryProvider) UpsertIfAbsent(_ context.Context, collection string, doc map[string]any, uniqueField string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data[collection] {
		if reflect.DeepEqual(existing[uniqueField], doc[uniqueField]) {
			return fmt.Sprint(existing["_id"]), nil
		}
	}
	stored := maps.Clone(doc)
	m.nextID++
	id := fmt.Sprintf("mem-%06d", m.nextID)
	stored["_id"] = id
	now := time.Now().UTC()
	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = now
	}
	if _, ok := stored["updated_at"]; !ok {
		stored["updated_at"] = now
	}
	m.data[collection] = append(m.data[collection], stored)
	return id, nil
}

// UpdateOne applies set to the first match and refreshes updated_at.
func (m *MemoryProvider) UpdateOne(_ context.Context, collection string, query map[string]any, set map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.data[collection] {
		if !matches(doc, query) {
			continue
		}
		for k, v := range set {
			doc[k] = v
		}
		doc["updated_at"] = time.Now().UTC()
		return true, nil
	}
	return false, nil
}

// Ping always succeeds for the in-memory store.
func (m *MemoryProvider) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryProvider) Close(context.Context) error { return nil }

// Count reports how many documents a collection holds.
func (m *MemoryProvider) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data[collection])
}

// matches evaluates the field-equality/$ne query subset.
func matches(doc, query map[string]any) bool {
	for field, want := range query {
		got, present := doc[field]
		if cond, ok := want.(map[string]any); ok {
			if ne, hasNe := cond["$ne"]; hasNe {
				if ne == nil {
					// {"$ne": nil} means "field exists and is non-null".
					if !present || got == nil {
						return false
					}
					continue
				}
				if present && reflect.DeepEqual(got, ne) {
					return false
				}
				continue
			}
			if !present || !reflect.DeepEqual(got, cond) {
				return false
			}
			continue
		}
		if want == nil {
			if present && got != nil {
				return false
			}
			continue
		}
		if !present || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
