// Package store defines the document-store gateway used to persist
// extracted records and crawl reports. Two backends implement it:
// MongoDB for production, an in-memory map for tests and dry runs.
package store

import (
	"context"
	"strings"
)

// Provider is the document-store contract the crawler runs against.
// Queries are plain field-equality maps; the one operator implementations
// must honor is {"field": {"$ne": value}}.
type Provider interface {
	// FindOne returns the first document matching query, or nil when
	// nothing matches.
	FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error)

	// UpsertIfAbsent inserts doc unless a document carrying the same
	// value under uniqueField already exists. It returns the id of the
	// stored document either way and stamps created_at/updated_at on
	// insert.
	UpsertIfAbsent(ctx context.Context, collection string, doc map[string]any, uniqueField string) (string, error)

	// UpdateOne applies the set fields to the first match of query and
	// reports whether a document was modified. updated_at is always
	// refreshed, even when set is empty.
	UpdateOne(ctx context.Context, collection string, query map[string]any, set map[string]any) (bool, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// CollectionName maps a task name onto a collection name the backend
// accepts: spaces and the characters Mongo reserves become underscores.
func CollectionName(taskName string) string {
	return strings.NewReplacer(" ", "_", ".", "_", "$", "_").Replace(taskName)
}
