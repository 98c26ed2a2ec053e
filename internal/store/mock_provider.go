package store

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of the Provider interface for
// testing failure paths the MemoryProvider cannot produce.
type MockProvider struct {
	mock.Mock
}

// FindOne is the mock implementation of the FindOne method.
func (m *MockProvider) FindOne(ctx context.Context, collection string, query map[string]any) (map[string]any, error) {
	args := m.Called(ctx, collection, query)
	var doc map[string]any
	if v := args.Get(0); v != nil {
		doc = v.(map[string]any)
	}
	return doc, args.Error(1)
}

// UpsertIfAbsent is the mock implementation of the UpsertIfAbsent method.
func (m *MockProvider) UpsertIfAbsent(ctx context.Context, collection string, doc map[string]any, uniqueField string) (string, error) {
	args := m.Called(ctx, collection, doc, uniqueField)
	return args.String(0), args.Error(1)
}

// UpdateOne is the mock implementation of the UpdateOne method.
func (m *MockProvider) UpdateOne(ctx context.Context, collection string, query map[string]any, set map[string]any) (bool, error) {
	args := m.Called(ctx, collection, query, set)
	return args.Bool(0), args.Error(1)
}

// Ping is the mock implementation of the Ping method.
func (m *MockProvider) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockProvider) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0) //nolint:wrapcheck
}
