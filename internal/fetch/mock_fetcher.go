package fetch

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the Fetcher interface for
// tests that script page downloads instead of hitting a server.
type MockFetcher struct {
	mock.Mock
}

// Fetch is the mock implementation of the Fetch method.
func (m *MockFetcher) Fetch(ctx context.Context, req Request) (Page, error) {
	args := m.Called(ctx, req)
	var page Page
	if v := args.Get(0); v != nil {
		page = v.(Page)
	}
	return page, args.Error(1)
}
