package answer

import (
	"context"
	"fmt"
)

// MockClient echoes the question back with a canned framing. Useful for
// local development without the answering backend.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Ask(ctx context.Context, query string) string {
	return fmt.Sprintf("The archives hold no certain answer to %q yet, traveler. Ask again when the backend is awake.", query)
}
