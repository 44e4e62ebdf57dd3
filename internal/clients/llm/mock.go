package llm

import (
	"context"
)

// MockText is the canned reply used when no provider key is configured.
const MockText = "[MOCK RESPONSE] I understood your request and this is a placeholder reply because OPENAI_API_KEY is not set."

type mockClient struct{}

// NewMockClient returns a client that replies with MockText. It keeps the
// rest of the stack exercisable without provider credentials.
func NewMockClient() Client {
	return &mockClient{}
}

func (m *mockClient) Complete(ctx context.Context, msgs []ChatMessage) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return MockText, nil
}

func (m *mockClient) StreamComplete(ctx context.Context, msgs []ChatMessage, onDelta func(delta string)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if onDelta != nil {
		onDelta(MockText)
	}
	return MockText, nil
}

func (m *mockClient) WithAPIKey(key string) Client { return m }
