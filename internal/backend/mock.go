package backend

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	CreateFunc func(ctx context.Context, title string) (string, error)
	SendFunc   func(ctx context.Context, question, handle string) Answer
}

func (m *MockClient) CreateSession(ctx context.Context, title string) (string, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, title)
	}
	return "mock-session", nil
}

func (m *MockClient) Send(ctx context.Context, question, handle string) Answer {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, question, handle)
	}
	return Answer{Content: "mock answer"}
}
