package domain

import "context"

// DispatchResult reports the outcome of relaying a reply to the chat channel.
type DispatchResult struct {
	OK       bool           `json:"ok"`
	Response map[string]any `json:"response,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Dispatcher relays text back to the chat channel.
type Dispatcher interface {
	// SendText delivers content to the destination conversation, addressing
	// the given mention targets in group chats. Delivery is attempted once.
	SendText(ctx context.Context, to, content string, mentions []string) DispatchResult
}
