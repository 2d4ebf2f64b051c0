package domain

import (
	"fmt"
	"slices"
	"time"
)

// Scope classifies the conversation an event belongs to.
type Scope string

const (
	ScopePrivate Scope = "private"
	ScopeGroup   Scope = "group"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	return s == ScopePrivate || s == ScopeGroup
}

// InboundEvent is a normalized message received from the chat webhook.
type InboundEvent struct {
	Text  string `json:"text"`
	Scope Scope  `json:"scope"`

	// SenderID is the individual who wrote the message. In groups it is the
	// member's wxid; in private chats it may be empty.
	SenderID string `json:"senderId,omitempty"`

	// ConversationID is the counterpart's wxid for private chats and the
	// group's wxid for group chats. Replies are addressed to it.
	ConversationID string `json:"conversationId"`

	Mentions   []string  `json:"mentions,omitempty"`
	FromSelf   bool      `json:"fromSelf,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// IsGroup reports whether the event came from a group chat.
func (e InboundEvent) IsGroup() bool {
	return e.Scope == ScopeGroup
}

// Mentioned reports whether id appears in the event's mention list.
func (e InboundEvent) Mentioned(id string) bool {
	return id != "" && slices.Contains(e.Mentions, id)
}

// Participant returns the id a conversation identity is keyed on: the sender
// inside a group, the counterpart in a private chat.
func (e InboundEvent) Participant() string {
	if e.IsGroup() {
		return e.SenderID
	}
	return e.ConversationID
}

// Validate checks the fields every event needs before any session work.
func (e InboundEvent) Validate() error {
	switch {
	case !e.Scope.Valid():
		return fmt.Errorf("%w: unknown scope %q", ErrMalformedEvent, e.Scope)
	case e.ConversationID == "":
		return fmt.Errorf("%w: missing conversation id", ErrMalformedEvent)
	case e.IsGroup() && e.SenderID == "":
		return fmt.Errorf("%w: group event without sender", ErrMalformedEvent)
	}
	return nil
}

// ReplyResult is the router's answer for a single event.
type ReplyResult struct {
	Content       string `json:"content"`
	IsError       bool   `json:"isError"`
	SessionHandle string `json:"sessionHandle,omitempty"`
}
