package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeValid(t *testing.T) {
	assert.True(t, ScopePrivate.Valid())
	assert.True(t, ScopeGroup.Valid())
	assert.False(t, Scope("channel").Valid())
	assert.False(t, Scope("").Valid())
}

func TestInboundEvent_Participant(t *testing.T) {
	tests := []struct {
		name string
		evt  InboundEvent
		want string
	}{
		{
			name: "private uses counterpart",
			evt:  InboundEvent{Scope: ScopePrivate, ConversationID: "wxid_a"},
			want: "wxid_a",
		},
		{
			name: "private ignores sender",
			evt:  InboundEvent{Scope: ScopePrivate, ConversationID: "wxid_a", SenderID: "wxid_x"},
			want: "wxid_a",
		},
		{
			name: "group uses sender not group",
			evt:  InboundEvent{Scope: ScopeGroup, ConversationID: "123@chatroom", SenderID: "wxid_b"},
			want: "wxid_b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.evt.Participant())
		})
	}
}

func TestInboundEvent_Mentioned(t *testing.T) {
	evt := InboundEvent{Scope: ScopeGroup, Mentions: []string{"wxid_bot", "wxid_c"}}
	assert.True(t, evt.Mentioned("wxid_bot"))
	assert.False(t, evt.Mentioned("wxid_other"))
	assert.False(t, evt.Mentioned(""))
	assert.False(t, InboundEvent{}.Mentioned("wxid_bot"))
}

func TestReplyResultJSON_OmitsEmptyHandle(t *testing.T) {
	data, err := json.Marshal(ReplyResult{Content: "retry later", IsError: true})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sessionHandle")
	assert.Contains(t, string(data), `"isError":true`)
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("creating session: %w", ErrBackendUnavailable)
	assert.True(t, errors.Is(err, ErrBackendUnavailable))
	assert.False(t, errors.Is(err, ErrStoreUnavailable))
}

func TestInboundEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		evt     InboundEvent
		wantErr bool
	}{
		{"private ok", InboundEvent{Scope: ScopePrivate, ConversationID: "wxid_a"}, false},
		{"group ok", InboundEvent{Scope: ScopeGroup, ConversationID: "123@chatroom", SenderID: "wxid_b"}, false},
		{"unknown scope", InboundEvent{Scope: "channel", ConversationID: "x"}, true},
		{"no conversation", InboundEvent{Scope: ScopePrivate}, true},
		{"group without sender", InboundEvent{Scope: ScopeGroup, ConversationID: "123@chatroom"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.evt.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
