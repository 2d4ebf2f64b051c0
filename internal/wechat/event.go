// Package wechat speaks the WeChat HTTP hook protocol: it decodes webhook
// deliveries into domain events and sends text replies through the
// sendText2 API.
package wechat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/soyeahso/ragrelay/internal/domain"
)

const (
	fromTypeGroup = 2
	msgSourceSelf = 1
)

// flexInt accepts both 2 and "2".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// Message is the inner data.data object of a webhook delivery.
type Message struct {
	Msg           string   `json:"msg"`
	FromType      flexInt  `json:"fromType"`
	FromWxid      string   `json:"fromWxid"`
	FinalFromWxid string   `json:"finalFromWxid"`
	AtWxidList    []string `json:"atWxidList"`
	MsgSource     flexInt  `json:"msgSource"`
}

// Envelope is a full webhook delivery.
type Envelope struct {
	Type string `json:"type,omitempty"`
	Data struct {
		Type string   `json:"type,omitempty"`
		Data *Message `json:"data"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body into an InboundEvent. Errors wrap
// domain.ErrMalformedEvent.
func ParseEvent(body []byte) (domain.InboundEvent, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.InboundEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}
	msg := env.Data.Data
	if msg == nil || msg.empty() {
		return domain.InboundEvent{}, fmt.Errorf("%w: 消息数据为空", domain.ErrMalformedEvent)
	}
	return msg.Event(time.Now())
}

func (m Message) empty() bool {
	return m.Msg == "" && m.FromWxid == "" && m.FinalFromWxid == "" &&
		len(m.AtWxidList) == 0 && m.FromType == 0 && m.MsgSource == 0
}

// Event converts the message into a domain event received at t.
func (m Message) Event(t time.Time) (domain.InboundEvent, error) {
	if m.FromWxid == "" {
		return domain.InboundEvent{}, fmt.Errorf("%w: fromWxid 缺失", domain.ErrMalformedEvent)
	}

	evt := domain.InboundEvent{
		Text:           m.Msg,
		Scope:          domain.ScopePrivate,
		SenderID:       m.FinalFromWxid,
		ConversationID: m.FromWxid,
		Mentions:       m.AtWxidList,
		FromSelf:       m.MsgSource == msgSourceSelf,
		ReceivedAt:     t,
	}
	if m.FromType == fromTypeGroup {
		evt.Scope = domain.ScopeGroup
	}
	if err := evt.Validate(); err != nil {
		return domain.InboundEvent{}, err
	}
	return evt, nil
}
