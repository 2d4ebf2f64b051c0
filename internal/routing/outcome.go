package routing

import "github.com/soyeahso/ragrelay/internal/domain"

// Action is what the router decided to do with an event.
type Action string

const (
	ActionIgnored  Action = "ignored"
	ActionRejected Action = "rejected"
	ActionCommand  Action = "command"
	ActionReply    Action = "reply"
)

// Reasons attached to ignored and rejected outcomes.
const (
	ReasonSelfMessage  = "self_message"
	ReasonNotMentioned = "not_mentioned"
	ReasonEmpty        = "empty"
	ReasonMalformed    = "malformed"
)

// Command names carried in Outcome.Command.
const (
	CommandClear    = "clear"
	CommandClearAll = "clear_all"
)

// Outcome is the result of routing one event.
type Outcome struct {
	Action  Action `json:"action"`
	Reason  string `json:"reason,omitempty"`
	Command string `json:"command,omitempty"`

	// Key is the resolved identity key, empty when routing stopped earlier.
	Key string `json:"key,omitempty"`

	// OK is the command's success flag.
	OK bool `json:"ok,omitempty"`

	// Message is a short human-readable status for the webhook response.
	Message string `json:"message,omitempty"`

	// Reply is sent back to the conversation when non-nil and non-empty.
	Reply *domain.ReplyResult `json:"reply,omitempty"`

	// Dispatch is filled in by HandleInbound once a reply was relayed.
	Dispatch *domain.DispatchResult `json:"dispatch,omitempty"`
}

// Status maps the outcome onto the webhook's status field.
func (o Outcome) Status() string {
	switch o.Action {
	case ActionCommand:
		if o.OK {
			return "success"
		}
		return "failed"
	case ActionRejected:
		return "error"
	default:
		return "ok"
	}
}
