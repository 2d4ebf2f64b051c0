// Package routing decides what each inbound chat event warrants and carries
// it through the session directory, the backend and the reply dispatcher.
package routing

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/ragrelay/internal/backend"
	"github.com/soyeahso/ragrelay/internal/domain"
	"github.com/soyeahso/ragrelay/internal/hooks"
	"github.com/soyeahso/ragrelay/internal/logging"
)

// Directory is the slice of sessions.Directory the router needs.
type Directory interface {
	GetOrCreate(ctx context.Context, key, label, titleSeed string) (handle string, created bool, err error)
	Clear(ctx context.Context, key string) (bool, error)
	ClearAllMatching(ctx context.Context, prefix string) (int, error)
}

// Backend forwards a question into an existing backend session.
type Backend interface {
	Send(ctx context.Context, question, handle string) backend.Answer
}

// Replies holds the texts the router produces itself.
type Replies struct {
	Fallback     string
	Retry        string
	Cleared      string
	NotCleared   string
	ClearedAll   string
	Unauthorized string
}

// Options configures a Router.
type Options struct {
	BotWxid         string
	KeyPrefix       string
	ClearCommand    string
	ClearAllCommand string
	Admins          []string // senders allowed to clear all; empty = anyone
	Replies         Replies
	PrivateLabel    string // session title prefix per scope
	GroupLabel      string
	Hooks           *hooks.Manager
}

// Router turns inbound events into replies. It holds no per-event state.
type Router struct {
	dir        Directory
	backend    Backend
	dispatcher domain.Dispatcher
	opts       Options
	log        *logging.Logger
}

// NewRouter creates a message router. dispatcher may be nil, in which case
// HandleInbound routes without relaying.
func NewRouter(dir Directory, be Backend, dispatcher domain.Dispatcher, opts Options, log *logging.Logger) *Router {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "session"
	}
	return &Router{
		dir:        dir,
		backend:    be,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log.Sub("routing"),
	}
}

// KeyPrefix returns the identity key namespace.
func (r *Router) KeyPrefix() string { return r.opts.KeyPrefix }

// Route decides and performs the work for one event and returns what
// should be said back. Backend and store failures become error replies.
func (r *Router) Route(ctx context.Context, evt domain.InboundEvent) Outcome {
	if err := evt.Validate(); err != nil {
		r.log.Warn().Err(err).Msg("rejecting event")
		return Outcome{Action: ActionRejected, Reason: ReasonMalformed, Message: err.Error()}
	}

	if out, ok := r.screen(evt); !ok {
		r.log.Debug().
			Str("reason", out.Reason).
			Str("conversation", evt.ConversationID).
			Str("sender", evt.SenderID).
			Msg("event ignored")
		return out
	}

	key := ResolveIdentityKey(r.opts.KeyPrefix, evt)

	switch evt.Text {
	case r.opts.ClearCommand:
		return r.clear(ctx, key)
	case r.opts.ClearAllCommand:
		return r.clearAll(ctx, evt)
	case "":
		return Outcome{Action: ActionIgnored, Reason: ReasonEmpty, Message: "Empty message content"}
	}

	question := evt.Text
	if evt.IsGroup() {
		question = StripMention(question)
	}
	if strings.TrimSpace(question) == "" {
		return Outcome{Action: ActionIgnored, Reason: ReasonEmpty, Key: key, Message: "Empty message content"}
	}

	return r.dispatch(ctx, key, r.titleLabel(evt.Scope), evt.Participant(), question)
}

// Addressed reports whether evt passes the self filter and the group
// mention gate, the checks that drop an event with no side effects.
func (r *Router) Addressed(evt domain.InboundEvent) bool {
	_, ok := r.screen(evt)
	return ok
}

func (r *Router) screen(evt domain.InboundEvent) (Outcome, bool) {
	bot := r.opts.BotWxid
	if evt.FromSelf || (bot != "" && evt.SenderID == bot) {
		return Outcome{Action: ActionIgnored, Reason: ReasonSelfMessage, Message: "Self-message ignored."}, false
	}
	if evt.IsGroup() && !evt.Mentioned(bot) {
		return Outcome{Action: ActionIgnored, Reason: ReasonNotMentioned, Message: "Message not mentioning bot, no reply sent."}, false
	}
	return Outcome{}, true
}

func (r *Router) titleLabel(scope domain.Scope) string {
	if scope == domain.ScopeGroup {
		return r.opts.GroupLabel
	}
	return r.opts.PrivateLabel
}

func (r *Router) dispatch(ctx context.Context, key, label, participant, question string) Outcome {
	handle, created, err := r.dir.GetOrCreate(ctx, key, label, participant)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("no backend session")
		return Outcome{
			Action: ActionReply,
			Key:    key,
			Reply:  &domain.ReplyResult{Content: r.opts.Replies.Retry, IsError: true},
		}
	}

	start := time.Now()
	answer := r.backend.Send(ctx, question, handle)
	if answer.IsError {
		r.log.Warn().
			Str("key", key).
			Str("session", handle).
			Str("backendReply", answer.Content).
			Dur("duration", time.Since(start)).
			Msg("backend answered with an error, using fallback")
		return Outcome{
			Action: ActionReply,
			Key:    key,
			Reply:  &domain.ReplyResult{Content: r.opts.Replies.Fallback, IsError: true, SessionHandle: handle},
		}
	}

	r.log.Info().
		Str("key", key).
		Str("session", handle).
		Bool("newSession", created).
		Dur("duration", time.Since(start)).
		Msg("answer ready")
	return Outcome{
		Action: ActionReply,
		Key:    key,
		Reply:  &domain.ReplyResult{Content: answer.Content, SessionHandle: handle},
	}
}

func (r *Router) clear(ctx context.Context, key string) Outcome {
	existed, err := r.dir.Clear(ctx, key)
	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("clear failed")
	}
	ok := err == nil && existed
	msg := r.opts.Replies.NotCleared
	if ok {
		msg = r.opts.Replies.Cleared
	}
	return Outcome{
		Action:  ActionCommand,
		Command: CommandClear,
		Key:     key,
		OK:      ok,
		Message: msg,
		Reply:   &domain.ReplyResult{Content: msg, IsError: !ok},
	}
}

func (r *Router) clearAll(ctx context.Context, evt domain.InboundEvent) Outcome {
	caller := evt.Participant()
	if len(r.opts.Admins) > 0 && !slices.Contains(r.opts.Admins, caller) {
		r.log.Warn().Str("caller", caller).Msg("clear all refused")
		msg := r.opts.Replies.Unauthorized
		return Outcome{
			Action:  ActionCommand,
			Command: CommandClearAll,
			Message: msg,
			Reply:   &domain.ReplyResult{Content: msg, IsError: true},
		}
	}

	n, err := r.dir.ClearAllMatching(ctx, r.opts.KeyPrefix+":")
	if err != nil {
		r.log.Error().Err(err).Int("deleted", n).Msg("clear all failed")
	}
	msg := r.opts.Replies.ClearedAll
	return Outcome{
		Action:  ActionCommand,
		Command: CommandClearAll,
		OK:      err == nil,
		Message: msg,
		Reply:   &domain.ReplyResult{Content: msg, IsError: err != nil},
	}
}

// HandleInbound routes evt and relays any reply to the conversation it came
// from. Relay failures are logged; session state is left as routed.
func (r *Router) HandleInbound(ctx context.Context, evt domain.InboundEvent) Outcome {
	r.log.Info().
		Str("scope", string(evt.Scope)).
		Str("conversation", evt.ConversationID).
		Str("sender", evt.SenderID).
		Msg("routing inbound message")
	r.opts.Hooks.EmitAsync(ctx, hooks.EventMessageReceived, map[string]any{
		"scope":        string(evt.Scope),
		"conversation": evt.ConversationID,
		"sender":       evt.SenderID,
		"text":         evt.Text,
	})

	out := r.Route(ctx, evt)
	if out.Reply == nil || out.Reply.Content == "" || r.dispatcher == nil {
		return out
	}

	var mentions []string
	if evt.IsGroup() {
		mentions = []string{evt.SenderID}
	}
	result := r.dispatcher.SendText(ctx, evt.ConversationID, out.Reply.Content, mentions)
	out.Dispatch = &result
	if !result.OK {
		r.log.Error().
			Str("to", evt.ConversationID).
			Str("error", result.Error).
			Msg("failed to relay reply")
		return out
	}

	r.log.Info().
		Str("to", evt.ConversationID).
		Str("action", string(out.Action)).
		Bool("isError", out.Reply.IsError).
		Msg("reply sent")
	r.opts.Hooks.EmitAsync(ctx, hooks.EventReplySent, map[string]any{
		"to":      evt.ConversationID,
		"key":     out.Key,
		"action":  string(out.Action),
		"content": out.Reply.Content,
		"isError": out.Reply.IsError,
	})
	return out
}
