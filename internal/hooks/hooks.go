// Package hooks lets operators observe relay lifecycle events.
package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/ragrelay/internal/logging"
)

// Lifecycle events.
const (
	EventMessageReceived = "message_received"
	EventReplySent       = "reply_sent"
	EventSessionCreated  = "session_created"
	EventSessionCleared  = "session_cleared"
	EventGatewayStart    = "gateway_start"
	EventGatewayStop     = "gateway_stop"
)

// AllEvents is every event the relay emits, in lifecycle order.
var AllEvents = []string{
	EventGatewayStart,
	EventMessageReceived,
	EventSessionCreated,
	EventReplySent,
	EventSessionCleared,
	EventGatewayStop,
}

// Payload is what a handler receives. Data is shared between handlers of
// one emission and must not be modified.
type Payload struct {
	Event string         `json:"event"`
	Time  time.Time      `json:"time"`
	Data  map[string]any `json:"data,omitempty"`
}

// Handler reacts to an event. A returned error is logged and otherwise ignored.
type Handler func(ctx context.Context, p Payload) error

type registration struct {
	name string
	fn   Handler
}

// Manager fans events out to registered handlers. The zero value is not
// usable; a nil *Manager accepts and drops every emission.
type Manager struct {
	log *logging.Logger
	now func() time.Time

	mu   sync.RWMutex
	regs map[string][]registration
}

// NewManager returns an empty manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		log:  log.Sub("hooks"),
		now:  time.Now,
		regs: map[string][]registration{},
	}
}

// On appends handler to the event's list. name shows up in error logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	m.regs[event] = append(m.regs[event], registration{name: name, fn: handler})
	m.mu.Unlock()
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Count reports how many handlers listen for event.
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.regs[event])
}

// Emit runs the event's handlers one after another on the calling goroutine.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	regs, p := m.prepare(event, data)
	for _, r := range regs {
		m.call(ctx, r, p)
	}
}

// EmitAsync starts each handler on its own goroutine and returns. Handlers
// keep ctx's values but not its cancellation.
func (m *Manager) EmitAsync(ctx context.Context, event string, data map[string]any) {
	regs, p := m.prepare(event, data)
	if len(regs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, r := range regs {
		go m.call(ctx, r, p)
	}
}

// prepare snapshots the handler list so registration during dispatch is safe.
func (m *Manager) prepare(event string, data map[string]any) ([]registration, Payload) {
	if m == nil {
		return nil, Payload{}
	}
	m.mu.RLock()
	regs := append([]registration(nil), m.regs[event]...)
	m.mu.RUnlock()
	return regs, Payload{Event: event, Time: m.now(), Data: data}
}

func (m *Manager) call(ctx context.Context, r registration, p Payload) {
	if err := r.fn(ctx, p); err != nil {
		m.log.Warn().Err(err).Str("event", p.Event).Str("handler", r.name).Msg("hook failed")
	}
}
