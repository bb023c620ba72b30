package events

import (
	"time"

	"github.com/rs/zerolog"
)

// Manager stamps and publishes events on a Bus
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates an event manager publishing on bus
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("component", "event_manager").Logger(),
	}
}

// Bus returns the underlying bus for subscribers
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Emit publishes an untyped event
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	m.bus.Publish(&Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Module:    module,
		Data:      data,
	})
	m.log.Debug().Str("event_type", string(eventType)).Str("module", module).Msg("Event emitted")
}

// EmitTyped publishes a typed payload, flattening it to a map for subscribers
func (m *Manager) EmitTyped(module string, data EventData) {
	m.Emit(data.EventType(), module, ToMap(data))
}

// EmitError publishes an ErrorOccurred event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.EmitTyped(module, &ErrorEventData{Error: err.Error(), Context: context})
}
