package storage

import (
	"github.com/cuemby/autoheal/pkg/events"
	"github.com/cuemby/autoheal/pkg/log"
	"github.com/rs/zerolog"
)

// EventLog writes published events to the history
type EventLog struct {
	store  Store
	logger zerolog.Logger
}

// NewEventLog creates an events.Publisher backed by store
func NewEventLog(store Store) *EventLog {
	return &EventLog{store: store, logger: log.WithComponent("history")}
}

// Publish saves the event. A write failure is logged and dropped.
func (l *EventLog) Publish(event *events.Event) {
	if err := l.store.SaveEvent(event); err != nil {
		l.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Failed to record event")
	}
}

// Drain records every event received on sub until it is closed
func (l *EventLog) Drain(sub events.Subscriber) {
	for event := range sub {
		l.Publish(event)
	}
}
