// Package events provides in-process publication of escrow lifecycle events
package events

import (
	"context"
	"sync"

	"github.com/agencyos/escrow/internal/logger"
)

// EventType represents the type of escrow event
type EventType string

const (
	// EventPaymentSucceeded is emitted when a funding capture is confirmed
	EventPaymentSucceeded EventType = "payment_succeeded"
	// EventPayoutCompleted is emitted when escrowed funds reach the agency
	EventPayoutCompleted EventType = "payout_completed"
	// EventJobRefunded is emitted when captured funds are returned to the business
	EventJobRefunded EventType = "job_refunded"
	// EventJobCancelled is emitted when a job is cancelled before funding
	EventJobCancelled EventType = "job_cancelled"
	// EventChannelSize is the buffer size for the event channel
	EventChannelSize = 100
)

// Event represents one escrow lifecycle event
type Event struct {
	Type       EventType // The type of event
	JobID      uint      // The job the event belongs to
	ActorID    uint      // Who triggered it
	ExternalID string    // Processor-side id (intent, transfer, refund) when applicable
	Amount     string    // Formatted major-unit amount when money moved
	Currency   string    // ISO currency code when money moved
}

// Handler is a function that handles an event
type Handler func(context.Context, Event) error

var (
	// handlers is a map of event types to their handlers
	handlers = make(map[EventType][]Handler)
	// handlersMu is a mutex for the handlers map
	handlersMu sync.RWMutex
	// eventChan is a channel for events
	eventChan = make(chan Event, EventChannelSize)
)

// Subscribe registers a handler for a specific event type
func Subscribe(eventType EventType, handler Handler) {
	handlersMu.Lock()
	defer handlersMu.Unlock()
	handlers[eventType] = append(handlers[eventType], handler)
	logger.Debugf("Registered handler for event type: %s", eventType)
}

// Publish sends an event to be processed. Publication is fire-and-forget:
// ledger entries, not events, are the durable record.
func Publish(event Event) {
	select {
	case eventChan <- event:
		logger.Debugf("Published event: %s (job %d)", event.Type, event.JobID)
	default:
		logger.Warnf("Event channel full, dropping event %s for job %d", event.Type, event.JobID)
	}
}

// Start starts the event processing loop
func Start(ctx context.Context) {
	go processEvents(ctx)
	logger.Info("Started event processing loop")
}

// processEvents handles events in the background
func processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping event processing loop")
			return
		case event := <-eventChan:
			handlersMu.RLock()
			eventHandlers := handlers[event.Type]
			handlersMu.RUnlock()

			for _, handler := range eventHandlers {
				go func(h Handler, e Event) {
					if err := h(ctx, e); err != nil {
						logger.Errorf("Failed to handle event %s for job %d: %v", e.Type, e.JobID, err)
					}
				}(handler, event)
			}
		}
	}
}
