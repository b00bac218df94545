package handlers

import (
	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

// EventHandler is the interface every stream event handler implements.
type EventHandler interface {
	// Handle processes one parsed event. Handlers never return data
	// problems as errors; they log, count and drop.
	Handle(event ws.Event) error

	// EventType returns the event type this handler consumes.
	EventType() string
}
