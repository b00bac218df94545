package handlers

import (
	"sync"

	"go.uber.org/zap"

	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

// HandlerManager routes parsed stream events to the handler registered for
// their event type. Events with no registered handler are dropped silently;
// skipped frames never reach routing.
type HandlerManager struct {
	handlers map[string]EventHandler
	log      *zap.Logger
	mu       sync.RWMutex
}

// NewHandlerManager creates a new HandlerManager.
func NewHandlerManager(log *zap.Logger) *HandlerManager {
	return &HandlerManager{
		handlers: make(map[string]EventHandler),
		log:      log.Named("handlers"),
	}
}

// Register registers a handler for its event type.
func (hm *HandlerManager) Register(handler EventHandler) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.handlers[handler.EventType()] = handler
	hm.log.Info("registered handler", zap.String("type", handler.EventType()))
}

// Route dispatches one event to its handler. Used as the connection
// manager's event sink.
func (hm *HandlerManager) Route(event ws.Event) {
	if event.EventType() == "skipped" {
		return
	}

	hm.mu.RLock()
	handler, exists := hm.handlers[event.EventType()]
	hm.mu.RUnlock()
	if !exists {
		return
	}

	if err := handler.Handle(event); err != nil {
		hm.log.Warn("handler error",
			zap.String("type", event.EventType()), zap.Error(err))
	}
}
