package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
)

// ErrMaxReconnect is surfaced to the supervisor when the reconnect budget
// is exhausted. The process treats it as terminal for the stream subsystem.
var ErrMaxReconnect = errors.New("websocket: max reconnect attempts exceeded")

const (
	defaultReconnectDelay = 5 * time.Second
	defaultMaxReconnects  = 10

	// healthStallLimit is how long without any frame before the health
	// monitor forces a reconnect.
	healthStallLimit = 3 * PingInterval
)

// EventSink receives every parsed event from the read loop.
type EventSink func(Event)

// ConnectionManager owns the WebSocket connection lifecycle: connect,
// subscribe, read loop, health monitoring and the reconnect state machine.
// The stream list recorded at subscribe time is replayed on reconnect.
type ConnectionManager struct {
	wsURL   string
	log     *zap.Logger
	metrics *metrics.Metrics
	sink    EventSink

	reconnectDelay time.Duration
	maxReconnects  int

	mu          sync.Mutex
	client      *Client
	streams     []string
	lastMsgTime time.Time
}

// NewConnectionManager creates a new ConnectionManager.
func NewConnectionManager(wsURL string, sink EventSink, log *zap.Logger, m *metrics.Metrics) *ConnectionManager {
	return &ConnectionManager{
		wsURL:          wsURL,
		log:            log.Named("ws-manager"),
		metrics:        m,
		sink:           sink,
		reconnectDelay: defaultReconnectDelay,
		maxReconnects:  defaultMaxReconnects,
		lastMsgTime:    time.Now(),
	}
}

// Connect establishes the initial connection and subscribes to the
// recorded stream list.
func (cm *ConnectionManager) Connect() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.connectLocked()
}

func (cm *ConnectionManager) connectLocked() error {
	client := NewClient(cm.wsURL, cm.log)
	if err := client.Connect(); err != nil {
		return fmt.Errorf("market stream connection failed: %w", err)
	}
	if err := client.Subscribe(cm.streams); err != nil {
		client.Close()
		return err
	}
	client.StartPing(PingInterval)
	cm.client = client
	cm.lastMsgTime = time.Now()
	return nil
}

// SetStreams records the stream list used for subscribe and resubscribe.
// When already connected, the delta is applied live.
func (cm *ConnectionManager) SetStreams(streams []string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	added, removed := diffStreams(cm.streams, streams)
	cm.streams = append([]string(nil), streams...)

	if cm.client == nil {
		return nil
	}
	if err := cm.client.Unsubscribe(removed); err != nil {
		return err
	}
	return cm.client.Subscribe(added)
}

func diffStreams(old, new []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	newSet := make(map[string]bool, len(new))
	for _, s := range new {
		newSet[s] = true
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	for _, s := range old {
		if !newSet[s] {
			removed = append(removed, s)
		}
	}
	return added, removed
}

// Run is the read loop. It parses and dispatches frames until ctx is
// cancelled, reconnecting on socket errors. Returns ErrMaxReconnect when
// the reconnect budget is exhausted.
func (cm *ConnectionManager) Run(ctx context.Context) error {
	for {
		cm.mu.Lock()
		client := cm.client
		cm.mu.Unlock()
		if client == nil {
			return fmt.Errorf("websocket: Run before Connect")
		}

		data, err := client.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			cm.log.Warn("read failed, reconnecting", zap.Error(err))
			if err := cm.reconnect(ctx); err != nil {
				return err
			}
			continue
		}

		cm.mu.Lock()
		cm.lastMsgTime = time.Now()
		cm.mu.Unlock()

		events, err := ParseFrame(data)
		if err != nil {
			cm.metrics.StreamParseErrors.Inc()
			cm.log.Warn("dropped unparseable frame", zap.Error(err))
			continue
		}
		for _, ev := range events {
			cm.metrics.StreamEventsTotal.WithLabelValues(ev.EventType()).Inc()
			cm.sink(ev)
		}
	}
}

// reconnect retries the connection up to maxReconnects times with a fixed
// delay, resubscribing the recorded stream list on success.
func (cm *ConnectionManager) reconnect(ctx context.Context) error {
	cm.mu.Lock()
	if cm.client != nil {
		cm.client.Close()
		cm.client = nil
	}
	cm.mu.Unlock()

	for attempt := 1; attempt <= cm.maxReconnects; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cm.reconnectDelay):
		}

		cm.metrics.StreamReconnects.Inc()
		cm.log.Info("reconnecting",
			zap.Int("attempt", attempt), zap.Int("max", cm.maxReconnects))

		cm.mu.Lock()
		err := cm.connectLocked()
		cm.mu.Unlock()
		if err == nil {
			cm.log.Info("reconnected", zap.Int("attempt", attempt))
			return nil
		}
		cm.log.Warn("reconnect attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return ErrMaxReconnect
}

// RunHealthMonitor forces a reconnect when no frame has arrived for
// healthStallLimit. A stalled-but-open TCP connection otherwise reads
// forever.
func (cm *ConnectionManager) RunHealthMonitor(ctx context.Context) {
	ticker := time.NewTicker(PingInterval)
	defer ticker.Stop()

	cm.log.Info("health monitor started")
	for {
		select {
		case <-ctx.Done():
			cm.log.Info("health monitor stopped")
			return
		case <-ticker.C:
			cm.mu.Lock()
			stalled := time.Since(cm.lastMsgTime) > healthStallLimit
			client := cm.client
			cm.mu.Unlock()

			if stalled && client != nil {
				cm.log.Warn("no frames received, forcing reconnect",
					zap.Duration("stall", healthStallLimit))
				// Closing the socket makes the read loop run the
				// reconnect state machine.
				client.Close()
			}
		}
	}
}

// Connected reports whether a live connection currently exists.
func (cm *ConnectionManager) Connected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.client != nil
}

// Close closes the connection.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.client != nil {
		err := cm.client.Close()
		cm.client = nil
		return err
	}
	return nil
}
