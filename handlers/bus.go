package handlers

import (
	"context"
	"hash/fnv"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/metrics"
	ws "github.com/x-player-001/TRADING-MASTER-BACK-sub000/websocket"
)

const defaultChannelCap = 1024

// PublishPolicy controls what happens when a partition channel is full.
type PublishPolicy int

const (
	// PolicyBlock waits for channel space. Used for final klines, which
	// must not be lost.
	PolicyBlock PublishPolicy = iota
	// PolicyDropOldest evicts the oldest queued event to make room. Used
	// for ticker and mark-price updates, where only the latest matters.
	PolicyDropOldest
)

// PartitionedBus fans events out to W worker goroutines, partitioned by
// symbol hash, so events for the same symbol are always processed by the
// same worker in publish order. Cross-symbol ordering is not guaranteed.
type PartitionedBus struct {
	name    string
	chans   []chan ws.Event
	process func(ws.Event)
	log     *zap.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewPartitionedBus creates a bus with workers goroutines (GOMAXPROCS when
// workers <= 0). process runs on the owning partition's goroutine; any
// per-symbol state it touches needs no locking.
func NewPartitionedBus(name string, workers int, process func(ws.Event), log *zap.Logger, m *metrics.Metrics) *PartitionedBus {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	chans := make([]chan ws.Event, workers)
	for i := range chans {
		chans[i] = make(chan ws.Event, defaultChannelCap)
	}
	return &PartitionedBus{
		name:    name,
		chans:   chans,
		process: process,
		log:     log.Named("bus-" + name),
		metrics: m,
	}
}

// Start launches the partition workers. They drain their channels until ctx
// is cancelled, then finish whatever is still queued.
func (b *PartitionedBus) Start(ctx context.Context) {
	for i := range b.chans {
		b.wg.Add(1)
		go func(ch chan ws.Event) {
			defer b.wg.Done()
			for {
				select {
				case ev := <-ch:
					b.process(ev)
				case <-ctx.Done():
					for {
						select {
						case ev := <-ch:
							b.process(ev)
						default:
							return
						}
					}
				}
			}
		}(b.chans[i])
	}
}

// Wait blocks until all partition workers have drained and exited.
func (b *PartitionedBus) Wait() {
	b.wg.Wait()
}

func (b *PartitionedBus) partition(symbol string) chan ws.Event {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return b.chans[h.Sum32()%uint32(len(b.chans))]
}

// Publish routes an event to its symbol's partition. With PolicyBlock the
// call waits for space (or ctx cancellation); with PolicyDropOldest a full
// channel evicts its oldest entry first.
func (b *PartitionedBus) Publish(ctx context.Context, symbol string, ev ws.Event, policy PublishPolicy) {
	ch := b.partition(symbol)

	if policy == PolicyBlock {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
		return
	}

	select {
	case ch <- ev:
		return
	default:
	}
	// Full: evict the oldest queued event, then try once more.
	select {
	case <-ch:
		b.metrics.StreamDroppedTotal.WithLabelValues(b.name).Inc()
	default:
	}
	select {
	case ch <- ev:
	default:
		b.metrics.StreamDroppedTotal.WithLabelValues(b.name).Inc()
	}
}
