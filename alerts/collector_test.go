package alerts

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/patterns"
)

type fakeBatchStore struct {
	mu      sync.Mutex
	batches [][]*models.BreakoutSignal
	err     error
}

func (s *fakeBatchStore) SaveBreakoutSignals(batch []*models.BreakoutSignal) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	s.batches = append(s.batches, batch)
	s.mu.Unlock()
	return nil
}

func (s *fakeBatchStore) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func hammerHit(symbol string, klineTime int64) *patterns.Hit {
	return &patterns.Hit{
		Symbol:    symbol,
		Interval:  "5m",
		Type:      patterns.AlertPerfectHammer,
		KlineTime: klineTime,
		Price:     100,
		Breakout:  &patterns.Prediction{TotalScore: 65, Direction: patterns.DirectionUp},
	}
}

func newTestCollector(store BatchStore, broker Publisher) *Collector {
	return NewCollector(time.Hour, []string{patterns.AlertPerfectHammer}, store, broker, logger.NewNop(), nil)
}

func TestCollectorBatchesSharedID(t *testing.T) {
	store := &fakeBatchStore{}
	broker := &fakeBroker{}
	c := newTestCollector(store, broker)

	c.Add(hammerHit("BTCUSDT", 1000))
	c.Add(hammerHit("ETHUSDT", 1000))
	c.Add(hammerHit("SOLUSDT", 1000))
	assert.Equal(t, 3, c.PendingCount())

	c.Flush()

	require.Len(t, store.batches, 1)
	batch := store.batches[0]
	require.Len(t, batch, 3)

	id := batch[0].BatchID
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	for _, sig := range batch {
		assert.Equal(t, id, sig.BatchID, "flush members share one batch ID")
	}
	assert.Equal(t, []string{"BATCH"}, broker.events)
	assert.Equal(t, 0, c.PendingCount())
}

func TestCollectorDedupsSameCandle(t *testing.T) {
	store := &fakeBatchStore{}
	c := newTestCollector(store, nil)

	c.Add(hammerHit("BTCUSDT", 1000))
	c.Add(hammerHit("BTCUSDT", 1000)) // same symbol/interval/type/candle
	assert.Equal(t, 1, c.PendingCount())

	c.Add(hammerHit("BTCUSDT", 2000))
	assert.Equal(t, 2, c.PendingCount())
}

func TestCollectorIgnoresUncollectedTypes(t *testing.T) {
	c := newTestCollector(&fakeBatchStore{}, nil)

	c.Add(&patterns.Hit{Symbol: "BTCUSDT", Interval: "5m", Type: patterns.AlertDoji, KlineTime: 1000})
	assert.Equal(t, 0, c.PendingCount())
}

func TestCollectorFlushEmptyIsNoop(t *testing.T) {
	store := &fakeBatchStore{}
	broker := &fakeBroker{}
	c := newTestCollector(store, broker)

	c.Flush()
	assert.Empty(t, store.batches)
	assert.Empty(t, broker.events)
}

func TestCollectorTimerFlushes(t *testing.T) {
	store := &fakeBatchStore{}
	c := NewCollector(20*time.Millisecond, []string{patterns.AlertPerfectHammer}, store, nil, logger.NewNop(), nil)

	c.Add(hammerHit("BTCUSDT", 1000))

	require.Eventually(t, func() bool {
		return c.PendingCount() == 0 && store.batchCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCollectorBatchesPerKlineTime(t *testing.T) {
	store := &fakeBatchStore{}
	c := newTestCollector(store, nil)

	c.Add(hammerHit("BTCUSDT", 1000))
	c.Add(hammerHit("ETHUSDT", 2000))

	c.Flush()

	require.Len(t, store.batches, 2)
	require.Len(t, store.batches[0], 1)
	require.Len(t, store.batches[1], 1)
	assert.NotEqual(t, store.batches[0][0].BatchID, store.batches[1][0].BatchID,
		"each candle close flushes as its own wave")
}

func TestCollectorLateCandleOpensOwnWindow(t *testing.T) {
	store := &fakeBatchStore{}
	c := NewCollector(40*time.Millisecond, []string{patterns.AlertPerfectHammer}, store, nil, logger.NewNop(), nil)

	c.Add(hammerHit("BTCUSDT", 1000))
	time.Sleep(25 * time.Millisecond)
	// A signal for the next candle must not extend the first window.
	c.Add(hammerHit("ETHUSDT", 2000))

	require.Eventually(t, func() bool { return store.batchCount() == 1 },
		time.Second, 5*time.Millisecond)
	store.mu.Lock()
	first := store.batches[0]
	store.mu.Unlock()
	require.Len(t, first, 1)
	assert.Equal(t, "BTCUSDT", first[0].Symbol)
	assert.Equal(t, 1, c.PendingCount(), "second window still open")

	require.Eventually(t, func() bool { return store.batchCount() == 2 },
		time.Second, 5*time.Millisecond)
	store.mu.Lock()
	second := store.batches[1]
	store.mu.Unlock()
	require.Len(t, second, 1)
	assert.Equal(t, "ETHUSDT", second[0].Symbol)
	assert.NotEqual(t, first[0].BatchID, second[0].BatchID)
}
