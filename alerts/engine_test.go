package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/models_pkg"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/logger"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/patterns"
)

type fakeStore struct {
	volume    []*models.VolumeAlert
	sr        []*models.SRAlert
	duplicate bool
}

func (s *fakeStore) SaveVolumeAlert(a *models.VolumeAlert) (bool, error) {
	if s.duplicate {
		return false, nil
	}
	s.volume = append(s.volume, a)
	return true, nil
}

func (s *fakeStore) SaveSRAlert(a *models.SRAlert) (bool, error) {
	if s.duplicate {
		return false, nil
	}
	s.sr = append(s.sr, a)
	return true, nil
}

type fakeBroker struct {
	events []string
}

func (b *fakeBroker) Broadcast(event string, payload interface{}) {
	b.events = append(b.events, event)
}

func surgeHit(symbol string, klineTime int64) *patterns.Hit {
	return &patterns.Hit{
		Symbol:         symbol,
		Interval:       "5m",
		Type:           patterns.AlertVolumeSurge,
		KlineTime:      klineTime,
		Price:          100,
		VolumeMultiple: 12,
		TierLevel:      10,
	}
}

func newTestEngine(store AlertStore, broker Publisher, collector *Collector) *Engine {
	return NewEngine(30*time.Minute, store, broker, collector, logger.NewNop(), nil)
}

func TestEngineEmitsAndPersists(t *testing.T) {
	store := &fakeStore{}
	broker := &fakeBroker{}
	e := newTestEngine(store, broker, nil)

	emitted, err := e.Process(surgeHit("BTCUSDT", 1000))
	require.NoError(t, err)
	assert.True(t, emitted)
	require.Len(t, store.volume, 1)
	assert.Equal(t, "VOLUME_SURGE", store.volume[0].AlertType)
	assert.Equal(t, []string{"ALERT"}, broker.events)
}

func TestEngineCooldownSuppressesRepeat(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, nil, nil)

	base := time.Now()
	e.now = func() time.Time { return base }
	emitted, _ := e.Process(surgeHit("BTCUSDT", 1000))
	require.True(t, emitted)

	// 10 minutes later, inside the 30m cooldown.
	e.now = func() time.Time { return base.Add(10 * time.Minute) }
	emitted, _ = e.Process(surgeHit("BTCUSDT", 2000))
	assert.False(t, emitted)
	assert.Len(t, store.volume, 1)

	// Past the cooldown.
	e.now = func() time.Time { return base.Add(31 * time.Minute) }
	emitted, _ = e.Process(surgeHit("BTCUSDT", 3000))
	assert.True(t, emitted)

	// A different symbol is never in this key's cooldown.
	emitted, _ = e.Process(surgeHit("ETHUSDT", 2000))
	assert.True(t, emitted)
}

func TestEngineSqueezeTighteningBypassesCooldown(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, nil, nil)

	base := time.Now()
	e.now = func() time.Time { return base }

	squeeze := func(pct float64, klineTime int64) *patterns.Hit {
		return &patterns.Hit{
			Symbol:     "BTCUSDT",
			Interval:   "15m",
			Type:       patterns.AlertSqueeze,
			KlineTime:  klineTime,
			Price:      100,
			SqueezePct: pct,
		}
	}

	emitted, _ := e.Process(squeeze(0.02, 1000))
	require.True(t, emitted)

	e.now = func() time.Time { return base.Add(5 * time.Minute) }

	// Wider squeeze inside cooldown: suppressed.
	emitted, _ = e.Process(squeeze(0.025, 2000))
	assert.False(t, emitted)

	// Tighter squeeze inside cooldown: new information, emitted.
	emitted, _ = e.Process(squeeze(0.01, 3000))
	assert.True(t, emitted)
	assert.Len(t, store.sr, 2)
}

func TestEnginePerLevelCooldownKeys(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(store, nil, nil)

	touched := func(level float64) *patterns.Hit {
		return &patterns.Hit{
			Symbol:     "BTCUSDT",
			Interval:   "15m",
			Type:       patterns.AlertTouched,
			KlineTime:  1000,
			Price:      level,
			LevelType:  patterns.LevelResistance,
			LevelPrice: level,
		}
	}

	emitted, _ := e.Process(touched(110))
	require.True(t, emitted)
	emitted, _ = e.Process(touched(120))
	assert.True(t, emitted, "distinct level, distinct cooldown key")
	emitted, _ = e.Process(touched(110))
	assert.False(t, emitted, "same level inside cooldown")
}

func TestEngineDuplicateRowSuppressed(t *testing.T) {
	store := &fakeStore{duplicate: true}
	broker := &fakeBroker{}
	e := newTestEngine(store, broker, nil)

	emitted, err := e.Process(surgeHit("BTCUSDT", 1000))
	require.NoError(t, err)
	assert.False(t, emitted)
	assert.Empty(t, broker.events, "duplicates never reach the broker")
}

func TestSRAlertRowCarriesBreakoutScores(t *testing.T) {
	h := &patterns.Hit{
		Symbol:     "BTCUSDT",
		Interval:   "15m",
		Type:       patterns.AlertTouched,
		KlineTime:  1000,
		Price:      109.9,
		LevelType:  patterns.LevelResistance,
		LevelPrice: 110,
		Gain24hPct: 12.5,
		Breakout: &patterns.Prediction{
			TotalScore:      72,
			VolatilityScore: 80,
			Direction:       patterns.DirectionUp,
		},
	}

	row := srAlertRow(h)
	require.NotNil(t, row.BreakoutScore)
	assert.Equal(t, 72.0, *row.BreakoutScore)
	assert.Equal(t, "UP", *row.PredictedDirection)
	assert.Equal(t, 12.5, *row.Gain24hPct)
	assert.Equal(t, 110.0, *row.LevelPrice)
}

func TestSRAlertRowLevelKey(t *testing.T) {
	touched := &patterns.Hit{
		Symbol:     "BTCUSDT",
		Interval:   "15m",
		Type:       patterns.AlertTouched,
		KlineTime:  1000,
		Price:      109.9,
		LevelType:  patterns.LevelResistance,
		LevelPrice: 110,
	}
	assert.Equal(t, "110", srAlertRow(touched).LevelKey)

	squeeze := &patterns.Hit{
		Symbol:     "BTCUSDT",
		Interval:   "15m",
		Type:       patterns.AlertSqueeze,
		KlineTime:  1000,
		Price:      100,
		SqueezePct: 0.02,
	}
	row := srAlertRow(squeeze)
	assert.Equal(t, "-", row.LevelKey,
		"level-less rows share one non-null key so the unique index can suppress duplicates")
	assert.Nil(t, row.LevelPrice)
}
