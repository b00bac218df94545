package aggregator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
)

// Aggregator rolls finalized short-period candles up into longer target
// intervals. It keeps one work-in-progress candle per (symbol, target) and
// emits a target candle only when its period completes; partial periods are
// provisional and never leave the aggregator.
//
// Not goroutine-safe: each instance is owned by one partition worker, which
// also gives it per-symbol source order for free.
type Aggregator struct {
	source  string
	targets []string
	log     *zap.Logger

	wip map[wipKey]*types.Candle
}

type wipKey struct {
	symbol string
	target string
}

// New creates an aggregator from source-interval candles (e.g. "5m") into
// targets (e.g. 15m, 1h, 4h). Every target must be a whole multiple of the
// source interval.
func New(source string, targets []string, log *zap.Logger) (*Aggregator, error) {
	srcMs, ok := types.IntervalMs(source)
	if !ok {
		return nil, fmt.Errorf("aggregator: unknown source interval %q", source)
	}
	for _, t := range targets {
		tMs, ok := types.IntervalMs(t)
		if !ok {
			return nil, fmt.Errorf("aggregator: unknown target interval %q", t)
		}
		if tMs%srcMs != 0 {
			return nil, fmt.Errorf("aggregator: target %s not a multiple of source %s", t, source)
		}
	}
	return &Aggregator{
		source:  source,
		targets: targets,
		log:     log.Named("aggregator"),
		wip:     make(map[wipKey]*types.Candle),
	}, nil
}

// Process consumes one finalized source candle and returns zero or more
// finalized target-interval candles in ascending open_time. A source candle
// landing in a new period finalizes the previous period's WIP first; a
// source candle whose close_time reaches the period boundary finalizes
// immediately.
func (a *Aggregator) Process(c types.Candle) []types.Candle {
	if c.Interval != a.source {
		a.log.Warn("ignoring candle with wrong source interval",
			zap.String("symbol", c.Symbol), zap.String("interval", c.Interval))
		return nil
	}

	var out []types.Candle
	for _, target := range a.targets {
		out = append(out, a.roll(c, target)...)
	}
	return out
}

func (a *Aggregator) roll(c types.Candle, target string) []types.Candle {
	periodMs, _ := types.IntervalMs(target)
	periodOpen := c.OpenTime - c.OpenTime%periodMs
	key := wipKey{symbol: c.Symbol, target: target}

	var out []types.Candle

	wip := a.wip[key]
	if wip != nil && wip.OpenTime != periodOpen {
		// The source moved into a new period without the old one reaching
		// its boundary (gap in the feed). The old WIP is as complete as it
		// will ever get.
		out = append(out, *wip)
		delete(a.wip, key)
		wip = nil
	}

	if wip == nil {
		wip = &types.Candle{
			Symbol:    c.Symbol,
			Interval:  target,
			OpenTime:  periodOpen,
			CloseTime: c.CloseTime,
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
		}
		a.wip[key] = wip
	} else {
		if c.High > wip.High {
			wip.High = c.High
		}
		if c.Low < wip.Low {
			wip.Low = c.Low
		}
		wip.Close = c.Close
		wip.Volume += c.Volume
		wip.CloseTime = c.CloseTime
	}

	// The source candle's close_time is inclusive; +1 reaches the boundary
	// exactly when this candle completes the target period.
	if c.CloseTime+1 >= periodOpen+periodMs {
		wip.CloseTime = periodOpen + periodMs - 1
		out = append(out, *wip)
		delete(a.wip, key)
	}

	return out
}

// Reset clears all work-in-progress state. Partial periods are provisional
// and are discarded, not emitted.
func (a *Aggregator) Reset() {
	a.wip = make(map[wipKey]*types.Candle)
}
