package patterns

import (
	"fmt"
	"sort"

	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/database/types"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/helpers"
	"github.com/x-player-001/TRADING-MASTER-BACK-sub000/indicators"
)

const (
	// LevelSupport / LevelResistance classify a level against the current
	// close at build time.
	LevelSupport    = "SUPPORT"
	LevelResistance = "RESISTANCE"

	levelWindow = 200 // candles the pivot set is drawn from
)

// Level is one clustered support/resistance price zone.
type Level struct {
	Price    float64
	Type     string
	Touches  int
	Strength float64
	LastSeq  int64 // most recent pivot sequence in the cluster
}

// LevelConfig tunes level construction and the proximity classifier.
type LevelConfig struct {
	ClusterPct     float64 // pivots within this % of a cluster's mean merge
	MinTouches     int     // clusters with fewer pivots are discarded
	MaxLevels      int     // strongest levels kept after ranking
	TouchedPct     float64 // |dist| below this -> TOUCHED
	ApproachingPct float64 // |dist| below this -> APPROACHING
}

// DefaultLevelConfig mirrors the production defaults.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		ClusterPct:     0.5,
		MinTouches:     2,
		MaxLevels:      15,
		TouchedPct:     0.1,
		ApproachingPct: 0.5,
	}
}

// BuildLevels clusters the engine's confirmed pivots into ranked levels.
// Pivots within cfg.ClusterPct of a cluster's mean merge into it; clusters
// with fewer than cfg.MinTouches pivots are discarded. Strength is the
// touch count plus a recency bonus, and only the strongest cfg.MaxLevels
// levels survive.
func BuildLevels(snap indicators.Snapshot, cfg LevelConfig) []Level {
	minSeq := snap.CandleCount - levelWindow
	var pivots []indicators.SwingPoint
	for _, p := range snap.SwingHighs {
		if p.Seq >= minSeq {
			pivots = append(pivots, p)
		}
	}
	for _, p := range snap.SwingLows {
		if p.Seq >= minSeq {
			pivots = append(pivots, p)
		}
	}
	if len(pivots) == 0 {
		return nil
	}
	sort.Slice(pivots, func(i, j int) bool { return pivots[i].Price < pivots[j].Price })

	type cluster struct {
		sum     float64
		touches int
		lastSeq int64
	}
	var clusters []cluster
	for _, p := range pivots {
		merged := false
		if n := len(clusters); n > 0 {
			mean := clusters[n-1].sum / float64(clusters[n-1].touches)
			if mean > 0 && (p.Price-mean)/mean*100 <= cfg.ClusterPct {
				clusters[n-1].sum += p.Price
				clusters[n-1].touches++
				if p.Seq > clusters[n-1].lastSeq {
					clusters[n-1].lastSeq = p.Seq
				}
				merged = true
			}
		}
		if !merged {
			clusters = append(clusters, cluster{sum: p.Price, touches: 1, lastSeq: p.Seq})
		}
	}

	levels := make([]Level, 0, len(clusters))
	for _, cl := range clusters {
		if cl.touches < cfg.MinTouches {
			continue
		}
		age := snap.CandleCount - cl.lastSeq
		bonus := 0.0
		switch {
		case age <= 20:
			bonus = 2
		case age <= 50:
			bonus = 1
		}
		lv := Level{
			Price:    cl.sum / float64(cl.touches),
			Touches:  cl.touches,
			Strength: float64(cl.touches) + bonus,
			LastSeq:  cl.lastSeq,
		}
		if lv.Price <= snap.LastClose {
			lv.Type = LevelSupport
		} else {
			lv.Type = LevelResistance
		}
		levels = append(levels, lv)
	}

	sort.Slice(levels, func(i, j int) bool { return levels[i].Strength > levels[j].Strength })
	if len(levels) > cfg.MaxLevels {
		levels = levels[:cfg.MaxLevels]
	}
	return levels
}

// NearestLevel returns the level closest to price by absolute percent
// distance.
func NearestLevel(levels []Level, price float64) (Level, bool) {
	if price <= 0 || len(levels) == 0 {
		return Level{}, false
	}
	best := -1
	bestDist := 0.0
	for i, lv := range levels {
		d := (price - lv.Price) / lv.Price * 100
		if d < 0 {
			d = -d
		}
		if best == -1 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return levels[best], true
}

// CheckProximity classifies the candle close against the nearest level.
// It returns a TOUCHED or APPROACHING hit, or nothing when price sits
// outside the approaching band.
func CheckProximity(c types.Candle, levels []Level, cfg LevelConfig) (*Hit, bool) {
	lv, ok := NearestLevel(levels, c.Close)
	if !ok {
		return nil, false
	}

	dist := (c.Close - lv.Price) / lv.Price * 100
	abs := dist
	if abs < 0 {
		abs = -abs
	}

	var alertType string
	switch {
	case abs <= cfg.TouchedPct:
		alertType = AlertTouched
	case abs <= cfg.ApproachingPct:
		alertType = AlertApproaching
	default:
		return nil, false
	}

	return &Hit{
		Symbol:        c.Symbol,
		Interval:      c.Interval,
		Type:          alertType,
		KlineTime:     c.OpenTime,
		Price:         c.Close,
		LevelType:     lv.Type,
		LevelPrice:    lv.Price,
		LevelStrength: lv.Strength,
		DistancePct:   dist,
		Description: fmt.Sprintf("%s %s at %s (%s%%)",
			alertType, lv.Type, helpers.FormatPrice(lv.Price), helpers.FormatFloat(abs, 3)),
	}, true
}
