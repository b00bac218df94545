package patterns

// Alert types emitted by the detectors.
const (
	AlertTouched       = "TOUCHED"
	AlertApproaching   = "APPROACHING"
	AlertSqueeze       = "SQUEEZE"
	AlertBullishStreak = "BULLISH_STREAK"
	AlertPullbackReady = "PULLBACK_READY"
	AlertVolumeSurge   = "VOLUME_SURGE"
	AlertHammer        = "HAMMER"
	AlertPerfectHammer = "PERFECT_HAMMER"
	AlertDoji          = "DOJI"
)

// Hit is one detector match for one candle. Detectors return (*Hit, bool);
// callers never see errors from them. A Hit carries only the fields its
// alert type fills; the rest stay zero.
type Hit struct {
	Symbol    string
	Interval  string
	Type      string
	KlineTime int64 // candle open_time
	Price     float64

	Description string

	// Volume surge
	Volume         float64
	BaselineVolume float64
	VolumeMultiple float64
	TierLevel      float64
	Important      bool
	Provisional    bool

	// S/R proximity
	LevelType     string
	LevelPrice    float64
	LevelStrength float64
	DistancePct   float64
	Gain24hPct    float64

	// Squeeze
	SqueezePct float64

	// Pullback
	RetracePct      float64
	VolumeShrinkPct float64

	// Breakout predictor context (nil when not computed)
	Breakout *Prediction
}
