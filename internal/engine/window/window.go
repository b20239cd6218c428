package window

import (
	"context"
	"time"

	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/logger"
)

// Clamp limits for the computed window.
const (
	MinWindow = 10 * time.Second
	MaxWindow = 300 * time.Second
)

// Time-of-day base windows in seconds. Night favors fast response,
// day is the normal baseline.
const (
	nightWindow   = 30
	morningWindow = 45
	dayWindow     = 60
	eveningWindow = 50
)

// Per-type multipliers. PIR motion gets a longer window because it is
// the noisiest type; camera person detections are high confidence and
// get a shorter one.
const (
	contactMultiplier = 1.0
	radarMultiplier   = 1.1
	motionMultiplier  = 1.5
	personMultiplier  = 0.8
)

// Calculator computes adaptive correlation windows from the time of day,
// the opening sensor type and an optional per-zone multiplier. A zero
// Calculator is usable; Fixed disables adaptation.
type Calculator struct {
	// Fixed, when non-zero, is returned for every request unchanged.
	Fixed time.Duration
	// Now overrides the clock, for tests. Nil means time.Now.
	Now func() time.Time
}

// Window returns the correlation window to open for an event of the given
// type. zoneMultiplier scales the result per zone priority (1.0 when the
// zone has no override); the result is clamped to [MinWindow, MaxWindow].
func (c *Calculator) Window(typ event.Type, zoneMultiplier float64) time.Duration {
	if c.Fixed > 0 {
		return c.Fixed
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	base := baseForHour(now().Hour())
	w := float64(base) * typeMultiplier(typ)

	if zoneMultiplier > 0 {
		w *= zoneMultiplier
	}

	d := time.Duration(int(w)) * time.Second
	switch {
	case d < MinWindow:
		d = MinWindow
	case d > MaxWindow:
		d = MaxWindow
	}

	logger.DebugKV(context.Background(), "adaptive correlation window",
		"base_seconds", base,
		"sensor_type", string(typ),
		"zone_multiplier", zoneMultiplier,
		"window", d)

	return d
}

// baseForHour maps the hour of day to the base window in seconds.
// Night runs 22:00-06:00, morning 06:00-09:00, day 09:00-18:00,
// evening 18:00-22:00.
func baseForHour(hour int) int {
	switch {
	case hour >= 6 && hour < 9:
		return morningWindow
	case hour >= 9 && hour < 18:
		return dayWindow
	case hour >= 18 && hour < 22:
		return eveningWindow
	default:
		return nightWindow
	}
}

// typeMultiplier returns the per-type window multiplier.
func typeMultiplier(typ event.Type) float64 {
	switch typ {
	case event.TypeContact:
		return contactMultiplier
	case event.TypeRadar, event.TypeCombinedRadar:
		return radarMultiplier
	case event.TypeMotion:
		return motionMultiplier
	case event.TypeCameraPerson:
		return personMultiplier
	default:
		return 1.0
	}
}
