package monitor

import (
	"context"
	"time"

	"github.com/dverna/alarm-guardian/internal/logger"
)

// Battery monitoring defaults.
const (
	// DefaultBatteryThreshold is the percentage below which a sensor is
	// reported as low battery.
	DefaultBatteryThreshold = 15
	// DefaultBatteryAlertInterval rate-limits repeated alerts per sensor.
	DefaultBatteryAlertInterval = 24 * time.Hour
)

// BatteryReading is one sensor's reported battery level.
type BatteryReading struct {
	// SensorID identifies the sensor.
	SensorID string
	// Name is the sensor display name.
	Name string
	// Level is the battery percentage, 0-100. Negative means the sensor is
	// mains powered and exempt from battery checks.
	Level int
}

// BatteryAlert is emitted when a sensor drops below the threshold and its
// rate-limit window has passed.
type BatteryAlert struct {
	// SensorID identifies the sensor.
	SensorID string
	// Name is the sensor display name.
	Name string
	// Level is the battery percentage at alert time.
	Level int
	// At is when the alert was raised.
	At time.Time
}

// BatteryMonitor tracks per-sensor battery levels and raises rate-limited
// low-battery alerts. It runs independently of alarm sessions: alerts fire
// whether the system is armed or not.
//
// Not safe for concurrent use; readings arrive on the service stream.
type BatteryMonitor struct {
	// threshold is the low-battery percentage.
	threshold int
	// interval is the per-sensor alert rate limit.
	interval time.Duration
	// lastAlert maps sensor id to the last alert time.
	lastAlert map[string]time.Time
	// levels caches the latest reading per sensor.
	levels map[string]int
	// now overrides the clock, for tests.
	now func() time.Time
}

// NewBatteryMonitor creates a monitor. Non-positive threshold or interval
// fall back to the defaults.
func NewBatteryMonitor(threshold int, interval time.Duration) *BatteryMonitor {
	if threshold <= 0 {
		threshold = DefaultBatteryThreshold
	}

	if interval <= 0 {
		interval = DefaultBatteryAlertInterval
	}

	return &BatteryMonitor{
		threshold: threshold,
		interval:  interval,
		lastAlert: make(map[string]time.Time),
		levels:    make(map[string]int),
		now:       time.Now,
	}
}

// Observe processes one battery reading. It returns a non-nil alert when
// the level is below the threshold and no alert went out for this sensor
// within the rate-limit interval.
func (m *BatteryMonitor) Observe(ctx context.Context, r BatteryReading) *BatteryAlert {
	if r.Level < 0 {
		// Mains powered.
		delete(m.levels, r.SensorID)

		return nil
	}

	m.levels[r.SensorID] = r.Level

	if r.Level >= m.threshold {
		return nil
	}

	now := m.now()
	if last, ok := m.lastAlert[r.SensorID]; ok && now.Sub(last) < m.interval {
		return nil
	}

	m.lastAlert[r.SensorID] = now

	logger.WarnKV(ctx, "sensor battery low",
		"sensor", r.SensorID,
		"level", r.Level,
		"threshold", m.threshold)

	return &BatteryAlert{
		SensorID: r.SensorID,
		Name:     r.Name,
		Level:    r.Level,
		At:       now,
	}
}

// MinLevel returns the lowest known battery level, or 100 when no
// battery-powered sensor has reported yet.
func (m *BatteryMonitor) MinLevel() int {
	minLevel := 100
	for _, level := range m.levels {
		if level < minLevel {
			minLevel = level
		}
	}

	return minLevel
}

// LowSensors returns the ids of sensors currently below the threshold.
func (m *BatteryMonitor) LowSensors() []string {
	var low []string
	for id, level := range m.levels {
		if level < m.threshold {
			low = append(low, id)
		}
	}

	return low
}
