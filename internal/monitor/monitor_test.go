package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestBatteryAlertRateLimit raises one alert per sensor per interval.
func TestBatteryAlertRateLimit(t *testing.T) {
	t.Parallel()

	m := NewBatteryMonitor(15, 24*time.Hour)

	clock := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	reading := BatteryReading{SensorID: "front_door", Name: "Front Door", Level: 9}

	alert := m.Observe(context.Background(), reading)
	require.NotNil(t, alert)
	require.Equal(t, 9, alert.Level)

	// Same sensor within the window: suppressed.
	clock = clock.Add(6 * time.Hour)
	require.Nil(t, m.Observe(context.Background(), reading))

	// A different sensor is not affected by the first sensor's limit.
	other := BatteryReading{SensorID: "bed_window", Name: "Bedroom Window", Level: 4}
	require.NotNil(t, m.Observe(context.Background(), other))

	// After the window the first sensor alerts again.
	clock = clock.Add(19 * time.Hour)
	require.NotNil(t, m.Observe(context.Background(), reading))
}

// TestBatteryHealthyAndPowered keeps healthy and mains-powered sensors quiet.
func TestBatteryHealthyAndPowered(t *testing.T) {
	t.Parallel()

	m := NewBatteryMonitor(15, time.Hour)

	require.Nil(t, m.Observe(context.Background(), BatteryReading{SensorID: "a", Level: 80}))
	require.Nil(t, m.Observe(context.Background(), BatteryReading{SensorID: "b", Level: -1}))
	require.Equal(t, 80, m.MinLevel())
	require.Empty(t, m.LowSensors())

	require.NotNil(t, m.Observe(context.Background(), BatteryReading{SensorID: "c", Level: 3}))
	require.Equal(t, 3, m.MinLevel())
	require.Equal(t, []string{"c"}, m.LowSensors())
}

// TestJammingThresholds requires both the absolute and relative floors.
func TestJammingThresholds(t *testing.T) {
	t.Parallel()

	d := NewJammingDetector(2, 50, time.Minute)
	d.warmupUntil = time.Time{}
	d.now = func() time.Time { return time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC) }

	// One offline out of two: count floor not met.
	require.False(t, d.Evaluate(context.Background(), 1, 2).Detected)

	// Two offline out of ten: share floor not met.
	require.False(t, d.Evaluate(context.Background(), 2, 10).Detected)

	// Two offline out of four: both floors met.
	v := d.Evaluate(context.Background(), 2, 4)
	require.True(t, v.Detected)
	require.Equal(t, "2/4 sensors offline (50% >= 50%)", v.Reason)

	// No sensors registered.
	require.False(t, d.Evaluate(context.Background(), 0, 0).Detected)
}

// TestJammingWarmupSuppression stays quiet during the boot grace period.
func TestJammingWarmupSuppression(t *testing.T) {
	t.Parallel()

	d := NewJammingDetector(2, 50, 5*time.Minute)
	require.False(t, d.Evaluate(context.Background(), 5, 5).Detected)

	d.warmupUntil = time.Now().Add(-time.Second)
	require.True(t, d.Evaluate(context.Background(), 5, 5).Detected)
}
