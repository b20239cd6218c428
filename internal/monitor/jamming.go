package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/dverna/alarm-guardian/internal/logger"
)

// Jamming detection defaults.
const (
	// DefaultJammingMinDevices is the minimum number of simultaneously
	// offline sensors before jamming is considered.
	DefaultJammingMinDevices = 2
	// DefaultJammingMinPercent is the minimum offline share, in percent.
	DefaultJammingMinPercent = 50
	// DefaultWarmupPeriod suppresses detection right after startup, while
	// radio sensors are still announcing themselves.
	DefaultWarmupPeriod = 5 * time.Minute
)

// JammingVerdict is the outcome of one jamming evaluation.
type JammingVerdict struct {
	// Detected reports whether the offline pattern matches RF jamming.
	Detected bool
	// Reason describes the pattern when detected.
	Reason string
	// OfflineCount and TotalCount are the inputs of the evaluation.
	OfflineCount int
	TotalCount   int
}

// JammingDetector flags probable RF jamming when enough radio sensors go
// offline at once. Single offline sensors are ordinary failures; a
// simultaneous majority is not.
type JammingDetector struct {
	// minDevices is the absolute offline count floor.
	minDevices int
	// minPercent is the offline share floor, in percent.
	minPercent int
	// warmupUntil suppresses detection until this instant.
	warmupUntil time.Time
	// now overrides the clock, for tests.
	now func() time.Time
}

// NewJammingDetector creates a detector with its warm-up window started.
// Non-positive thresholds fall back to the defaults.
func NewJammingDetector(minDevices, minPercent int, warmup time.Duration) *JammingDetector {
	if minDevices <= 0 {
		minDevices = DefaultJammingMinDevices
	}

	if minPercent <= 0 {
		minPercent = DefaultJammingMinPercent
	}

	if warmup <= 0 {
		warmup = DefaultWarmupPeriod
	}

	return &JammingDetector{
		minDevices:  minDevices,
		minPercent:  minPercent,
		warmupUntil: time.Now().Add(warmup),
		now:         time.Now,
	}
}

// Evaluate checks the offline pattern. During warm-up, or with no sensors
// registered, the verdict is always negative.
func (d *JammingDetector) Evaluate(ctx context.Context, offlineCount, totalCount int) JammingVerdict {
	verdict := JammingVerdict{OfflineCount: offlineCount, TotalCount: totalCount}

	if totalCount == 0 || d.now().Before(d.warmupUntil) {
		return verdict
	}

	offlinePercent := offlineCount * 100 / totalCount
	if offlineCount >= d.minDevices && offlinePercent >= d.minPercent {
		verdict.Detected = true
		verdict.Reason = fmt.Sprintf("%d/%d sensors offline (%d%% >= %d%%)",
			offlineCount, totalCount, offlinePercent, d.minPercent)

		logger.WarnKV(ctx, "jamming detected", "reason", verdict.Reason)
	}

	return verdict
}
