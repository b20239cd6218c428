package integration

import (
	"context"
	"fmt"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/escalation"
	"github.com/dverna/alarm-guardian/internal/logger"
)

// LogNotifier renders notifications to the structured log. It stands in
// for a messaging integration when none is configured.
type LogNotifier struct{}

// Notify logs the confirmed-alarm message with the event sequence.
func (LogNotifier) Notify(ctx context.Context, alert escalation.Alert) error {
	kvs := []any{
		"zone", alert.ZoneName,
		"confirmed_via", alert.ConfirmedVia,
		"score", alert.Score,
	}

	for _, line := range alert.Sequence {
		entry := fmt.Sprintf("%s (+%dpt)", line.Name, line.Score)
		if line.Multiplied {
			entry = fmt.Sprintf("%s (+%dpt, x1.5)", line.Name, line.Score)
		}

		kvs = append(kvs, "seq_"+line.Type, entry)
	}

	logger.WarnKV(ctx, "ALARM CONFIRMED", kvs...)

	return nil
}

// NotifySnapshot logs the snapshot reference.
func (LogNotifier) NotifySnapshot(ctx context.Context, eventID string) error {
	logger.InfoKV(ctx, "camera snapshot", "event_id", eventID)

	return nil
}

// NotifyClip logs the clip reference.
func (LogNotifier) NotifyClip(ctx context.Context, eventID string) error {
	logger.InfoKV(ctx, "camera clip", "event_id", eventID)

	return nil
}

// Send logs an informational message.
func (LogNotifier) Send(ctx context.Context, text string) error {
	logger.InfoKV(ctx, text)

	return nil
}

// LogCaller logs calls instead of placing them.
type LogCaller struct{}

// Call logs the dialed number.
func (LogCaller) Call(ctx context.Context, number string) error {
	logger.WarnKV(ctx, "voice call", "number", number)

	return nil
}

// LogSiren logs siren switches.
type LogSiren struct{}

// On logs siren activation.
func (LogSiren) On(ctx context.Context) error {
	logger.WarnKV(ctx, "siren on")

	return nil
}

// Off logs siren deactivation.
func (LogSiren) Off(ctx context.Context) error {
	logger.WarnKV(ctx, "siren off")

	return nil
}

// ReadyClips reports every clip as immediately available.
type ReadyClips struct{}

// ClipReady always reports ready.
func (ReadyClips) ClipReady(context.Context, string) (bool, error) {
	return true, nil
}

// LogPanel acknowledges every panel command, logging it. It stands in for
// the physical panel integration.
type LogPanel struct{}

// Arm logs the arm command.
func (LogPanel) Arm(ctx context.Context, mode alarm.Mode) error {
	logger.InfoKV(ctx, "panel armed", "mode", string(mode))

	return nil
}

// Disarm logs the disarm command.
func (LogPanel) Disarm(ctx context.Context) error {
	logger.InfoKV(ctx, "panel disarmed")

	return nil
}

// Trigger logs the trigger command.
func (LogPanel) Trigger(ctx context.Context) error {
	logger.WarnKV(ctx, "panel triggered")

	return nil
}
