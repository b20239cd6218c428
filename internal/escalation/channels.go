package escalation

import "context"

// Channel names recorded in the escalation report.
const (
	ChannelNotify        = "notify"
	ChannelSnapshot      = "snapshot"
	ChannelSiren         = "siren"
	ChannelCallPrimary   = "call_primary"
	ChannelCallSecondary = "call_secondary"
	ChannelClip          = "clip"
)

// EventLine is one entry of the confirmed event sequence carried into
// notifications.
type EventLine struct {
	// Type is the sensor type label.
	Type string
	// Name is the sensor display name.
	Name string
	// Score is the event's contribution, multiplier-adjusted.
	Score int
	// Multiplied is true when the cross-zone multiplier applied to Score.
	Multiplied bool
}

// Alert is the confirmation payload an escalation run is started with.
type Alert struct {
	// SensorID is the sensor that completed the confirmation.
	SensorID string
	// SensorName is its display name.
	SensorName string
	// ZoneName is the confirming zone's display name.
	ZoneName string
	// ConfirmedVia is "local" or "cross_zone".
	ConfirmedVia string
	// Score is the total correlation score at confirmation.
	Score int
	// Sequence is the ordered qualifying event sequence.
	Sequence []EventLine
	// CameraEventID references the camera recording of the confirmation,
	// empty when no camera contributed.
	CameraEventID string
}

// Notifier delivers push notifications. Implementations must be safe for
// use from the escalation goroutine.
type Notifier interface {
	// Notify sends the confirmed-alarm message with the event sequence.
	Notify(ctx context.Context, alert Alert) error
	// NotifySnapshot sends the camera snapshot for the given recording.
	NotifySnapshot(ctx context.Context, eventID string) error
	// NotifyClip sends the camera clip for the given recording.
	NotifyClip(ctx context.Context, eventID string) error
}

// Caller places voice calls to the configured numbers.
type Caller interface {
	// Call dials the number and returns once the call was placed.
	Call(ctx context.Context, number string) error
}

// ClipFetcher checks camera clip availability. Recordings become
// downloadable only after the camera finalizes them.
type ClipFetcher interface {
	// ClipReady reports whether the clip for the recording can be fetched.
	ClipReady(ctx context.Context, eventID string) (bool, error)
}

// Siren drives the local sirens.
type Siren interface {
	// On activates the sirens.
	On(ctx context.Context) error
	// Off silences the sirens.
	Off(ctx context.Context) error
}
