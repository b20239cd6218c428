package guardian

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dverna/alarm-guardian/internal/config"
	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/correlation"
	"github.com/dverna/alarm-guardian/internal/engine/session"
	"github.com/dverna/alarm-guardian/internal/history"
)

// fakePanel records panel commands and can fail on demand.
type fakePanel struct {
	mu       sync.Mutex
	armed    []alarm.Mode
	disarms  int
	triggers int
	trigErr  error
}

func (p *fakePanel) Arm(_ context.Context, mode alarm.Mode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = append(p.armed, mode)

	return nil
}

func (p *fakePanel) Disarm(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disarms++

	return nil
}

func (p *fakePanel) Trigger(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.triggers++

	return p.trigErr
}

func (p *fakePanel) triggerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.triggers
}

// testConfig builds a two-zone configuration with short timers.
func testConfig() *config.Config {
	cfg := &config.Config{
		ExitDelay:         5 * time.Millisecond,
		EntryDelay:        50 * time.Millisecond,
		CorrelationWindow: 250 * time.Millisecond,
		Zones: []config.ZoneConfig{
			{
				ID:      "zone-day",
				Name:    "Day Zone",
				Profile: "perimeter_plus",
				Sensors: []config.SensorConfig{
					{ID: "front_door", Name: "Front Door", Class: "perimeter"},
					{ID: "hall_pir", Name: "Hall PIR", Class: "interior"},
				},
			},
			{
				ID:      "zone-night",
				Name:    "Night Zone",
				Profile: "perimeter_only",
				Sensors: []config.SensorConfig{
					{ID: "bed_window", Name: "Bedroom Window", Class: "perimeter"},
				},
			},
		},
	}

	if err := config.Validate(cfg); err != nil {
		panic(err)
	}

	return cfg
}

// startService runs a service against a fake panel and returns it with its
// audit sink.
func startService(t *testing.T, cfg *config.Config, panel *fakePanel) (*Service, *history.MemorySink) {
	t.Helper()

	sink := history.NewMemorySink(100)
	svc := NewService(cfg, panel, nil, nil, sink)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go svc.Run(ctx) //nolint:errcheck // Stopped via t.Cleanup cancel.

	return svc, sink
}

// awaitState polls the status until the machine reaches the wanted state.
func awaitState(t *testing.T, svc *Service, want alarm.State) {
	t.Helper()

	require.Eventually(t, func() bool {
		status, err := svc.Status(context.Background())

		return err == nil && status.State == want
	}, time.Second, time.Millisecond)
}

// TestArmThenLocalConfirmation walks the full happy path: arm, entry delay,
// buffered perimeter event scored after the delay, interior event completes
// the profile, the panel fires.
func TestArmThenLocalConfirmation(t *testing.T) {
	t.Parallel()

	panel := &fakePanel{}
	svc, sink := startService(t, testConfig(), panel)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	// Perimeter contact starts the entry delay; not scored yet.
	require.NoError(t, svc.HandleSensorEvent(ctx, "front_door", event.TypeContact, 1, ""))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, alarm.StatePending, status.State)
	require.Zero(t, status.GlobalScore)

	// The delay elapses, the buffered contact is scored.
	awaitState(t, svc, alarm.StatePreAlarm)

	// Interior motion completes perimeter_plus: 70+40 >= 100.
	require.NoError(t, svc.HandleSensorEvent(ctx, "hall_pir", event.TypeMotion, 1, ""))
	awaitState(t, svc, alarm.StateTriggered)

	require.Equal(t, 1, panel.triggerCount())

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.Statistics.Confirmations)

	var kinds []history.Kind
	for _, entry := range sink.Entries() {
		kinds = append(kinds, entry.Kind)
	}

	require.Contains(t, kinds, history.KindConfirmation)
	require.Contains(t, kinds, history.KindTransition)
}

// TestDisarmDuringEntryDelayReturnsArmed cancels the entry delay: the
// system goes back to armed, the buffered event is never scored.
func TestDisarmDuringEntryDelayReturnsArmed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.EntryDelay = time.Minute

	svc, _ := startService(t, cfg, &fakePanel{})
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	require.NoError(t, svc.HandleSensorEvent(ctx, "front_door", event.TypeContact, 1, ""))
	awaitState(t, svc, alarm.StatePending)

	require.NoError(t, svc.Disarm(ctx))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, alarm.StateArmedAway, status.State)
	require.Zero(t, status.GlobalScore)

	// A second disarm fully disarms.
	require.NoError(t, svc.Disarm(ctx))
	awaitState(t, svc, alarm.StateDisarmed)
}

// TestWindowTimeoutReturnsArmed lets a lone interior trip expire
// unconfirmed.
func TestWindowTimeoutReturnsArmed(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CorrelationWindow = 30 * time.Millisecond

	svc, _ := startService(t, cfg, &fakePanel{})
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	require.NoError(t, svc.HandleSensorEvent(ctx, "hall_pir", event.TypeMotion, 1, ""))
	awaitState(t, svc, alarm.StatePreAlarm)

	awaitState(t, svc, alarm.StateArmedAway)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.Statistics.Timeouts)
	require.Zero(t, status.ZoneScores["zone-day"])
}

// TestForceArmIgnoresSensor drops events from sensors excluded at arm time.
func TestForceArmIgnoresSensor(t *testing.T) {
	t.Parallel()

	svc, _ := startService(t, testConfig(), &fakePanel{})
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway, "front_door"))
	awaitState(t, svc, alarm.StateArmedAway)

	require.NoError(t, svc.HandleSensorEvent(ctx, "front_door", event.TypeContact, 1, ""))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, alarm.StateArmedAway, status.State)
}

// TestUnknownSensorRejected surfaces events from unconfigured sensors.
func TestUnknownSensorRejected(t *testing.T) {
	t.Parallel()

	svc, _ := startService(t, testConfig(), &fakePanel{})

	err := svc.HandleSensorEvent(context.Background(), "ghost", event.TypeContact, 1, "")
	require.ErrorIs(t, err, ErrUnknownSensor)
}

// TestLowConfidencePersonRejected filters weak camera detections before
// they reach any state.
func TestLowConfidencePersonRejected(t *testing.T) {
	t.Parallel()

	svc, _ := startService(t, testConfig(), &fakePanel{})
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	err := svc.HandleSensorEvent(ctx, "hall_pir", event.TypeCameraPerson, 0.4, "")
	require.ErrorIs(t, err, event.ErrLowConfidence)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, alarm.StateArmedAway, status.State)
}

// TestResetStatisticsClearsAccumulators verifies the explicit reset command
// wipes the counters and the live session's scores, global included.
func TestResetStatisticsClearsAccumulators(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.CorrelationWindow = time.Minute

	svc, _ := startService(t, cfg, &fakePanel{})
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	require.NoError(t, svc.HandleSensorEvent(ctx, "hall_pir", event.TypeMotion, 1, ""))
	awaitState(t, svc, alarm.StatePreAlarm)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 40, status.GlobalScore)

	require.NoError(t, svc.ResetStatistics(ctx))

	status, err = svc.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, status.GlobalScore)
	require.Zero(t, status.ZoneScores["zone-day"])
	require.Equal(t, Statistics{}, status.Statistics)

	// Nothing is accumulating anymore, so pre-alarm fell back to armed.
	require.Equal(t, alarm.StateArmedAway, status.State)
}

// TestAlertCarriesMultiplierAnnotation keeps the cross-zone x1.5 marker on
// each sequence line handed to the notifier.
func TestAlertCarriesMultiplierAnnotation(t *testing.T) {
	t.Parallel()

	svc := NewService(testConfig(), nil, nil, nil, nil)

	first, err := event.Classify("bed_window", "Bedroom Window", event.TypeContact, "zone-night", 1, time.Now())
	require.NoError(t, err)

	second, err := event.Classify("front_door", "Front Door", event.TypeContact, "zone-day", 1, time.Now())
	require.NoError(t, err)

	alert := svc.alertFromConfirmation(&session.Confirmation{
		Kind:     session.ConfirmedCrossZone,
		ZoneID:   "zone-day",
		ZoneName: "Day Zone",
		Sequence: []correlation.Contribution{
			{Event: first, Value: 70},
			{Event: second, Value: 105, Multiplied: true},
		},
		TotalScore: 175,
	})

	require.Equal(t, "cross_zone", alert.ConfirmedVia)
	require.Len(t, alert.Sequence, 2)
	require.False(t, alert.Sequence[0].Multiplied)
	require.Equal(t, 70, alert.Sequence[0].Score)
	require.True(t, alert.Sequence[1].Multiplied)
	require.Equal(t, 105, alert.Sequence[1].Score)
	require.Equal(t, "front_door", alert.SensorID)
}

// TestPanelFailureEntersFault drives the fault state from a panel trigger
// failure, then clears it back to armed.
func TestPanelFailureEntersFault(t *testing.T) {
	t.Parallel()

	panel := &fakePanel{trigErr: errors.New("panel unreachable")}
	svc, _ := startService(t, testConfig(), panel)
	ctx := context.Background()

	require.NoError(t, svc.Arm(ctx, alarm.ModeAway))
	awaitState(t, svc, alarm.StateArmedAway)

	require.NoError(t, svc.ManualTrigger(ctx, "panic"))
	awaitState(t, svc, alarm.StateFault)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	require.Contains(t, status.FaultReason, "panel trigger failed")

	require.NoError(t, svc.ClearFault(ctx))
	awaitState(t, svc, alarm.StateArmedAway)
}
