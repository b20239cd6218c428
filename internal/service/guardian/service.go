package guardian

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dverna/alarm-guardian/internal/config"
	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/correlation"
	"github.com/dverna/alarm-guardian/internal/engine/session"
	"github.com/dverna/alarm-guardian/internal/engine/statemachine"
	"github.com/dverna/alarm-guardian/internal/engine/window"
	"github.com/dverna/alarm-guardian/internal/escalation"
	"github.com/dverna/alarm-guardian/internal/history"
	"github.com/dverna/alarm-guardian/internal/logger"
	"github.com/dverna/alarm-guardian/internal/monitor"
)

// Panel abstracts the physical alarm panel. Errors from it are treated as
// unrecoverable communication failures and drive the fault state.
type Panel interface {
	// Arm puts the panel into the given armed mode.
	Arm(ctx context.Context, mode alarm.Mode) error
	// Disarm returns the panel to standby.
	Disarm(ctx context.Context) error
	// Trigger fires the panel's alarm output and returns once acknowledged.
	Trigger(ctx context.Context) error
}

// Messenger delivers informational messages outside the escalation path:
// arming, disarm, entry delay and health notices.
type Messenger interface {
	// Send delivers one message.
	Send(ctx context.Context, text string) error
}

// Statistics counts session outcomes since start or the last reset.
type Statistics struct {
	// Sessions counts completed arm cycles.
	Sessions int `json:"sessions"`
	// Confirmations counts confirmed alarms.
	Confirmations int `json:"confirmations"`
	// Timeouts counts correlation windows that closed unconfirmed.
	Timeouts int `json:"timeouts"`
	// Aborted counts escalations stopped by a disarm.
	Aborted int `json:"aborted"`
}

// Status is a point-in-time snapshot of the guardian.
type Status struct {
	// State is the current alarm state.
	State alarm.State `json:"state"`
	// Mode is the armed mode of the active cycle, empty when disarmed.
	Mode alarm.Mode `json:"mode,omitempty"`
	// GlobalScore is the cross-zone score of the active session.
	GlobalScore int `json:"global_score"`
	// ZoneScores maps zone id to its current local score.
	ZoneScores map[string]int `json:"zone_scores,omitempty"`
	// EscalationPhase is the escalation controller's phase.
	EscalationPhase escalation.Phase `json:"escalation_phase"`
	// FaultReason is set while in the fault state.
	FaultReason string `json:"fault_reason,omitempty"`
	// BatteryMin is the lowest known sensor battery level.
	BatteryMin int `json:"battery_min"`
	// Statistics are the session outcome counters.
	Statistics Statistics `json:"statistics"`
}

// sensorRef is the flattened sensor index entry.
type sensorRef struct {
	zoneID string
	name   string
	class  event.Class
}

// ErrUnknownSensor is returned for events from sensors absent from every zone.
var ErrUnknownSensor = errors.New("sensor not configured in any zone")

// Service is the guardian's single-writer core. All state mutations run on
// one goroutine inside Run; public methods hand closures to that goroutine
// and wait for them, so callers observe sequential semantics. Timers fire
// back into the same stream carrying epochs, never touching state directly.
type Service struct {
	cfg   *config.Config
	zones []*correlation.Zone
	// sensors indexes sensor id to its zone, class and display name.
	sensors map[string]sensorRef

	machine *statemachine.Machine
	// sess is the active session, nil while disarmed or arming.
	sess *session.Session

	esc     *escalation.Controller
	battery *monitor.BatteryMonitor
	jamming *monitor.JammingDetector
	windows *window.Calculator

	sink      history.Sink
	panel     Panel
	messenger Messenger

	// onTransition, when set, receives every state transition after it was
	// recorded. Used by the feed to publish transitions.
	onTransition func(alarm.Transition)

	// cmds is the serialized command stream.
	cmds chan func()
	// ignored holds sensors excluded by the last force-arm.
	ignored map[string]struct{}
	// cameraEventID is the most recent camera recording reference.
	cameraEventID string

	stats Statistics
}

// NewService wires the guardian from a validated configuration. Nil
// collaborators are allowed and disable their channel.
func NewService(cfg *config.Config, panel Panel, messenger Messenger, esc *escalation.Controller, sink history.Sink) *Service {
	if sink == nil {
		sink = history.LogSink{}
	}

	zones := cfg.BuildZones()

	sensors := make(map[string]sensorRef)
	for _, z := range zones {
		for id, sn := range z.Sensors {
			sensors[id] = sensorRef{zoneID: z.ID, name: sn.Name, class: sn.Class}
		}
	}

	windows := &window.Calculator{}
	if !cfg.AdaptiveWindow {
		windows.Fixed = cfg.CorrelationWindow
	}

	s := &Service{
		cfg:       cfg,
		zones:     zones,
		sensors:   sensors,
		esc:       esc,
		battery:   monitor.NewBatteryMonitor(cfg.Monitoring.BatteryThreshold, cfg.Monitoring.BatteryAlertInterval),
		jamming:   monitor.NewJammingDetector(cfg.Monitoring.JammingMinDevices, cfg.Monitoring.JammingMinPercent, cfg.Monitoring.WarmupPeriod),
		windows:   windows,
		sink:      sink,
		panel:     panel,
		messenger: messenger,
		cmds:      make(chan func(), 64),
		ignored:   make(map[string]struct{}),
	}

	s.machine = statemachine.New(s.recordTransition)

	return s
}

// SetTransitionHook registers a callback receiving every transition. Must
// be called before Run.
func (s *Service) SetTransitionHook(hook func(alarm.Transition)) {
	s.onTransition = hook
}

// Run processes the command stream until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	logger.InfoKV(ctx, "guardian started",
		"zones", len(s.zones),
		"sensors", len(s.sensors),
		"adaptive_window", s.cfg.AdaptiveWindow)

	for {
		select {
		case <-ctx.Done():
			if s.esc != nil {
				s.esc.Abort(context.WithoutCancel(ctx))
			}

			logger.InfoKV(ctx, "guardian stopped")

			return ctx.Err()
		case cmd := <-s.cmds:
			cmd()
		}
	}
}

// do runs fn on the service goroutine and waits for it.
func (s *Service) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})

	select {
	case s.cmds <- func() {
		fn()
		close(done)
	}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands fn to the service goroutine without waiting. Used by timers.
func (s *Service) post(fn func()) {
	s.cmds <- fn
}

// Arm starts the exit delay toward the given mode. Ignored sensors, if
// any, are excluded from the whole arm cycle (force arm).
func (s *Service) Arm(ctx context.Context, mode alarm.Mode, ignoredSensors ...string) error {
	var armErr error

	err := s.do(ctx, func() {
		armErr = s.arm(ctx, mode, ignoredSensors)
	})
	if err != nil {
		return err
	}

	return armErr
}

func (s *Service) arm(ctx context.Context, mode alarm.Mode, ignoredSensors []string) error {
	epoch, ok := s.machine.Arm(mode)
	if !ok {
		return fmt.Errorf("cannot arm from state %q", s.machine.State())
	}

	s.ignored = make(map[string]struct{}, len(ignoredSensors))
	for _, id := range ignoredSensors {
		s.ignored[id] = struct{}{}
	}

	if s.panel != nil {
		if err := s.panel.Arm(ctx, mode); err != nil {
			s.fault(ctx, fmt.Sprintf("panel arm failed: %v", err))

			return fmt.Errorf("panel arm: %w", err)
		}
	}

	s.say(ctx, fmt.Sprintf("Arming (%s), exit delay %s", mode, s.cfg.ExitDelay))

	time.AfterFunc(s.cfg.ExitDelay, func() {
		s.post(func() { s.exitDelayElapsed(ctx, epoch) })
	})

	return nil
}

func (s *Service) exitDelayElapsed(ctx context.Context, epoch uint64) {
	if !s.machine.ExitDelayElapsed(epoch) {
		return
	}

	s.sess = session.New(s.machine.Mode(), s.zones, s.cfg.GlobalThreshold)
	s.say(ctx, fmt.Sprintf("Armed (%s)", s.machine.Mode()))

	logger.InfoKV(ctx, "session started",
		"session_id", s.sess.ID().String(),
		"mode", string(s.machine.Mode()))
}

// Disarm stops the current arm cycle. During the entry delay it returns to
// the armed baseline with scores wiped; in any other armed state it
// disarms fully and aborts a running escalation.
func (s *Service) Disarm(ctx context.Context) error {
	return s.do(ctx, func() { s.disarm(ctx) })
}

func (s *Service) disarm(ctx context.Context) {
	if s.esc != nil && s.esc.Abort(ctx) {
		s.stats.Aborted++
	}

	state, changed := s.machine.Disarm()
	if !changed {
		return
	}

	if state == alarm.StateDisarmed {
		if s.sess != nil {
			s.stats.Sessions++
			s.sess = nil
		}

		s.ignored = make(map[string]struct{})

		if s.panel != nil {
			if err := s.panel.Disarm(ctx); err != nil {
				s.fault(ctx, fmt.Sprintf("panel disarm failed: %v", err))

				return
			}
		}

		s.say(ctx, "Disarmed")

		return
	}

	// Disarm during the entry delay: back to armed with a clean slate.
	if s.sess != nil {
		s.sess.ResetScores()
	}

	s.say(ctx, fmt.Sprintf("Entry cancelled, still %s", state))
}

// HandleSensorEvent classifies and routes one raw sensor trigger.
// cameraEventID, when non-empty, references the camera recording backing a
// camera_person detection.
func (s *Service) HandleSensorEvent(ctx context.Context, sensorID string, typ event.Type, confidence float64, cameraEventID string) error {
	var evErr error

	err := s.do(ctx, func() {
		evErr = s.handleEvent(ctx, sensorID, typ, confidence, cameraEventID)
	})
	if err != nil {
		return err
	}

	return evErr
}

func (s *Service) handleEvent(ctx context.Context, sensorID string, typ event.Type, confidence float64, cameraEventID string) error {
	ref, ok := s.sensors[sensorID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSensor, sensorID)
	}

	if _, skip := s.ignored[sensorID]; skip {
		logger.DebugKV(ctx, "event from force-arm ignored sensor dropped", "sensor", sensorID)

		return nil
	}

	state := s.machine.State()
	if !state.IsArmed() {
		logger.DebugKV(ctx, "event outside armed state dropped",
			"sensor", sensorID,
			"state", string(state))

		return nil
	}

	e, err := event.Classify(sensorID, ref.name, typ, ref.zoneID, confidence, time.Now())
	if err != nil {
		logger.DebugKV(ctx, "event rejected at classification",
			"sensor", sensorID,
			"error", err)

		return err
	}

	if cameraEventID != "" {
		s.cameraEventID = cameraEventID
	}

	s.appendAudit(ctx, history.KindEvent, map[string]any{
		"sensor": e.SensorID,
		"type":   string(e.Type),
		"zone":   e.ZoneID,
		"score":  e.Score,
	})

	switch state {
	case alarm.StateArmedAway, alarm.StateArmedHome:
		if ref.class == event.ClassPerimeter {
			epoch, tripped := s.machine.PerimeterTripped(e)
			if tripped {
				s.say(ctx, fmt.Sprintf("Entry delay started by %s (%s)", e.Name, s.cfg.EntryDelay))
				time.AfterFunc(s.cfg.EntryDelay, func() {
					s.post(func() { s.entryDelayElapsed(ctx, epoch) })
				})
			}

			return nil
		}

		s.machine.InteriorTripped(e)
		s.score(ctx, e)

		return nil
	case alarm.StatePending, alarm.StatePreAlarm:
		s.score(ctx, e)

		return nil
	default:
		// Confirmed or triggered: the session is frozen.
		return nil
	}
}

func (s *Service) entryDelayElapsed(ctx context.Context, epoch uint64) {
	e, ok := s.machine.EntryDelayElapsed(epoch)
	if !ok || e == nil {
		return
	}

	s.score(ctx, e)
}

// score routes an event through the session and reacts to window starts
// and confirmations.
func (s *Service) score(ctx context.Context, e *event.SensorEvent) {
	if s.sess == nil || s.sess.Confirmed() {
		return
	}

	result := s.sess.Process(e)

	logger.DebugKV(ctx, "event scored",
		"sensor", e.SensorID,
		"zone", e.ZoneID,
		"outcome", result.Outcome.String(),
		"zone_score", s.sess.ZoneScores()[e.ZoneID],
		"global_score", s.sess.GlobalScore())

	if result.WindowStarted {
		zone := s.sess.Zone(e.ZoneID).Zone()
		d := s.windows.Window(e.Type, zone.WindowMultiplier)
		zoneID, epoch := e.ZoneID, result.WindowEpoch

		time.AfterFunc(d, func() {
			s.post(func() { s.windowExpired(ctx, zoneID, epoch) })
		})
	}

	if result.Confirmation != nil {
		s.confirmed(ctx, result.Confirmation)
	}
}

func (s *Service) windowExpired(ctx context.Context, zoneID string, epoch uint64) {
	if s.sess == nil || !s.sess.ExpireZoneWindow(zoneID, epoch) {
		return
	}

	logger.InfoKV(ctx, "correlation window closed unconfirmed", "zone", zoneID)

	if s.machine.State() == alarm.StatePreAlarm && !s.sess.AnyWindowOpen() {
		if s.machine.WindowClosedUnconfirmed() {
			s.stats.Timeouts++
			s.say(ctx, "Activity not confirmed, back to armed")
		}
	}
}

// confirmed promotes a session confirmation into the alarm state, the
// panel and the escalation sequence.
func (s *Service) confirmed(ctx context.Context, c *session.Confirmation) {
	if !s.machine.Confirm() {
		return
	}

	s.stats.Confirmations++

	s.appendAudit(ctx, history.KindConfirmation, map[string]any{
		"kind":  string(c.Kind),
		"zone":  c.ZoneID,
		"score": c.TotalScore,
	})

	s.startEscalation(ctx, s.alertFromConfirmation(c))

	if s.panel != nil {
		if err := s.panel.Trigger(ctx); err != nil {
			s.fault(ctx, fmt.Sprintf("panel trigger failed: %v", err))

			return
		}
	}

	s.machine.PanelAck()
}

// alertFromConfirmation maps the confirmation payload to an escalation alert.
func (s *Service) alertFromConfirmation(c *session.Confirmation) escalation.Alert {
	alert := escalation.Alert{
		ZoneName:      c.ZoneName,
		ConfirmedVia:  string(c.Kind),
		Score:         c.TotalScore,
		CameraEventID: s.cameraEventID,
	}

	for _, contribution := range c.Sequence {
		alert.Sequence = append(alert.Sequence, escalation.EventLine{
			Type:       string(contribution.Event.Type),
			Name:       contribution.Event.Name,
			Score:      contribution.Value,
			Multiplied: contribution.Multiplied,
		})
	}

	if n := len(c.Sequence); n > 0 {
		last := c.Sequence[n-1].Event
		alert.SensorID = last.SensorID
		alert.SensorName = last.Name
	}

	return alert
}

// startEscalation launches the escalation run and routes its report back
// into the command stream.
func (s *Service) startEscalation(ctx context.Context, alert escalation.Alert) {
	if s.esc == nil {
		return
	}

	done := make(chan escalation.Report, 1)
	if !s.esc.Start(context.WithoutCancel(ctx), alert, done) {
		return
	}

	go func() {
		report := <-done
		s.post(func() {
			s.appendAudit(ctx, history.KindEscalation, map[string]any{
				"phase":      string(report.Phase),
				"attempted":  report.Attempted,
				"successful": report.Successful,
			})
		})
	}()
}

// ManualTrigger forces a confirmed alarm, bypassing correlation.
func (s *Service) ManualTrigger(ctx context.Context, reason string) error {
	var trigErr error

	err := s.do(ctx, func() {
		if !s.machine.ManualTrigger(reason) {
			trigErr = fmt.Errorf("cannot trigger from state %q", s.machine.State())

			return
		}

		s.stats.Confirmations++
		s.startEscalation(ctx, escalation.Alert{
			SensorName:   "manual",
			ConfirmedVia: "manual",
			ZoneName:     reason,
		})

		if s.panel != nil {
			if err := s.panel.Trigger(ctx); err != nil {
				s.fault(ctx, fmt.Sprintf("panel trigger failed: %v", err))

				return
			}
		}

		s.machine.PanelAck()
	})
	if err != nil {
		return err
	}

	return trigErr
}

// Silence turns the siren off without stopping the rest of the escalation.
func (s *Service) Silence(ctx context.Context) error {
	return s.do(ctx, func() {
		if s.esc != nil {
			s.esc.Silence(ctx)
		}
	})
}

// ClearFault leaves the fault state, restoring the prior intended state
// and rebuilding the session when it resumes armed.
func (s *Service) ClearFault(ctx context.Context) error {
	return s.do(ctx, func() {
		state, cleared := s.machine.ClearFault()
		if !cleared {
			return
		}

		if state.IsArmed() && s.sess == nil {
			s.sess = session.New(s.machine.Mode(), s.zones, s.cfg.GlobalThreshold)
		}

		s.say(ctx, fmt.Sprintf("Fault cleared, state %s", state))
	})
}

// fault drops the machine into the fault state.
func (s *Service) fault(ctx context.Context, reason string) {
	logger.ErrorKV(ctx, "entering fault state", "reason", reason)
	s.machine.SetFault(reason)
}

// ObserveBattery processes one battery reading, forwarding rate-limited
// low-battery alerts. Battery monitoring runs armed or not.
func (s *Service) ObserveBattery(ctx context.Context, reading monitor.BatteryReading) error {
	return s.do(ctx, func() {
		alert := s.battery.Observe(ctx, reading)
		if alert == nil {
			return
		}

		s.appendAudit(ctx, history.KindHealth, map[string]any{
			"low_battery": alert.SensorID,
			"level":       alert.Level,
		})
		s.say(ctx, fmt.Sprintf("Low battery: %s at %d%%", alert.Name, alert.Level))
	})
}

// ObserveSensorHealth evaluates the offline pattern for RF jamming.
func (s *Service) ObserveSensorHealth(ctx context.Context, offline, total int) error {
	return s.do(ctx, func() {
		verdict := s.jamming.Evaluate(ctx, offline, total)
		if !verdict.Detected {
			return
		}

		s.appendAudit(ctx, history.KindHealth, map[string]any{
			"jamming": verdict.Reason,
		})
		s.say(ctx, "Possible RF jamming: "+verdict.Reason)
	})
}

// ResetStatistics zeroes the session outcome counters and wipes the active
// session's correlation state, local and global. This is the explicit reset
// that, besides disarm, may clear the cross-zone accumulator.
func (s *Service) ResetStatistics(ctx context.Context) error {
	return s.do(ctx, func() {
		s.stats = Statistics{}

		if s.sess != nil {
			s.sess.ResetScores()

			// With every window gone, pre-alarm has nothing left to wait for.
			if s.machine.State() == alarm.StatePreAlarm {
				s.machine.WindowClosedUnconfirmed()
			}
		}
	})
}

// Status returns a consistent snapshot of the guardian.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var status Status

	err := s.do(ctx, func() {
		status = Status{
			State:       s.machine.State(),
			FaultReason: s.machine.FaultReason(),
			BatteryMin:  s.battery.MinLevel(),
			Statistics:  s.stats,
		}

		if s.machine.State().IsArmed() {
			status.Mode = s.machine.Mode()
		}

		if s.esc != nil {
			status.EscalationPhase = s.esc.Phase()
		} else {
			status.EscalationPhase = escalation.PhaseIdle
		}

		if s.sess != nil {
			status.GlobalScore = s.sess.GlobalScore()
			status.ZoneScores = s.sess.ZoneScores()
		}
	})
	if err != nil {
		return Status{}, err
	}

	return status, nil
}

// recordTransition is the machine's transition callback: audit first, then
// the external hook.
func (s *Service) recordTransition(tr alarm.Transition) {
	ctx := context.Background()

	logger.InfoKV(ctx, "state transition",
		"from", string(tr.From),
		"to", string(tr.To),
		"cause", string(tr.Cause),
		"sensor", tr.Sensor)

	s.appendAudit(ctx, history.KindTransition, map[string]any{
		"from":   string(tr.From),
		"to":     string(tr.To),
		"cause":  string(tr.Cause),
		"sensor": tr.Sensor,
		"reason": tr.Reason,
	})

	if s.onTransition != nil {
		s.onTransition(tr)
	}
}

// appendAudit records an audit entry, never failing the caller.
func (s *Service) appendAudit(ctx context.Context, kind history.Kind, payload any) {
	entry := history.NewEntry(kind, s.sessionID(), payload)
	if err := s.sink.Append(ctx, entry); err != nil {
		logger.ErrorKV(ctx, "audit append failed", "error", err)
	}
}

func (s *Service) sessionID() uuid.UUID {
	if s.sess != nil {
		return s.sess.ID()
	}

	return uuid.Nil
}

// say sends an informational message, logging delivery failures.
func (s *Service) say(ctx context.Context, text string) {
	if s.messenger == nil {
		return
	}

	if err := s.messenger.Send(ctx, text); err != nil {
		logger.WarnKV(ctx, "message delivery failed", "error", err)
	}
}
