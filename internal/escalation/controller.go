package escalation

import (
	"context"
	"sync"
	"time"

	"github.com/dverna/alarm-guardian/internal/logger"
)

// Phase is the escalation controller's current stage.
type Phase string

// Escalation phases.
const (
	PhaseIdle     Phase = "idle"
	PhaseNotify   Phase = "notifying"
	PhaseCalling  Phase = "calling"
	PhaseClipWait Phase = "clip_wait"
	PhaseDone     Phase = "done"
	PhaseAborted  Phase = "aborted"
)

// Defaults for the escalation timing knobs.
const (
	// DefaultCallGrace is the pause before the first voice call, giving the
	// owner a moment to disarm after the immediate notifications.
	DefaultCallGrace = 10 * time.Second
	// DefaultCallDelay is the pause between the primary and secondary call.
	DefaultCallDelay = 90 * time.Second
	// DefaultClipPollInterval is how often clip availability is rechecked.
	DefaultClipPollInterval = 2 * time.Second
	// DefaultClipMaxWait caps the total clip wait.
	DefaultClipMaxWait = 30 * time.Second
)

// Config carries the escalation timing and call targets. Zero durations
// fall back to the defaults.
type Config struct {
	// CallGrace is the pause before the primary call.
	CallGrace time.Duration
	// CallDelay is the pause between primary and secondary calls.
	CallDelay time.Duration
	// ClipPollInterval is the clip availability recheck interval.
	ClipPollInterval time.Duration
	// ClipMaxWait caps the clip wait.
	ClipMaxWait time.Duration
	// PrimaryNumber is the first number to call, empty disables the call.
	PrimaryNumber string
	// SecondaryNumber is the fallback number, empty disables the call.
	SecondaryNumber string
}

// withDefaults fills zero durations.
func (c Config) withDefaults() Config {
	if c.CallGrace <= 0 {
		c.CallGrace = DefaultCallGrace
	}

	if c.CallDelay <= 0 {
		c.CallDelay = DefaultCallDelay
	}

	if c.ClipPollInterval <= 0 {
		c.ClipPollInterval = DefaultClipPollInterval
	}

	if c.ClipMaxWait <= 0 {
		c.ClipMaxWait = DefaultClipMaxWait
	}

	return c
}

// Report is the outcome of one escalation run.
type Report struct {
	// Phase is the final phase, done or aborted.
	Phase Phase
	// Attempted lists channels the run tried, in order.
	Attempted []string
	// Successful lists channels that succeeded, in order.
	Successful []string
	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller runs the three-phase escalation sequence: immediate
// notifications and siren, delayed voice calls, then the camera clip
// follow-up. One run at a time; Start on a running controller is a no-op.
// Abort is callable from any goroutine and is idempotent.
type Controller struct {
	cfg      Config
	notifier Notifier
	caller   Caller
	clips    ClipFetcher
	siren    Siren

	mu      sync.Mutex
	phase   Phase
	aborted bool
	cancel  context.CancelFunc
	report  Report
}

// NewController wires the escalation collaborators. Nil collaborators
// disable their channel.
func NewController(cfg Config, notifier Notifier, caller Caller, clips ClipFetcher, siren Siren) *Controller {
	return &Controller{
		cfg:      cfg.withDefaults(),
		notifier: notifier,
		caller:   caller,
		clips:    clips,
		siren:    siren,
		phase:    PhaseIdle,
	}
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.phase
}

// Running reports whether an escalation run is in flight.
func (c *Controller) Running() bool {
	switch c.Phase() {
	case PhaseNotify, PhaseCalling, PhaseClipWait:
		return true
	default:
		return false
	}
}

// Report returns the last finished run's report.
func (c *Controller) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.report
	r.Attempted = append([]string(nil), c.report.Attempted...)
	r.Successful = append([]string(nil), c.report.Successful...)

	return r
}

// Start launches the escalation sequence in its own goroutine. It returns
// false when a run is already in flight. done, if non-nil, receives the
// final report exactly once.
func (c *Controller) Start(ctx context.Context, alert Alert, done chan<- Report) bool {
	c.mu.Lock()
	if c.phase == PhaseNotify || c.phase == PhaseCalling || c.phase == PhaseClipWait {
		c.mu.Unlock()
		logger.WarnKV(ctx, "escalation already in progress, ignoring")

		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.aborted = false
	c.phase = PhaseNotify
	c.report = Report{Phase: PhaseNotify, StartedAt: time.Now()}
	c.mu.Unlock()

	go c.run(runCtx, alert, done)

	return true
}

// Abort stops the run: pending sleeps unblock, no further calls are placed
// and the siren is silenced. Already-dispatched notifications are not
// recalled. Safe to call when no run is in flight. It reports whether this
// call newly aborted the run, so repeat callers cannot double-book the
// abort.
func (c *Controller) Abort(ctx context.Context) bool {
	c.mu.Lock()
	running := c.phase == PhaseNotify || c.phase == PhaseCalling || c.phase == PhaseClipWait
	newlyAborted := running && !c.aborted
	if newlyAborted {
		c.aborted = true
		if c.cancel != nil {
			c.cancel()
		}
	}
	c.mu.Unlock()

	if !newlyAborted {
		return false
	}

	logger.WarnKV(ctx, "escalation abort requested, stopping pending calls")
	c.sirenOff(ctx)

	return true
}

// run executes the full sequence.
func (c *Controller) run(ctx context.Context, alert Alert, done chan<- Report) {
	logger.WarnKV(ctx, "starting escalation sequence",
		"sensor", alert.SensorName,
		"zone", alert.ZoneName,
		"score", alert.Score,
		"confirmed_via", alert.ConfirmedVia)

	c.phaseNotify(ctx, alert)

	if c.sleep(ctx, c.cfg.CallGrace) {
		c.phaseCalls(ctx)
	}

	if alert.CameraEventID != "" && ctx.Err() == nil {
		c.phaseClip(ctx, alert.CameraEventID)
	}

	c.finish(ctx, done)
}

// phaseNotify fires the immediate channels: the push notification, the
// camera snapshot when a recording exists, and the siren.
func (c *Controller) phaseNotify(ctx context.Context, alert Alert) {
	c.setPhase(PhaseNotify)
	logger.InfoKV(ctx, "escalation phase 1: immediate notifications")

	if c.notifier != nil {
		err := c.notifier.Notify(ctx, alert)
		c.record(ChannelNotify, err)

		if alert.CameraEventID != "" {
			err = c.notifier.NotifySnapshot(ctx, alert.CameraEventID)
			c.record(ChannelSnapshot, err)
		}
	}

	if c.siren != nil {
		err := c.siren.On(ctx)
		c.record(ChannelSiren, err)
	}
}

// phaseCalls places the primary and secondary voice calls with the
// configured delay between them, honoring abort between steps.
func (c *Controller) phaseCalls(ctx context.Context) {
	if c.caller == nil {
		return
	}

	c.setPhase(PhaseCalling)
	logger.InfoKV(ctx, "escalation phase 2: voice calls")

	if c.cfg.PrimaryNumber != "" {
		err := c.caller.Call(ctx, c.cfg.PrimaryNumber)
		c.record(ChannelCallPrimary, err)
	}

	if !c.sleep(ctx, c.cfg.CallDelay) {
		logger.WarnKV(ctx, "escalation aborted, skipping secondary call")

		return
	}

	if c.cfg.SecondaryNumber != "" {
		err := c.caller.Call(ctx, c.cfg.SecondaryNumber)
		c.record(ChannelCallSecondary, err)
	}
}

// phaseClip polls for the camera clip and sends it when it becomes
// available within the wait cap.
func (c *Controller) phaseClip(ctx context.Context, eventID string) {
	if c.clips == nil || c.notifier == nil {
		return
	}

	c.setPhase(PhaseClipWait)
	logger.InfoKV(ctx, "escalation phase 3: camera clip", "event_id", eventID)

	deadline := time.Now().Add(c.cfg.ClipMaxWait)
	for {
		ready, err := c.clips.ClipReady(ctx, eventID)
		if err != nil {
			logger.WarnKV(ctx, "clip availability check failed", "error", err)
		}

		if ready {
			err = c.notifier.NotifyClip(ctx, eventID)
			c.record(ChannelClip, err)

			return
		}

		if time.Now().After(deadline) {
			logger.WarnKV(ctx, "camera clip not ready within wait cap", "event_id", eventID)
			c.record(ChannelClip, context.DeadlineExceeded)

			return
		}

		if !c.sleep(ctx, c.cfg.ClipPollInterval) {
			return
		}
	}
}

// finish closes the run, records the final phase and hands out the report.
func (c *Controller) finish(ctx context.Context, done chan<- Report) {
	c.mu.Lock()
	if c.aborted {
		c.phase = PhaseAborted
	} else {
		c.phase = PhaseDone
	}

	c.report.Phase = c.phase
	c.report.FinishedAt = time.Now()
	report := c.report
	report.Attempted = append([]string(nil), c.report.Attempted...)
	report.Successful = append([]string(nil), c.report.Successful...)

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	logger.InfoKV(ctx, "escalation complete",
		"phase", string(report.Phase),
		"attempted", report.Attempted,
		"successful", report.Successful)

	if done != nil {
		done <- report
	}
}

// setPhase updates the phase unless the run was aborted.
func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.aborted {
		c.phase = p
	}
}

// record books a channel attempt and its outcome.
func (c *Controller) record(channel string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.report.Attempted = append(c.report.Attempted, channel)
	if err == nil {
		c.report.Successful = append(c.report.Successful, channel)

		return
	}

	logger.ErrorKV(context.Background(), "escalation channel failed",
		"channel", channel,
		"error", err)
}

// sleep waits for d or until the run is cancelled. Returns false on cancel.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// sirenOff silences the siren, logging failures.
func (c *Controller) sirenOff(ctx context.Context) {
	if c.siren == nil {
		return
	}

	if err := c.siren.Off(ctx); err != nil {
		logger.ErrorKV(ctx, "failed to silence siren", "error", err)
	}
}

// Silence turns the siren off without aborting the rest of the run.
func (c *Controller) Silence(ctx context.Context) {
	c.sirenOff(ctx)
}
