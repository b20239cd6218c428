package guardian

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/logger"
	"github.com/dverna/alarm-guardian/internal/monitor"
)

// Request is one line of the JSON-lines command feed.
type Request struct {
	// Op selects the operation: arm, disarm, event, trigger, silence,
	// clear_fault, battery, health, status, reset_statistics.
	Op string `json:"op"`
	// Mode is the armed mode for arm.
	Mode string `json:"mode,omitempty"`
	// Ignore lists sensors excluded from the arm cycle (force arm).
	Ignore []string `json:"ignore,omitempty"`
	// Sensor identifies the sensor for event and battery.
	Sensor string `json:"sensor,omitempty"`
	// SensorType is the classified type for event.
	SensorType string `json:"sensor_type,omitempty"`
	// Confidence is the detection confidence for camera events.
	Confidence float64 `json:"confidence,omitempty"`
	// CameraEvent references the camera recording backing the event.
	CameraEvent string `json:"camera_event,omitempty"`
	// Level is the battery percentage for battery.
	Level int `json:"level,omitempty"`
	// Name is the display name for battery.
	Name string `json:"name,omitempty"`
	// Offline and Total describe the sensor health sample for health.
	Offline int `json:"offline,omitempty"`
	Total   int `json:"total,omitempty"`
	// Reason is the free-form detail for trigger.
	Reason string `json:"reason,omitempty"`
}

// Response is one line of the JSON-lines output stream.
type Response struct {
	// Type is "ok", "error", "status" or "transition".
	Type string `json:"type"`
	// Op echoes the request operation on ok/error responses.
	Op string `json:"op,omitempty"`
	// Error is the failure detail on error responses.
	Error string `json:"error,omitempty"`
	// Status is the snapshot on status responses.
	Status *Status `json:"status,omitempty"`
	// Transition is the state change on transition responses.
	Transition *TransitionLine `json:"transition,omitempty"`
}

// TransitionLine is the wire form of a state transition.
type TransitionLine struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Cause  string `json:"cause"`
	Sensor string `json:"sensor,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Feed drives a Service from a JSON-lines request stream and publishes
// responses and state transitions as JSON lines.
type Feed struct {
	svc *Service

	// mu serializes output lines: responses from the reader goroutine and
	// transitions from the service goroutine share one writer.
	mu  sync.Mutex
	enc *json.Encoder
}

// NewFeed wires a feed around the service. It registers the transition
// hook; call it before Service.Run starts.
func NewFeed(svc *Service, out io.Writer) *Feed {
	f := &Feed{
		svc: svc,
		enc: json.NewEncoder(out),
	}

	svc.SetTransitionHook(func(tr alarm.Transition) {
		f.emit(Response{
			Type: "transition",
			Transition: &TransitionLine{
				From:   string(tr.From),
				To:     string(tr.To),
				Cause:  string(tr.Cause),
				Sensor: tr.Sensor,
				Reason: tr.Reason,
			},
		})
	})

	return f
}

// Serve reads requests until EOF or context cancellation.
func (f *Feed) Serve(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			f.emit(Response{Type: "error", Error: fmt.Sprintf("bad request: %v", err)})

			continue
		}

		f.dispatch(ctx, req)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}

	return nil
}

// dispatch executes one request and emits its response.
func (f *Feed) dispatch(ctx context.Context, req Request) {
	var err error

	switch req.Op {
	case "arm":
		err = f.svc.Arm(ctx, alarm.Mode(req.Mode), req.Ignore...)
	case "disarm":
		err = f.svc.Disarm(ctx)
	case "event":
		err = f.svc.HandleSensorEvent(ctx, req.Sensor, event.Type(req.SensorType), req.Confidence, req.CameraEvent)
	case "trigger":
		err = f.svc.ManualTrigger(ctx, req.Reason)
	case "silence":
		err = f.svc.Silence(ctx)
	case "clear_fault":
		err = f.svc.ClearFault(ctx)
	case "battery":
		err = f.svc.ObserveBattery(ctx, monitor.BatteryReading{
			SensorID: req.Sensor,
			Name:     req.Name,
			Level:    req.Level,
		})
	case "health":
		err = f.svc.ObserveSensorHealth(ctx, req.Offline, req.Total)
	case "reset_statistics":
		err = f.svc.ResetStatistics(ctx)
	case "status":
		var status Status

		status, err = f.svc.Status(ctx)
		if err == nil {
			f.emit(Response{Type: "status", Op: req.Op, Status: &status})

			return
		}
	default:
		err = fmt.Errorf("unknown op %q", req.Op)
	}

	if err != nil {
		f.emit(Response{Type: "error", Op: req.Op, Error: err.Error()})

		return
	}

	f.emit(Response{Type: "ok", Op: req.Op})
}

// emit writes one output line.
func (f *Feed) emit(resp Response) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.enc.Encode(resp); err != nil {
		logger.ErrorKV(context.Background(), "failed to write feed response", "error", err)
	}
}
