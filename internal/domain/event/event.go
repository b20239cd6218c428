package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
)

// Type is the semantic sensor type assigned by the external classifier.
type Type string

// Known sensor types.
const (
	TypeContact       Type = "contact"
	TypeMotion        Type = "motion"
	TypeRadar         Type = "radar"
	TypeCombinedRadar Type = "combined_radar_pir"
	TypeCameraPerson  Type = "camera_person"
)

// Fixed per-type scores of the classification contract.
const (
	ScoreContact       = 70
	ScoreMotion        = 40
	ScoreRadar         = 60
	ScoreCombinedRadar = 60
	ScoreCameraPerson  = 30
)

// MinPersonConfidence is the detection confidence below which
// camera-person events are rejected before classification.
const MinPersonConfidence = 0.60

// Scope restricts a sensor to specific armed modes.
type Scope string

// Mode-scope tags. Perimeter sensors are implicitly ScopeBoth whenever
// their zone is armed in any mode.
const (
	ScopeBoth     Scope = "both"
	ScopeAwayOnly Scope = "away_only"
	ScopeHomeOnly Scope = "home_only"
)

// Class is the per-sensor classification within a zone.
type Class string

// Sensor classes.
const (
	ClassPerimeter Class = "perimeter"
	ClassInterior  Class = "interior"
	ClassCamera    Class = "camera"
)

var (
	// ErrUnknownType is returned for a sensor type outside the contract.
	ErrUnknownType = errors.New("unknown sensor type")
	// ErrLowConfidence is returned for camera-person detections below the
	// confidence floor. Such events never enter any log.
	ErrLowConfidence = errors.New("person detection confidence below threshold")
)

// SensorEvent is an immutable classified sensor fact. Created at ingestion,
// never mutated afterwards.
type SensorEvent struct {
	// SensorID identifies the originating sensor.
	SensorID string
	// Name is the sensor display name used in notifications.
	Name string
	// Type is the semantic sensor type.
	Type Type
	// ZoneID identifies the zone the sensor belongs to.
	ZoneID string
	// Score is the fixed per-type contribution.
	Score int
	// Confidence is the detection confidence, meaningful only for camera-person.
	Confidence float64
	// Timestamp is when the event was classified.
	Timestamp time.Time
}

// ScoreValue returns the fixed score for a sensor type,
// or an ErrUnknownType error for types outside the contract.
func (t Type) ScoreValue() (int, error) {
	switch t {
	case TypeContact:
		return ScoreContact, nil
	case TypeMotion:
		return ScoreMotion, nil
	case TypeRadar:
		return ScoreRadar, nil
	case TypeCombinedRadar:
		return ScoreCombinedRadar, nil
	case TypeCameraPerson:
		return ScoreCameraPerson, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
	}
}

// VolumetricSubtype maps the type to its volumetric family for the
// diversity predicates: motion stays motion, both radar variants count
// as radar. The empty string means the type is not volumetric.
func (t Type) VolumetricSubtype() Type {
	switch t {
	case TypeMotion:
		return TypeMotion
	case TypeRadar, TypeCombinedRadar:
		return TypeRadar
	default:
		return ""
	}
}

// IsVolumetric reports whether the type belongs to the motion/radar family.
func (t Type) IsVolumetric() bool {
	return t.VolumetricSubtype() != ""
}

// Classify normalizes a raw classified signal into a SensorEvent,
// deriving the score from the type. Camera-person detections below
// MinPersonConfidence are rejected with ErrLowConfidence.
func Classify(sensorID, name string, typ Type, zoneID string, confidence float64, at time.Time) (*SensorEvent, error) {
	score, err := typ.ScoreValue()
	if err != nil {
		return nil, err
	}

	if typ == TypeCameraPerson && confidence < MinPersonConfidence {
		return nil, fmt.Errorf("%w: %.0f%% < %.0f%%", ErrLowConfidence, confidence*100, MinPersonConfidence*100)
	}

	if at.IsZero() {
		at = time.Now()
	}

	return &SensorEvent{
		SensorID:   sensorID,
		Name:       name,
		Type:       typ,
		ZoneID:     zoneID,
		Score:      score,
		Confidence: confidence,
		Timestamp:  at,
	}, nil
}

// Clone returns a copy of the event to avoid leaking internal references.
func (e *SensorEvent) Clone() *SensorEvent {
	if e == nil {
		return nil
	}

	cloned := *e

	return &cloned
}

// ActiveInMode reports whether a sensor with the given scope participates
// in the given armed mode.
func (s Scope) ActiveInMode(mode alarm.Mode) bool {
	switch s {
	case ScopeBoth:
		return true
	case ScopeAwayOnly:
		return mode == alarm.ModeAway
	case ScopeHomeOnly:
		return mode == alarm.ModeHome
	default:
		return false
	}
}
