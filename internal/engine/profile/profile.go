package profile

import (
	"errors"
	"fmt"

	"github.com/dverna/alarm-guardian/internal/domain/event"
)

// Profile is a zone confirmation profile: a local score threshold plus a
// qualitative predicate over the events of the zone's current window.
// The set of profiles is closed, no plugin mechanism exists.
type Profile string

// Supported profiles.
const (
	// PerimeterOnly confirms on two or more contact events.
	PerimeterOnly Profile = "perimeter_only"
	// PerimeterPlus confirms on a contact event backed by a volumetric one.
	PerimeterPlus Profile = "perimeter_plus"
	// Rich confirms on a contact event or a confident person detection.
	Rich Profile = "rich"
	// VolumetricDiverse confirms on two distinct volumetric subtypes.
	VolumetricDiverse Profile = "volumetric_diverse"
)

// Local thresholds per profile.
const (
	thresholdPerimeterOnly = 140
	thresholdDefault       = 100
)

// ErrUnknownProfile is returned when parsing an unsupported profile name.
var ErrUnknownProfile = errors.New("unknown zone profile")

// Parse validates a profile name from configuration.
func Parse(s string) (Profile, error) {
	switch p := Profile(s); p {
	case PerimeterOnly, PerimeterPlus, Rich, VolumetricDiverse:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
}

// Threshold returns the local score threshold for the profile.
func (p Profile) Threshold() int {
	if p == PerimeterOnly {
		return thresholdPerimeterOnly
	}

	return thresholdDefault
}

// Qualifies evaluates the profile's qualitative predicate over the events
// of the zone's current window. It is independent of the score threshold:
// confirmation requires both.
func (p Profile) Qualifies(events []*event.SensorEvent) bool {
	var (
		contacts   int
		volumetric int
		persons    int
		subtypes   = make(map[event.Type]struct{}, 2)
	)

	for _, e := range events {
		switch {
		case e.Type == event.TypeContact:
			contacts++
		case e.Type == event.TypeCameraPerson:
			// Low-confidence detections were rejected at classification,
			// every person event here already passed the floor.
			persons++
		}

		if sub := e.Type.VolumetricSubtype(); sub != "" {
			volumetric++
			subtypes[sub] = struct{}{}
		}
	}

	switch p {
	case PerimeterOnly:
		return contacts >= 2
	case PerimeterPlus:
		return contacts >= 1 && volumetric >= 1
	case Rich:
		return contacts >= 1 || persons >= 1
	case VolumetricDiverse:
		return len(subtypes) >= 2
	default:
		return false
	}
}

// Confirms reports whether the zone confirms locally: the score threshold
// must be met and the qualitative predicate must hold.
func (p Profile) Confirms(score int, events []*event.SensorEvent) bool {
	return score >= p.Threshold() && p.Qualifies(events)
}
