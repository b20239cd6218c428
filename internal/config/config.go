package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/dverna/alarm-guardian/internal/domain/alarm"
	"github.com/dverna/alarm-guardian/internal/domain/event"
	"github.com/dverna/alarm-guardian/internal/engine/correlation"
	"github.com/dverna/alarm-guardian/internal/engine/profile"
)

const (
	// DefaultConfigFilename is the default filename for guardian settings.
	DefaultConfigFilename = "alarm-guardian.yaml"

	// DefaultExitDelay is the arming exit delay.
	DefaultExitDelay = 30 * time.Second
	// DefaultEntryDelay is the perimeter entry delay.
	DefaultEntryDelay = 30 * time.Second
	// DefaultCorrelationWindow is the fixed per-zone window when adaptive
	// windows are disabled.
	DefaultCorrelationWindow = 60 * time.Second

	// DefaultFilePermissions is the permission for persisted config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")

	// validate is the shared struct validator.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// SensorConfig describes one sensor of a zone.
type SensorConfig struct {
	// ID is the unique sensor identifier.
	ID string `yaml:"id" validate:"required"`
	// Name is the display name used in notifications.
	Name string `yaml:"name"`
	// Class is the sensor class: perimeter, interior or camera.
	Class string `yaml:"class" validate:"required,oneof=perimeter interior camera"`
	// Scope restricts the sensor to armed modes. Empty means both.
	Scope string `yaml:"scope,omitempty" validate:"omitempty,oneof=both away_only home_only"`
}

// ZoneConfig describes one correlation zone.
type ZoneConfig struct {
	// ID is the unique zone identifier.
	ID string `yaml:"id" validate:"required"`
	// Name is the display name used in notifications.
	Name string `yaml:"name"`
	// Profile is the confirmation profile name.
	Profile string `yaml:"profile" validate:"required"`
	// Modes lists the armed modes the zone participates in. Empty means both.
	Modes []string `yaml:"modes,omitempty" validate:"dive,oneof=armed_away armed_home"`
	// WindowMultiplier scales the adaptive window for this zone, 0 means 1.0.
	WindowMultiplier float64 `yaml:"window_multiplier,omitempty" validate:"omitempty,gt=0"`
	// Sensors lists the zone's sensors.
	Sensors []SensorConfig `yaml:"sensors" validate:"required,min=1,dive"`
}

// EscalationConfig holds the escalation timing and targets.
type EscalationConfig struct {
	// CallGrace is the pause before the first voice call.
	CallGrace time.Duration `yaml:"call_grace,omitempty"`
	// CallDelay is the pause between primary and secondary calls.
	CallDelay time.Duration `yaml:"call_delay,omitempty"`
	// ClipPollInterval is the camera clip recheck interval.
	ClipPollInterval time.Duration `yaml:"clip_poll_interval,omitempty"`
	// ClipMaxWait caps the camera clip wait.
	ClipMaxWait time.Duration `yaml:"clip_max_wait,omitempty"`
	// PrimaryNumber is the first number to call. Empty disables the call.
	PrimaryNumber string `yaml:"primary_number,omitempty" validate:"omitempty,e164"`
	// SecondaryNumber is the fallback number. Empty disables the call.
	SecondaryNumber string `yaml:"secondary_number,omitempty" validate:"omitempty,e164"`
}

// MonitoringConfig holds the sensor health thresholds.
type MonitoringConfig struct {
	// BatteryThreshold is the low-battery percentage.
	BatteryThreshold int `yaml:"battery_threshold,omitempty" validate:"omitempty,min=1,max=99"`
	// BatteryAlertInterval rate-limits repeated battery alerts per sensor.
	BatteryAlertInterval time.Duration `yaml:"battery_alert_interval,omitempty"`
	// JammingMinDevices is the minimum simultaneous offline count.
	JammingMinDevices int `yaml:"jamming_min_devices,omitempty" validate:"omitempty,min=1"`
	// JammingMinPercent is the minimum offline share, in percent.
	JammingMinPercent int `yaml:"jamming_min_percent,omitempty" validate:"omitempty,min=1,max=100"`
	// WarmupPeriod suppresses jamming detection after startup.
	WarmupPeriod time.Duration `yaml:"warmup_period,omitempty"`
}

// Config is the guardian's full configuration.
type Config struct {
	// LogLevel is the minimum log level: debug, info, warn or error.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	// ExitDelay is the arming exit delay.
	ExitDelay time.Duration `yaml:"exit_delay,omitempty"`
	// EntryDelay is the perimeter entry delay.
	EntryDelay time.Duration `yaml:"entry_delay,omitempty"`
	// CorrelationWindow is the fixed per-zone window. Ignored when
	// AdaptiveWindow is true.
	CorrelationWindow time.Duration `yaml:"correlation_window,omitempty"`
	// AdaptiveWindow enables time-of-day and sensor-type window adaptation.
	AdaptiveWindow bool `yaml:"adaptive_window,omitempty"`
	// GlobalThreshold is the cross-zone confirmation threshold.
	GlobalThreshold int `yaml:"global_threshold,omitempty" validate:"omitempty,min=1"`
	// Zones lists the correlation zones.
	Zones []ZoneConfig `yaml:"zones" validate:"required,min=1,dive"`
	// Escalation configures the response sequence.
	Escalation EscalationConfig `yaml:"escalation,omitempty"`
	// Monitoring configures the sensor health watchers.
	Monitoring MonitoringConfig `yaml:"monitoring,omitempty"`
	// AuditFile is the JSON-lines audit trail path. Empty disables it.
	AuditFile string `yaml:"audit_file,omitempty"`
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path with restricted
// permissions.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the configuration, applies defaults and verifies the
// cross-field constraints the struct tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	applyDefaults(cfg)

	zoneIDs := make(map[string]struct{}, len(cfg.Zones))
	sensorIDs := make(map[string]string)

	for _, z := range cfg.Zones {
		if _, dup := zoneIDs[z.ID]; dup {
			return fmt.Errorf("duplicate zone id %q", z.ID)
		}

		zoneIDs[z.ID] = struct{}{}

		if _, err := profile.Parse(z.Profile); err != nil {
			return fmt.Errorf("zone %q: %w", z.ID, err)
		}

		for _, s := range z.Sensors {
			if owner, dup := sensorIDs[s.ID]; dup {
				return fmt.Errorf("sensor %q appears in zones %q and %q", s.ID, owner, z.ID)
			}

			sensorIDs[s.ID] = z.ID
		}
	}

	return nil
}

// applyDefaults fills unset optional fields.
func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.ExitDelay <= 0 {
		cfg.ExitDelay = DefaultExitDelay
	}

	if cfg.EntryDelay <= 0 {
		cfg.EntryDelay = DefaultEntryDelay
	}

	if cfg.CorrelationWindow <= 0 {
		cfg.CorrelationWindow = DefaultCorrelationWindow
	}

	if cfg.GlobalThreshold <= 0 {
		cfg.GlobalThreshold = correlation.DefaultGlobalThreshold
	}
}

// BuildZones converts the zone configuration into correlation zones. The
// configuration must have been validated first.
func (c *Config) BuildZones() []*correlation.Zone {
	zones := make([]*correlation.Zone, 0, len(c.Zones))

	for _, zc := range c.Zones {
		p, _ := profile.Parse(zc.Profile) //nolint:errcheck // Checked by Validate.

		z := &correlation.Zone{
			ID:               zc.ID,
			Name:             zc.Name,
			Profile:          p,
			Sensors:          make(map[string]correlation.Sensor, len(zc.Sensors)),
			Window:           c.CorrelationWindow,
			WindowMultiplier: zc.WindowMultiplier,
		}

		if z.Name == "" {
			z.Name = zc.ID
		}

		for _, mode := range zc.Modes {
			z.ArmedModes = append(z.ArmedModes, alarm.Mode(mode))
		}

		if len(z.ArmedModes) == 0 {
			z.ArmedModes = []alarm.Mode{alarm.ModeAway, alarm.ModeHome}
		}

		for _, sc := range zc.Sensors {
			scope := event.Scope(sc.Scope)
			if sc.Scope == "" {
				scope = event.ScopeBoth
			}

			name := sc.Name
			if name == "" {
				name = sc.ID
			}

			z.Sensors[sc.ID] = correlation.Sensor{
				ID:    sc.ID,
				Name:  name,
				Class: event.Class(sc.Class),
				Scope: scope,
			}
		}

		zones = append(zones, z)
	}

	return zones
}

// SensorZone returns the zone id owning the sensor, "" when unknown.
func (c *Config) SensorZone(sensorID string) string {
	for _, z := range c.Zones {
		for _, s := range z.Sensors {
			if s.ID == sensorID {
				return z.ID
			}
		}
	}

	return ""
}
