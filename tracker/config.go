package tracker

import (
	"encoding/json"
	"fmt"

	"go.uber.org/multierr"
	goutils "go.viam.com/utils"
)

// LEDConfig is one LED's position and outward normal, in a device's own
// rigid frame, as loaded from JSON.
type LEDConfig struct {
	PositionMM [3]float64 `json:"position_mm"`
	Normal     [3]float64 `json:"normal"`
}

// DeviceConfig describes one tracked device to add at startup.
type DeviceConfig struct {
	ID            int         `json:"id"`
	Kind          string      `json:"kind"` // "hmd" or "controller"
	FusionToModel [7]float64  `json:"fusion_to_model"` // x,y,z,qw,qx,qy,qz
	LEDs          []LEDConfig `json:"leds"`
}

// Validate checks a device config's required fields.
func (c *DeviceConfig) Validate(path string) error {
	if c.Kind != "hmd" && c.Kind != "controller" {
		return fmt.Errorf("%s.kind: must be \"hmd\" or \"controller\", got %q", path, c.Kind)
	}
	if len(c.LEDs) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "leds")
	}
	return nil
}

// SensorConfig describes one camera sensor to attach at startup.
type SensorConfig struct {
	ID             string  `json:"id"`
	DevicePath     string  `json:"device_path"`
	Width          uint32  `json:"width"`
	Height         uint32  `json:"height"`
	FocalLengthX   float64 `json:"focal_length_x"`
	FocalLengthY   float64 `json:"focal_length_y"`
	PrincipalX     float64 `json:"principal_x"`
	PrincipalY     float64 `json:"principal_y"`
}

// Validate checks a sensor config's required fields.
func (c *SensorConfig) Validate(path string) error {
	if c.ID == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "id")
	}
	if c.DevicePath == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "device_path")
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("%s: width and height must be non-zero", path)
	}
	return nil
}

// Config is the tracker's top-level configuration.
type Config struct {
	Policy  string         `json:"policy"` // "pose_update" or "position_update"
	Devices []DeviceConfig `json:"devices"`
	Sensors []SensorConfig `json:"sensors"`
}

// Validate checks every device and sensor sub-config, collecting every
// failure found rather than stopping at the first so a caller sees the
// whole set of problems in one pass.
func (c *Config) Validate(path string) error {
	var errs error
	for i, d := range c.Devices {
		errs = multierr.Append(errs, d.Validate(fmt.Sprintf("%s.devices.%d", path, i)))
	}
	for i, s := range c.Sensors {
		errs = multierr.Append(errs, s.Validate(fmt.Sprintf("%s.sensors.%d", path, i)))
	}
	return errs
}

// ParseConfig decodes and validates a tracker config from JSON.
func ParseConfig(path string, data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(path); err != nil {
		return nil, err
	}
	return &c, nil
}
