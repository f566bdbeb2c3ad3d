// Package camera captures frames from a local video device and encodes them
// as JPEG for detection. Settings can be changed at runtime through Manager.
package camera

import (
	"errors"
	"fmt"
)

// Config holds camera configuration parameters.
type Config struct {
	// Device is a numeric index ("0") or a path/URL understood by OpenCV.
	Device string `yaml:"device" json:"device"`

	Width     int `yaml:"width" json:"width"`
	Height    int `yaml:"height" json:"height"`
	Framerate int `yaml:"framerate" json:"framerate"`
	Quality   int `yaml:"quality" json:"quality"` // JPEG quality 1-100

	// Brightness is passed to the driver (-1.0 to +1.0, 0 = driver default).
	Brightness float64 `yaml:"brightness" json:"brightness"`

	// ZoomLevel is a centered digital crop factor (1.0 to 4.0).
	ZoomLevel float64 `yaml:"zoom_level" json:"zoom_level"`

	// Mirror flips frames horizontally, for front-facing cameras.
	Mirror bool `yaml:"mirror" json:"mirror"`
}

// Limits for runtime updates.
const (
	MaxWidth  = 3840
	MaxHeight = 2160
	MaxZoom   = 4.0
)

// DefaultConfig returns a 640x480 speed-prioritized configuration.
// Detection models downscale anyway, so higher resolutions only add latency.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		ZoomLevel: 1.0,
	}
}

// Validate checks if the config values are within valid ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Device == "" {
		errs = append(errs, errors.New("device is required"))
	}
	if c.Width < 160 || c.Width > MaxWidth {
		errs = append(errs, fmt.Errorf("width must be between 160 and %d", MaxWidth))
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errs = append(errs, fmt.Errorf("height must be between 120 and %d", MaxHeight))
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errs = append(errs, errors.New("framerate must be between 1 and 120"))
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, errors.New("quality must be between 1 and 100"))
	}
	if c.Brightness < -1.0 || c.Brightness > 1.0 {
		errs = append(errs, errors.New("brightness must be between -1.0 and 1.0"))
	}
	if c.ZoomLevel < 1.0 || c.ZoomLevel > MaxZoom {
		errs = append(errs, fmt.Errorf("zoom_level must be between 1.0 and %.1f", MaxZoom))
	}
	return errors.Join(errs...)
}
