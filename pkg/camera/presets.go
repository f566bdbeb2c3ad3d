package camera

import "slices"

const (
	PresetDefault = "default"
	PresetFast    = "fast"
	PresetQuality = "quality"
	PresetNight   = "night"
	PresetZoom2x  = "zoom2x"
)

// presets adjust DefaultConfig for a viewing condition.
var presets = map[string]func(*Config){
	PresetDefault: func(*Config) {},
	// Lower latency for the detection loop on slow machines.
	PresetFast: func(c *Config) {
		c.Width, c.Height, c.Quality = 320, 240, 60
	},
	// 720p for scene descriptions.
	PresetQuality: func(c *Config) {
		c.Width, c.Height, c.Quality = 1280, 720, 90
	},
	// Dim indoor scenes.
	PresetNight: func(c *Config) {
		c.Brightness = 0.4
		c.Framerate = 15
	},
	PresetZoom2x: func(c *Config) {
		c.ZoomLevel = 2.0
	},
}

// PresetNames lists the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Preset returns the named configuration.
func Preset(name string) (Config, bool) {
	tweak, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	cfg := DefaultConfig()
	tweak(&cfg)
	return cfg, true
}
