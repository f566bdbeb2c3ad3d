package guidance

import (
	"fmt"
	"strings"
)

// HazardRule decides which detections warrant an unsolicited warning.
// A label matches when it contains any keyword, case-insensitively, and the
// detection confidence is strictly above Threshold.
type HazardRule struct {
	Keywords  []string `yaml:"keywords" json:"keywords"`
	Threshold float64  `yaml:"threshold" json:"threshold"`
}

// DefaultHazardRule returns the walking hazards checked by default. The
// vehicle keywords are the ones the bundled COCO detectors can report.
func DefaultHazardRule() HazardRule {
	return HazardRule{
		Keywords: []string{
			"stairs", "staircase", "step", "edge", "hole", "obstacle",
			"car", "vehicle", "truck", "bus", "bicycle", "motorcycle",
		},
		Threshold: 0.6,
	}
}

// Matches reports whether obj is a hazard under this rule.
func (r HazardRule) Matches(obj DetectedObject) bool {
	if obj.Confidence <= r.Threshold {
		return false
	}
	label := strings.ToLower(obj.Label)
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(label, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// First returns the first hazard in detection order.
func (r HazardRule) First(objects []DetectedObject) (DetectedObject, bool) {
	for _, obj := range objects {
		if r.Matches(obj) {
			return obj, true
		}
	}
	return DetectedObject{}, false
}

// WarningPrefix starts every hazard warning.
const WarningPrefix = "Careful!"

// Warning formats the spoken hazard warning for obj.
func Warning(obj DetectedObject, buckets DirectionBuckets) string {
	phrase := buckets.Phrase(obj.Box)
	if phrase == "" {
		return fmt.Sprintf("%s %s", WarningPrefix, obj.Label)
	}
	return fmt.Sprintf("%s %s %s", WarningPrefix, obj.Label, phrase)
}

// IsWarning reports whether text is a hazard warning.
func IsWarning(text string) bool {
	return strings.HasPrefix(text, WarningPrefix)
}
