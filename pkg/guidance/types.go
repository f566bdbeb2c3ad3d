// Package guidance implements the guidance coordinator: the state machine that
// turns speech recognitions and periodic object detections into spoken
// activation feedback, hazard warnings and answers to free-form questions.
//
// The coordinator talks to the outside world only through the capability
// interfaces in this package (SpeechInput, SpeechOutput, Detector,
// QueryBackend, CaptureDevice). Concrete implementations live in
// pkg/speech, pkg/detection, pkg/camera and pkg/assistant.
package guidance

import "time"

// BoundingBox is a detection box in normalized [0,1] image coordinates.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
}

// CenterX returns the horizontal center of the box.
func (b BoundingBox) CenterX() float64 {
	return (b.Left + b.Right) / 2
}

// Area returns the normalized area of the box.
func (b BoundingBox) Area() float64 {
	return (b.Right - b.Left) * (b.Bottom - b.Top)
}

// DetectedObject is one detector result. Box is nil when the detector
// reported no geometry.
type DetectedObject struct {
	Label      string       `json:"label"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// Frame is a single captured camera image.
type Frame struct {
	Data       []byte // JPEG
	Width      int
	Height     int
	CapturedAt time.Time
}

// Recognition is one speech recognition event. Candidates are ordered best
// first; only the first is consulted.
type Recognition struct {
	Candidates []string
	Err        error
}

// Utterance returns the first candidate, or "".
func (r Recognition) Utterance() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return r.Candidates[0]
}
