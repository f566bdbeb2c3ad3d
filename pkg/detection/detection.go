// Package detection runs pretrained object detection networks through
// OpenCV's dnn module and adapts their output to guidance.DetectedObject.
package detection

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-guide/pkg/guidance"
)

// Result is one detected object in normalized image coordinates.
// X and Y are the top-left corner.
type Result struct {
	X, Y       float64
	W, H       float64
	Confidence float64
	ClassID    int
	Label      string
}

// Center returns the center point of the detection.
func (r Result) Center() (x, y float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Area returns the area of the bounding box.
func (r Result) Area() float64 {
	return r.W * r.H
}

// Box converts the result to a clamped guidance.BoundingBox.
func (r Result) Box() *guidance.BoundingBox {
	return &guidance.BoundingBox{
		Top:    clamp01(r.Y),
		Left:   clamp01(r.X),
		Bottom: clamp01(r.Y + r.H),
		Right:  clamp01(r.X + r.W),
	}
}

// Object converts the result to a guidance.DetectedObject.
func (r Result) Object() guidance.DetectedObject {
	return guidance.DetectedObject{
		Label:      r.Label,
		Confidence: r.Confidence,
		Box:        r.Box(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Backend is a loaded detection network.
type Backend interface {
	// Detect finds objects in a JPEG image.
	Detect(jpeg []byte) ([]Result, error)

	// Close releases resources.
	Close() error
}

// Model names accepted by Config.Model.
const (
	ModelYOLO = "yolo"
	ModelSSD  = "ssd"
)

// Config holds detector configuration.
type Config struct {
	Model            string  `yaml:"model" json:"model"`
	ModelPath        string  `yaml:"model_path" json:"model_path"`
	ConfigPath       string  `yaml:"config_path" json:"config_path"` // SSD graph text (pbtxt)
	LabelsPath       string  `yaml:"labels_path" json:"labels_path"` // optional, one label per line
	ConfidenceThresh float64 `yaml:"confidence" json:"confidence"`
	NMSThresh        float64 `yaml:"nms" json:"nms"`
	InputWidth       int     `yaml:"input_width" json:"input_width"`
	InputHeight      int     `yaml:"input_height" json:"input_height"`
}

// DefaultConfig returns YOLOv8n defaults.
func DefaultConfig() Config {
	return Config{
		Model:            ModelYOLO,
		ModelPath:        "models/yolov8n.onnx",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       640,
		InputHeight:      640,
	}
}

// DefaultSSDConfig returns SSD MobileNet v2 (COCO) defaults.
func DefaultSSDConfig() Config {
	return Config{
		Model:            ModelSSD,
		ModelPath:        "models/ssd_mobilenet_v2_coco.pb",
		ConfigPath:       "models/ssd_mobilenet_v2_coco.pbtxt",
		ConfidenceThresh: 0.5,
		NMSThresh:        0.45,
		InputWidth:       300,
		InputHeight:      300,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.Model != ModelYOLO && c.Model != ModelSSD {
		errs = append(errs, fmt.Errorf("model must be %q or %q, got %q", ModelYOLO, ModelSSD, c.Model))
	}
	if c.ModelPath == "" {
		errs = append(errs, errors.New("model_path is required"))
	}
	if c.ConfidenceThresh < 0 || c.ConfidenceThresh > 1 {
		errs = append(errs, fmt.Errorf("confidence must be in [0,1], got %v", c.ConfidenceThresh))
	}
	if c.NMSThresh <= 0 || c.NMSThresh > 1 {
		errs = append(errs, fmt.Errorf("nms must be in (0,1], got %v", c.NMSThresh))
	}
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		errs = append(errs, fmt.Errorf("input size must be positive, got %dx%d", c.InputWidth, c.InputHeight))
	}
	return errors.Join(errs...)
}

// Open loads the backend named by cfg.Model.
func Open(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detection: invalid config: %w", err)
	}
	switch cfg.Model {
	case ModelSSD:
		return NewSSD(cfg)
	default:
		return NewYOLO(cfg)
	}
}
