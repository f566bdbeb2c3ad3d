package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// SSD runs a TensorFlow SSD MobileNet graph trained on COCO.
type SSD struct {
	net       gocv.Net
	config    Config
	labels    []string
	mu        sync.Mutex
	inputSize image.Point
}

// NewSSD loads a frozen TensorFlow graph and its text config.
func NewSSD(cfg Config) (*SSD, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	var labels []string
	if cfg.LabelsPath != "" {
		l, err := LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = l
	}

	net := gocv.ReadNet(cfg.ModelPath, cfg.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load SSD model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &SSD{
		net:       net,
		config:    cfg,
		labels:    labels,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the JPEG image.
func (d *SSD) Detect(jpeg []byte) ([]Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	blob := gocv.BlobFromImage(img, 1.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	return ssdResults(data, d.config.ConfidenceThresh, d.label), nil
}

func (d *SSD) label(id int) string {
	if d.labels != nil {
		return labelFor(d.labels, id)
	}
	if name := TFClassName(id); name != "" {
		return name
	}
	return fmt.Sprintf("class %d", id)
}

// Close releases the network.
func (d *SSD) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// ssdResults parses the [1,1,N,7] DetectionOutput tensor. Each row is
// [batch, class, score, left, top, right, bottom] with normalized corners.
func ssdResults(data []float32, thresh float64, label func(int) string) []Result {
	var out []Result
	for i := 0; i+7 <= len(data); i += 7 {
		score := float64(data[i+2])
		if score < thresh {
			continue
		}
		class := int(data[i+1])
		left, top := float64(data[i+3]), float64(data[i+4])
		right, bottom := float64(data[i+5]), float64(data[i+6])
		out = append(out, Result{
			X:          left,
			Y:          top,
			W:          right - left,
			H:          bottom - top,
			Confidence: score,
			ClassID:    class,
			Label:      label(class),
		})
	}
	return out
}
