package detection

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// YOLO runs a YOLOv8 ONNX export.
type YOLO struct {
	net       gocv.Net
	config    Config
	labels    []string
	mu        sync.Mutex
	inputSize image.Point
}

// NewYOLO loads a YOLOv8 model.
func NewYOLO(cfg Config) (*YOLO, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	labels := COCOClasses
	if cfg.LabelsPath != "" {
		l, err := LoadLabels(cfg.LabelsPath)
		if err != nil {
			return nil, err
		}
		labels = l
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load YOLO model from %s", cfg.ModelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &YOLO{
		net:       net,
		config:    cfg,
		labels:    labels,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect finds objects in the JPEG image.
func (d *YOLO) Detect(jpeg []byte) ([]Result, error) {
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

	blob := gocv.BlobFromImage(img, 1.0/255.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// YOLOv8 output is [1, 4+classes, anchors], stored channel-major.
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	dims := output.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	channels, anchors := dims[1], dims[2]

	cands := yoloCandidates(data, anchors, channels, float32(d.config.ConfidenceThresh))
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.rect()
		scores[i] = c.score
	}
	indices := gocv.NMSBoxes(boxes, scores, float32(d.config.ConfidenceThresh), float32(d.config.NMSThresh))

	results := make([]Result, 0, len(indices))
	for _, idx := range indices {
		results = append(results, cands[idx].result(d.inputSize, d.labels))
	}
	return results, nil
}

// Close releases the network.
func (d *YOLO) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// candidate is a pre-NMS box in model input pixels (center format).
type candidate struct {
	cx, cy, w, h float32
	score        float32
	class        int
}

func (c candidate) rect() image.Rectangle {
	return image.Rect(
		int(c.cx-c.w/2), int(c.cy-c.h/2),
		int(c.cx+c.w/2), int(c.cy+c.h/2),
	)
}

// result normalizes by the model input size; the blob is a plain resize so
// normalized coordinates carry over to the source image unchanged.
func (c candidate) result(input image.Point, labels []string) Result {
	inW, inH := float64(input.X), float64(input.Y)
	return Result{
		X:          (float64(c.cx) - float64(c.w)/2) / inW,
		Y:          (float64(c.cy) - float64(c.h)/2) / inH,
		W:          float64(c.w) / inW,
		H:          float64(c.h) / inH,
		Confidence: float64(c.score),
		ClassID:    c.class,
		Label:      labelFor(labels, c.class),
	}
}

// yoloCandidates scans a channel-major YOLOv8 tensor and keeps anchors whose
// best class score reaches thresh.
func yoloCandidates(data []float32, anchors, channels int, thresh float32) []candidate {
	if channels <= 4 || len(data) < anchors*channels {
		return nil
	}
	var out []candidate
	for i := 0; i < anchors; i++ {
		best := float32(0)
		bestClass := 0
		for c := 4; c < channels; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
				bestClass = c - 4
			}
		}
		if best < thresh {
			continue
		}
		out = append(out, candidate{
			cx:    data[0*anchors+i],
			cy:    data[1*anchors+i],
			w:     data[2*anchors+i],
			h:     data[3*anchors+i],
			score: best,
			class: bestClass,
		})
	}
	return out
}
