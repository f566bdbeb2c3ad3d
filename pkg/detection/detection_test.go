package detection

import (
	"context"
	"errors"
	"image"
	"math"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/teslashibe/go-guide/pkg/guidance"
)

const tolerance = 1e-6

func near(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestResultBox(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		want guidance.BoundingBox
	}{
		{
			name: "inside frame",
			r:    Result{X: 0.1, Y: 0.2, W: 0.3, H: 0.4},
			want: guidance.BoundingBox{Top: 0.2, Left: 0.1, Bottom: 0.6, Right: 0.4},
		},
		{
			name: "clamped at edges",
			r:    Result{X: -0.1, Y: 0.8, W: 0.3, H: 0.4},
			want: guidance.BoundingBox{Top: 0.8, Left: 0, Bottom: 1, Right: 0.2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.r.Box()
			if !near(got.Top, tc.want.Top) || !near(got.Left, tc.want.Left) ||
				!near(got.Bottom, tc.want.Bottom) || !near(got.Right, tc.want.Right) {
				t.Errorf("Box() = %+v, want %+v", *got, tc.want)
			}
		})
	}
}

func TestResultCenterAndArea(t *testing.T) {
	r := Result{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}
	x, y := r.Center()
	if !near(x, 0.5) || !near(y, 0.5) {
		t.Errorf("Center() = (%.2f, %.2f), want (0.5, 0.5)", x, y)
	}
	if !near(r.Area(), 0.25) {
		t.Errorf("Area() = %.3f, want 0.25", r.Area())
	}
}

func TestYOLOCandidates(t *testing.T) {
	// Two anchors, two classes: channels = 4 box + 2 scores.
	const anchors, channels = 2, 6
	data := make([]float32, anchors*channels)
	set := func(ch, anchor int, v float32) { data[ch*anchors+anchor] = v }

	// anchor 0: centered box, class 1 wins with 0.8
	set(0, 0, 320)
	set(1, 0, 320)
	set(2, 0, 64)
	set(3, 0, 128)
	set(4, 0, 0.1)
	set(5, 0, 0.8)
	// anchor 1: below threshold
	set(4, 1, 0.3)
	set(5, 1, 0.2)

	cands := yoloCandidates(data, anchors, channels, 0.5)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}
	c := cands[0]
	if c.class != 1 || c.score != 0.8 {
		t.Errorf("candidate = %+v, want class 1 score 0.8", c)
	}

	r := c.result(imagePt(640, 640), []string{"person", "stairs"})
	if r.Label != "stairs" {
		t.Errorf("label = %q, want stairs", r.Label)
	}
	if !near(r.X, 0.45) || !near(r.W, 0.1) || !near(r.Y, 0.4) || !near(r.H, 0.2) {
		t.Errorf("result geometry = %+v", r)
	}

	if got := yoloCandidates(data[:3], anchors, channels, 0.5); got != nil {
		t.Errorf("short tensor should yield nil, got %v", got)
	}
}

func TestSSDResults(t *testing.T) {
	data := []float32{
		0, 1, 0.9, 0.1, 0.2, 0.3, 0.6, // person
		0, 3, 0.3, 0.5, 0.5, 0.6, 0.6, // car, below threshold
		0, 13, 0.7, 0.7, 0.1, 0.9, 0.4, // stop sign
	}
	got := ssdResults(data, 0.5, TFClassName)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Label != "person" || got[1].Label != "stop sign" {
		t.Errorf("labels = %q, %q", got[0].Label, got[1].Label)
	}
	if !near(got[0].W, 0.2) || !near(got[0].H, 0.4) {
		t.Errorf("person geometry = %+v", got[0])
	}
}

func TestTFClassName(t *testing.T) {
	tests := map[int]string{
		1:  "person",
		3:  "car",
		12: "",
		13: "stop sign",
		62: "chair",
		90: "toothbrush",
		0:  "",
		91: "",
	}
	for id, want := range tests {
		if got := TFClassName(id); got != want {
			t.Errorf("TFClassName(%d) = %q, want %q", id, got, want)
		}
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	content := "# custom\nperson\n\nstairs\ndoor\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if len(labels) != 3 || labels[1] != "stairs" {
		t.Errorf("labels = %v", labels)
	}
	if got := labelFor(labels, 7); got != "class 7" {
		t.Errorf("labelFor out of range = %q", got)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default YOLO config invalid: %v", err)
	}
	if err := DefaultSSDConfig().Validate(); err != nil {
		t.Errorf("default SSD config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.Model = "rcnn"
	bad.InputWidth = 0
	if err := bad.Validate(); err == nil {
		t.Error("expected error")
	}
}

type fakeBackend struct {
	results []Result
	err     error
	delay   time.Duration
}

func (f *fakeBackend) Detect(jpeg []byte) ([]Result, error) {
	time.Sleep(f.delay)
	return f.results, f.err
}

func (f *fakeBackend) Close() error { return nil }

func TestAdapterDetect(t *testing.T) {
	backend := &fakeBackend{results: []Result{
		{Label: "person", Confidence: 0.9, X: 0.4, Y: 0.1, W: 0.2, H: 0.8},
		{Label: "cup", Confidence: 0.5, X: 0.1, Y: 0.1, W: 0.1, H: 0.1},
	}}
	a := NewAdapter(backend, 0.5, nil)

	objs, err := a.Detect(context.Background(), guidance.Frame{Data: []byte{1}})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(objs) != 1 || objs[0].Label != "person" {
		t.Fatalf("objects = %+v, want only person", objs)
	}
	if d := guidance.DefaultBuckets().Of(objs[0].Box); d != guidance.DirectionCenter {
		t.Errorf("direction = %q, want center", d)
	}
}

func TestAdapterErrors(t *testing.T) {
	t.Run("backend error", func(t *testing.T) {
		a := NewAdapter(&fakeBackend{err: errors.New("bad frame")}, 0.5, nil)
		if _, err := a.Detect(context.Background(), guidance.Frame{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("deadline", func(t *testing.T) {
		a := NewAdapter(&fakeBackend{delay: 200 * time.Millisecond}, 0.5, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if _, err := a.Detect(ctx, guidance.Frame{}); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("err = %v, want deadline exceeded", err)
		}
	})
}

func imagePt(x, y int) image.Point { return image.Pt(x, y) }

func TestDefaultHazardsCoverCOCO(t *testing.T) {
	rule := guidance.DefaultHazardRule()
	for _, label := range []string{"car", "bus", "truck", "bicycle", "motorcycle"} {
		if !slices.Contains(COCOClasses, label) {
			t.Fatalf("%q missing from COCO classes", label)
		}
		if !rule.Matches(guidance.DetectedObject{Label: label, Confidence: 0.9}) {
			t.Errorf("default hazard rule does not match COCO label %q", label)
		}
	}
}
