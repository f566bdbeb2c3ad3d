package guidance

import "testing"

func box(left, right float64) *BoundingBox {
	return &BoundingBox{Top: 0.2, Left: left, Bottom: 0.8, Right: right}
}

func TestDirectionBuckets(t *testing.T) {
	b := DefaultBuckets()

	tests := []struct {
		name   string
		box    *BoundingBox
		want   Direction
		phrase string
	}{
		{"far left", box(0.0, 0.2), DirectionLeft, "on your left"},
		{"just left of threshold", box(0.3, 0.35), DirectionLeft, "on your left"},
		{"left boundary is center", box(0.33, 0.33), DirectionCenter, "in front of you"},
		{"center", box(0.4, 0.6), DirectionCenter, "in front of you"},
		{"right boundary is center", box(0.67, 0.67), DirectionCenter, "in front of you"},
		{"just right of threshold", box(0.66, 0.7), DirectionRight, "on your right"},
		{"far right", box(0.8, 1.0), DirectionRight, "on your right"},
		{"wide box centered", box(0.0, 1.0), DirectionCenter, "in front of you"},
		{"no box", nil, DirectionNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.Of(tt.box)
			if got != tt.want {
				t.Errorf("Of() = %q, want %q", got, tt.want)
			}
			if p := b.Phrase(tt.box); p != tt.phrase {
				t.Errorf("Phrase() = %q, want %q", p, tt.phrase)
			}
		})
	}
}

func TestDirectionBucketsConfigurable(t *testing.T) {
	b := DirectionBuckets{Left: 0.2, Right: 0.8}
	if got := b.Of(box(0.2, 0.3)); got != DirectionCenter {
		t.Errorf("center x=0.25 with left=0.2: got %q, want center", got)
	}
	if got := b.Of(box(0.7, 0.8)); got != DirectionCenter {
		t.Errorf("center x=0.75 with right=0.8: got %q, want center", got)
	}
	if got := b.Of(box(0.0, 0.3)); got != DirectionLeft {
		t.Errorf("center x=0.15: got %q, want left", got)
	}
}
