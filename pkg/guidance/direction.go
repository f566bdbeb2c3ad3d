package guidance

// Direction is the horizontal bucket an object falls into.
type Direction string

const (
	DirectionNone   Direction = ""
	DirectionLeft   Direction = "left"
	DirectionCenter Direction = "center"
	DirectionRight  Direction = "right"
)

// Phrase returns the spoken form of the direction.
func (d Direction) Phrase() string {
	switch d {
	case DirectionLeft:
		return "on your left"
	case DirectionRight:
		return "on your right"
	case DirectionCenter:
		return "in front of you"
	default:
		return ""
	}
}

// DirectionBuckets partitions the normalized horizontal center into
// left, center and right. Values equal to a threshold map to center.
type DirectionBuckets struct {
	Left  float64 `yaml:"left" json:"left"`
	Right float64 `yaml:"right" json:"right"`
}

// DefaultBuckets returns the 0.33 / 0.67 split.
func DefaultBuckets() DirectionBuckets {
	return DirectionBuckets{Left: 0.33, Right: 0.67}
}

// Of buckets a bounding box. A nil box has no direction.
func (b DirectionBuckets) Of(box *BoundingBox) Direction {
	if box == nil {
		return DirectionNone
	}
	x := box.CenterX()
	switch {
	case x < b.Left:
		return DirectionLeft
	case x > b.Right:
		return DirectionRight
	default:
		return DirectionCenter
	}
}

// Phrase is shorthand for b.Of(box).Phrase().
func (b DirectionBuckets) Phrase(box *BoundingBox) string {
	return b.Of(box).Phrase()
}
