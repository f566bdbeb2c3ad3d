package guidance

import (
	"fmt"
	"sort"
	"strings"
)

// SceneContext renders objects as "{label} at {direction}" joined by ", ",
// in detection order and without deduplication. Objects without a box are
// rendered as the bare label.
//
// When limit > 0 only the limit most confident objects are kept; their
// relative order is preserved.
func SceneContext(objects []DetectedObject, buckets DirectionBuckets, limit int) string {
	objects = topN(objects, limit)
	parts := make([]string, 0, len(objects))
	for _, obj := range objects {
		phrase := buckets.Phrase(obj.Box)
		if phrase == "" {
			parts = append(parts, obj.Label)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s at %s", obj.Label, phrase))
	}
	return strings.Join(parts, ", ")
}

func topN(objects []DetectedObject, n int) []DetectedObject {
	if n <= 0 || len(objects) <= n {
		return objects
	}
	idx := make([]int, len(objects))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return objects[idx[a]].Confidence > objects[idx[b]].Confidence
	})
	keep := idx[:n]
	sort.Ints(keep)
	out := make([]DetectedObject, 0, n)
	for _, i := range keep {
		out = append(out, objects[i])
	}
	return out
}

// Summarize counts objects by label: "2 cars, person". Labels appear in
// order of first sighting.
func Summarize(objects []DetectedObject) string {
	if len(objects) == 0 {
		return "No objects detected in view"
	}
	counts := make(map[string]int)
	var order []string
	for _, obj := range objects {
		if counts[obj.Label] == 0 {
			order = append(order, obj.Label)
		}
		counts[obj.Label]++
	}
	parts := make([]string, 0, len(order))
	for _, label := range order {
		if n := counts[label]; n > 1 {
			parts = append(parts, fmt.Sprintf("%d %ss", n, label))
		} else {
			parts = append(parts, label)
		}
	}
	return strings.Join(parts, ", ")
}

// FilterConfidence drops objects at or below min.
func FilterConfidence(objects []DetectedObject, min float64) []DetectedObject {
	out := make([]DetectedObject, 0, len(objects))
	for _, obj := range objects {
		if obj.Confidence > min {
			out = append(out, obj)
		}
	}
	return out
}
