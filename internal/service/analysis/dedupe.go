package analysis

import "pillscout/internal/model"

// Dedupe keeps one detection per class. The kept value is the last one seen
// for that class; classes are ordered by their first occurrence. Confidence
// plays no part.
func Dedupe(detections []model.Detection) []model.Detection {
	index := make(map[string]int, len(detections))
	out := make([]model.Detection, 0, len(detections))

	for _, det := range detections {
		if i, ok := index[det.Class]; ok {
			out[i] = det
			continue
		}
		index[det.Class] = len(out)
		out = append(out, det)
	}
	return out
}

// DedupeHighestConfidence keeps the most confident detection per class,
// with the same ordering as Dedupe. Ties keep the earlier detection.
func DedupeHighestConfidence(detections []model.Detection) []model.Detection {
	index := make(map[string]int, len(detections))
	out := make([]model.Detection, 0, len(detections))

	for _, det := range detections {
		if i, ok := index[det.Class]; ok {
			if det.Confidence > out[i].Confidence {
				out[i] = det
			}
			continue
		}
		index[det.Class] = len(out)
		out = append(out, det)
	}
	return out
}
