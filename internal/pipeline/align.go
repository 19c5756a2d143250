package pipeline

import (
	"fmt"
	"sort"

	"vidscribe/internal/domain/model"
	"vidscribe/internal/domain/ports/adapter"
)

// AlignSpeakers assigns each segment the speaker whose turns overlap it the
// most. Labels are "Speaker N", numbered by first appearance in segment order.
// Segments no turn overlaps keep empty speaker fields. The input is not modified.
func AlignSpeakers(segments []model.Segment, turns []adapter.Turn) []model.Segment {
	out := make([]model.Segment, len(segments))
	copy(out, segments)
	if len(turns) == 0 {
		return out
	}

	sorted := make([]adapter.Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	labels := map[string]string{}
	for i := range out {
		s := &out[i]
		overlap := map[string]int64{}
		var order []string
		for _, t := range sorted {
			ts, te := secondsToMS(t.Start), secondsToMS(t.End)
			if ts >= s.EndMS {
				break
			}
			ov := min(te, s.EndMS) - max(ts, s.StartMS)
			if ov <= 0 || t.Speaker == "" {
				continue
			}
			if _, seen := overlap[t.Speaker]; !seen {
				order = append(order, t.Speaker)
			}
			overlap[t.Speaker] += ov
		}
		best, bestOv := "", int64(0)
		for _, spk := range order {
			if overlap[spk] > bestOv {
				best, bestOv = spk, overlap[spk]
			}
		}
		if best == "" {
			s.SpeakerID, s.SpeakerLabel = "", ""
			continue
		}
		label, ok := labels[best]
		if !ok {
			label = fmt.Sprintf("Speaker %d", len(labels)+1)
			labels[best] = label
		}
		s.SpeakerID, s.SpeakerLabel = best, label
	}
	return out
}
