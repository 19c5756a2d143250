package model

import "strings"

// ModelRanking lists acceptable transcription models best first.
type ModelRanking []string

func normModel(m string) string { return strings.ToLower(strings.TrimSpace(m)) }

// Rank returns the position of m in the ranking, or -1 when unranked.
func (r ModelRanking) Rank(m string) int {
	m = normModel(m)
	for i, candidate := range r {
		if normModel(candidate) == m {
			return i
		}
	}
	return -1
}

// Outranks reports whether candidate is strictly better than recorded.
// An unranked candidate never outranks; an unranked recorded model is
// outranked by any ranked candidate.
func (r ModelRanking) Outranks(candidate, recorded string) bool {
	ci := r.Rank(candidate)
	if ci < 0 {
		return false
	}
	ri := r.Rank(recorded)
	if ri < 0 {
		return true
	}
	return ci < ri
}

// AtLeast returns every ranked model that candidate does not outrank, i.e. the
// models a transcript may carry without needing reprocessing. It returns nil for
// an unranked candidate, which outranks nothing.
func (r ModelRanking) AtLeast(candidate string) []string {
	ci := r.Rank(candidate)
	if ci < 0 {
		return nil
	}
	out := make([]string, 0, ci+1)
	for _, m := range r[:ci+1] {
		out = append(out, normModel(m))
	}
	return out
}
