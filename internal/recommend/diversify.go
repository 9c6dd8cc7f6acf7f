package recommend

import "github.com/clinscout/backend/internal/contracts"

// diversify reorders a score-sorted candidate list so the first pass
// takes at most one site per bucket, then fills remaining slots by score.
// Input order is preserved within each pass, so the result is stable.
func diversify(sorted []candidate, mode string, limit int) []candidate {
	if mode == contracts.DiversifyNone || limit >= len(sorted) {
		return sorted
	}

	bucketOf := func(c candidate) string {
		switch mode {
		case contracts.DiversifyInstitution:
			if c.site.InstitutionType != "" {
				return c.site.InstitutionType
			}
			return "unknown"
		default:
			return c.site.Region()
		}
	}

	picked := make([]candidate, 0, len(sorted))
	taken := make([]bool, len(sorted))
	seen := make(map[string]bool)

	// First pass: best site of each bucket.
	for i, c := range sorted {
		if len(picked) == limit {
			break
		}
		b := bucketOf(c)
		if seen[b] {
			continue
		}
		seen[b] = true
		taken[i] = true
		picked = append(picked, c)
	}

	// Second pass: fill with the best remaining regardless of bucket.
	for i, c := range sorted {
		if len(picked) == limit {
			break
		}
		if !taken[i] {
			taken[i] = true
			picked = append(picked, c)
		}
	}

	// Keep anything beyond the limit in score order so the caller's
	// final cut still sees the full list.
	for i, c := range sorted {
		if !taken[i] {
			picked = append(picked, c)
		}
	}
	return picked
}
