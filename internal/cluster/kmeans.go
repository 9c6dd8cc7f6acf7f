// Package cluster groups sites into segments by metric and location
// similarity. The model is a batch artifact: recomputed on demand,
// committed as an immutable version, and read by the recommendation
// engine as an optional annotation.
package cluster

import (
	"math"
	"math/rand"
	"sort"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// siteVec is one site's feature vector. Features mix performance
// metrics with location, min-max normalized before clustering so no
// single dimension dominates the distance.
type siteVec struct {
	SiteID string
	Vec    []float64
}

const featureDim = 6

// featureVector flattens a site's metric rows into the clustering
// features. Nullable ratios fall back to the neutral 0.5 and missing
// coordinates to zero; normalization happens later over the whole set.
func featureVector(site contracts.Site, rows []contracts.SiteMetric) []float64 {
	var (
		total      int
		exp        float64
		completion = 0.5
		efficiency = 0.5
	)
	var compSum, effSum float64
	var compN, effN int
	for _, m := range rows {
		total += m.TotalStudies
		if m.ExperienceIndex > exp {
			exp = m.ExperienceIndex
		}
		if m.CompletionRatio != nil {
			compSum += *m.CompletionRatio
			compN++
		}
		if m.RecruitEfficiency != nil {
			effSum += *m.RecruitEfficiency
			effN++
		}
	}
	if compN > 0 {
		completion = compSum / float64(compN)
	}
	if effN > 0 {
		efficiency = effSum / float64(effN)
	}

	var lat, lng float64
	if site.HasCoordinates() {
		lat = *site.Latitude
		lng = *site.Longitude
	}

	return []float64{
		exp,
		completion,
		efficiency,
		math.Log1p(float64(total)),
		lat,
		lng,
	}
}

// normalize min-max scales every dimension into [0,1] in place. A flat
// dimension maps to zero so it stops contributing to distances.
func normalize(vecs []siteVec) {
	if len(vecs) == 0 {
		return
	}
	for d := 0; d < featureDim; d++ {
		lo, hi := vecs[0].Vec[d], vecs[0].Vec[d]
		for _, v := range vecs[1:] {
			if v.Vec[d] < lo {
				lo = v.Vec[d]
			}
			if v.Vec[d] > hi {
				hi = v.Vec[d]
			}
		}
		span := hi - lo
		for i := range vecs {
			if span == 0 {
				vecs[i].Vec[d] = 0
				continue
			}
			vecs[i].Vec[d] = (vecs[i].Vec[d] - lo) / span
		}
	}
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// kmeans runs seeded Lloyd iterations and returns per-site assignments
// with distance to the owning centroid, plus the final centroids in
// normalized feature space. The seed fixes the first centroid; the rest
// are chosen farthest-first, so the whole run is deterministic for a
// given input order and config.
func kmeans(vecs []siteVec, cfg scoringconfig.Cluster) ([]contracts.ClusterAssignment, map[int][]float64) {
	if len(vecs) == 0 {
		return nil, nil
	}
	sort.Slice(vecs, func(i, j int) bool { return vecs[i].SiteID < vecs[j].SiteID })

	k := cfg.K
	if k > len(vecs) {
		k = len(vecs)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), vecs[rng.Intn(len(vecs))].Vec...))
	for len(centroids) < k {
		bestIdx, bestDist := 0, -1.0
		for i := range vecs {
			d := math.Inf(1)
			for _, c := range centroids {
				if dist := euclidean(vecs[i].Vec, c); dist < d {
					d = dist
				}
			}
			if d > bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		centroids = append(centroids, append([]float64(nil), vecs[bestIdx].Vec...))
	}

	assign := make([]int, len(vecs))
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		changed := false
		for i, v := range vecs {
			best, bestDist := 0, math.Inf(1)
			for c := range centroids {
				if d := euclidean(v.Vec, centroids[c]); d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}

		// Recompute centroids as member means. Empty clusters keep
		// their previous centroid.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, featureDim)
		}
		for i, v := range vecs {
			c := assign[i]
			counts[c]++
			for d := range v.Vec {
				sums[c][d] += v.Vec[d]
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := range centroids[c] {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	out := make([]contracts.ClusterAssignment, len(vecs))
	for i, v := range vecs {
		out[i] = contracts.ClusterAssignment{
			SiteID:   v.SiteID,
			Label:    assign[i],
			Distance: euclidean(v.Vec, centroids[assign[i]]),
		}
	}

	byLabel := make(map[int][]float64, k)
	for c := range centroids {
		byLabel[c] = centroids[c]
	}
	return out, byLabel
}
