// Package recommend ranks sites for a target trial profile: it scores
// every candidate, applies the request's hard constraints, orders and
// tiers the survivors, and attaches explanations.
package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/insight"
	"github.com/clinscout/backend/internal/match"
	"github.com/clinscout/backend/internal/scoringconfig"
	"github.com/clinscout/backend/pkg/logger"
)

// ClusterAnnotator supplies a site's segment label from the latest
// committed clustering model. Nil results mean no usable model.
type ClusterAnnotator interface {
	Label(ctx context.Context, siteID string) (*int, error)
}

// EnrollAnnotator supplies an enrollment duration estimate for a site
// in an area. Nil results mean no usable statistics.
type EnrollAnnotator interface {
	Estimate(ctx context.Context, siteID, area string) (*contracts.EnrollmentEstimate, error)
}

// Engine wires the scoring pipeline behind one Recommend call.
type Engine struct {
	cfg      scoringconfig.Config
	scorer   *match.Scorer
	cache    *match.ScoreCache
	detector *insight.Detector

	sites   contracts.SiteRepository
	trials  contracts.TrialRepository
	parts   contracts.ParticipationRepository
	metrics contracts.MetricRepository

	clusters ClusterAnnotator
	enroll   EnrollAnnotator

	log *logger.Logger
}

// Deps carries the engine's collaborators. Cache, Clusters and Enroll
// are optional; the engine degrades to uncached, unannotated output.
type Deps struct {
	Sites    contracts.SiteRepository
	Trials   contracts.TrialRepository
	Parts    contracts.ParticipationRepository
	Metrics  contracts.MetricRepository
	Cache    *match.ScoreCache
	Clusters ClusterAnnotator
	Enroll   EnrollAnnotator
	Logger   *logger.Logger
}

// NewEngine creates a recommendation engine.
func NewEngine(cfg scoringconfig.Config, deps Deps) *Engine {
	return &Engine{
		cfg:      cfg,
		scorer:   match.NewScorer(cfg.Match),
		cache:    deps.Cache,
		detector: insight.NewDetector(cfg.Insight),
		sites:    deps.Sites,
		trials:   deps.Trials,
		parts:    deps.Parts,
		metrics:  deps.Metrics,
		clusters: deps.Clusters,
		enroll:   deps.Enroll,
		log:      deps.Logger,
	}
}

type candidate struct {
	site       contracts.Site
	history    match.SiteHistory
	score      contracts.MatchScore
	avgQuality *float64
	expIndex   float64
	areaMetric *contracts.SiteMetric
}

// Recommend ranks sites for the request. Returns ErrNoSites when the
// repository is empty and ErrNoCandidates when constraints exclude
// every site.
func (e *Engine) Recommend(ctx context.Context, req contracts.RecommendationRequest) (*contracts.Recommendation, error) {
	req.Profile = req.Profile.Normalize()
	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.Recommend.DefaultLimit
	}
	if limit > e.cfg.Recommend.MaxLimit {
		limit = e.cfg.Recommend.MaxLimit
	}

	sites, err := e.sites.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	if len(sites) == 0 {
		return nil, ErrNoSites
	}

	histories, err := e.buildHistories(ctx, sites)
	if err != nil {
		return nil, err
	}

	candidates, err := e.scoreAndFilter(ctx, sites, histories, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	sortCandidates(candidates)
	candidates = diversify(candidates, req.Diversify, limit)
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	rec, err := e.assemble(ctx, req, candidates)
	if err != nil {
		return nil, err
	}

	if e.log != nil {
		e.log.WithFields(map[string]interface{}{
			"request_id": rec.RequestID,
			"area":       req.Profile.TherapeuticArea,
			"candidates": len(candidates),
		}).Info("recommendation generated")
	}
	return rec, nil
}

// buildHistories assembles the scoring view of every site from bulk
// reads: one pass over participations, one trial lookup, one metrics
// scan. No per-site queries on the hot path.
func (e *Engine) buildHistories(ctx context.Context, sites []contracts.Site) (map[string]match.SiteHistory, error) {
	parts, err := e.parts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}

	nctSet := make(map[string]bool)
	for _, p := range parts {
		nctSet[p.NCTID] = true
	}
	nctIDs := make([]string, 0, len(nctSet))
	for id := range nctSet {
		nctIDs = append(nctIDs, id)
	}
	trials, err := e.trials.ListByNCTIDs(ctx, nctIDs)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}

	allMetrics, err := e.metrics.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list metrics: %w", err)
	}
	metricsBySite := make(map[string][]contracts.SiteMetric)
	for _, m := range allMetrics {
		metricsBySite[m.SiteID] = append(metricsBySite[m.SiteID], m)
	}

	histories := make(map[string]match.SiteHistory, len(sites))
	for _, site := range sites {
		histories[site.ID] = match.SiteHistory{
			Site:    site,
			Metrics: metricsBySite[site.ID],
		}
	}

	type qualityAcc struct {
		sum float64
		n   int
	}
	qualities := make(map[string]*qualityAcc)

	for _, p := range parts {
		h, ok := histories[p.SiteID]
		if !ok {
			continue
		}
		trial, ok := trials[p.NCTID]
		if !ok {
			continue
		}

		if h.PhaseCounts == nil {
			h.PhaseCounts = make(map[string]int)
		}
		if trial.Phase != "" {
			h.PhaseCounts[contracts.NormalizePhase(trial.Phase)]++
		}
		for _, iv := range trial.Interventions {
			h.InterventionTypes = appendUnique(h.InterventionTypes, strings.ToLower(strings.TrimSpace(iv)))
		}
		for _, c := range trial.Conditions {
			h.Conditions = appendUnique(h.Conditions, c)
		}
		if p.QualityScore != nil {
			acc := qualities[p.SiteID]
			if acc == nil {
				acc = &qualityAcc{}
				qualities[p.SiteID] = acc
			}
			acc.sum += *p.QualityScore
			acc.n++
		}
		histories[p.SiteID] = h
	}

	for siteID, acc := range qualities {
		h := histories[siteID]
		avg := acc.sum / float64(acc.n)
		h.AvgQuality = &avg
		histories[siteID] = h
	}

	return histories, nil
}

// scoreAndFilter scores every site (cache first) and applies the hard
// constraints.
func (e *Engine) scoreAndFilter(ctx context.Context, sites []contracts.Site, histories map[string]match.SiteHistory, req contracts.RecommendationRequest) ([]candidate, error) {
	excluded := make(map[string]bool, len(req.ExcludeSites))
	for _, id := range req.ExcludeSites {
		excluded[id] = true
	}

	out := make([]candidate, 0, len(sites))
	for _, site := range sites {
		if excluded[site.ID] {
			continue
		}

		hist := histories[site.ID]

		if req.MaxDistanceKm != nil && req.Profile.Location != nil {
			d, ok := match.DistanceKm(site, *req.Profile.Location)
			if !ok || d > *req.MaxDistanceKm {
				continue
			}
		}
		if req.MinQuality != nil {
			if hist.AvgQuality == nil || *hist.AvgQuality < *req.MinQuality {
				continue
			}
		}

		score, err := e.scoreSite(ctx, hist, req.Profile)
		if err != nil {
			return nil, err
		}

		c := candidate{
			site:       site,
			history:    hist,
			score:      score,
			avgQuality: hist.AvgQuality,
		}
		if m := areaRow(hist.Metrics, req.Profile); m != nil {
			c.areaMetric = m
			c.expIndex = m.ExperienceIndex
		}
		out = append(out, c)
	}
	return out, nil
}

func (e *Engine) scoreSite(ctx context.Context, hist match.SiteHistory, profile contracts.TargetProfile) (contracts.MatchScore, error) {
	if e.cache != nil {
		if cached, found, err := e.cache.Get(ctx, hist.Site.ID, profile); err == nil && found {
			return *cached, nil
		}
	}

	score := e.scorer.Score(hist, profile)

	if e.cache != nil {
		if err := e.cache.Put(ctx, profile, score); err != nil && e.log != nil {
			e.log.WithError(err).Warn("match score cache write failed")
		}
	}
	return score, nil
}

// sortCandidates orders by overall desc, then average quality desc
// (unknown last), experience desc, site ID asc. The final key makes the
// whole order total and reproducible.
func sortCandidates(c []candidate) {
	sort.Slice(c, func(i, j int) bool {
		if c[i].score.Overall != c[j].score.Overall {
			return c[i].score.Overall > c[j].score.Overall
		}
		qi, qj := qualityOrNeg(c[i]), qualityOrNeg(c[j])
		if qi != qj {
			return qi > qj
		}
		if c[i].expIndex != c[j].expIndex {
			return c[i].expIndex > c[j].expIndex
		}
		return c[i].site.ID < c[j].site.ID
	})
}

func qualityOrNeg(c candidate) float64 {
	if c.avgQuality == nil {
		return -1
	}
	return *c.avgQuality
}

// assemble builds the final ranked, tiered, explained payload.
func (e *Engine) assemble(ctx context.Context, req contracts.RecommendationRequest, candidates []candidate) (*contracts.Recommendation, error) {
	area := match.ResolveArea(req.Profile)
	areaPeers, err := e.metrics.ListByArea(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("list area peers: %w", err)
	}

	rec := &contracts.Recommendation{
		RequestID:   uuid.NewString(),
		Profile:     req.Profile,
		GeneratedAt: time.Now().UTC(),
		Request:     req,
		Sites:       make([]contracts.RankedSite, 0, len(candidates)),
	}

	for i, c := range candidates {
		rs := contracts.RankedSite{
			Site:            c.site,
			Rank:            i + 1,
			Tier:            e.tier(c.score.Overall),
			Scores:          c.score,
			QualityScore:    c.avgQuality,
			ExperienceIndex: c.expIndex,
		}

		if c.areaMetric != nil {
			rs.Strengths, rs.Weaknesses = e.detector.Detect(c.areaMetric, areaPeers)
		}

		if e.clusters != nil {
			if label, err := e.clusters.Label(ctx, c.site.ID); err == nil && label != nil {
				rs.ClusterLabel = label
			}
		}
		if e.enroll != nil {
			if est, err := e.enroll.Estimate(ctx, c.site.ID, area); err == nil && est != nil {
				rs.Enrollment = est
			}
		}

		rec.Sites = append(rec.Sites, rs)
	}
	return rec, nil
}

// tier labels a score band. Cutoffs descend, so the first match wins.
func (e *Engine) tier(overall float64) string {
	r := e.cfg.Recommend
	switch {
	case overall >= r.TierTop:
		return "top"
	case overall >= r.TierStrong:
		return "strong"
	case overall >= r.TierModerate:
		return "moderate"
	default:
		return "marginal"
	}
}

// areaRow finds the candidate's metric row for the target area.
func areaRow(metrics []contracts.SiteMetric, profile contracts.TargetProfile) *contracts.SiteMetric {
	area := match.ResolveArea(profile)
	for i := range metrics {
		if strings.EqualFold(metrics[i].TherapeuticArea, area) {
			return &metrics[i]
		}
	}
	return nil
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
