package cluster

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// ErrRecomputeRunning signals that a batch re-clustering pass is already
// in flight. Re-clustering is single-flight per model; callers retry
// after the current pass commits.
var ErrRecomputeRunning = errors.New("cluster recompute already running")

// ErrTooFewSites means the site population is below the configured
// minimum for a meaningful segmentation.
var ErrTooFewSites = errors.New("too few sites to cluster")

// Summary characterizes one cluster: member count, centroid in
// normalized feature space, and cohesion as the mean member distance to
// the centroid (lower is tighter).
type Summary struct {
	Label    int       `json:"label"`
	Size     int       `json:"size"`
	Cohesion float64   `json:"cohesion"`
	Centroid []float64 `json:"centroid,omitempty"`
}

// Model is one committed clustering version. Immutable after commit.
type Model struct {
	Version     int64
	ComputedAt  time.Time
	Assignments map[string]contracts.ClusterAssignment
	Sizes       map[int]int
	Clusters    []Summary
}

// Store serves cluster labels from the latest committed model and runs
// batch recomputes. Reads keep seeing the previous version until a new
// one swaps in.
type Store struct {
	cfg  scoringconfig.Cluster
	repo contracts.ClusterRepository
	log  zerolog.Logger

	mu      sync.RWMutex
	latest  *Model
	loaded  bool
	running bool
}

// NewStore creates a Store. The latest persisted model is loaded lazily
// on first read.
func NewStore(cfg scoringconfig.Cluster, repo contracts.ClusterRepository, log zerolog.Logger) *Store {
	return &Store{
		cfg:  cfg,
		repo: repo,
		log:  log.With().Str("component", "cluster.store").Logger(),
	}
}

// Label returns the site's cluster label from the latest model, or nil
// when no model covers the site. Never an error path for the ranking
// flow: a missing model degrades to no annotation.
func (s *Store) Label(ctx context.Context, siteID string) (*int, error) {
	model, err := s.current(ctx)
	if err != nil || model == nil {
		return nil, err
	}
	a, ok := model.Assignments[siteID]
	if !ok {
		return nil, nil
	}
	label := a.Label
	return &label, nil
}

// Latest returns the current committed model, loading it from storage
// on first use. Nil when nothing has ever been committed.
func (s *Store) Latest(ctx context.Context) (*Model, error) {
	return s.current(ctx)
}

func (s *Store) current(ctx context.Context) (*Model, error) {
	s.mu.RLock()
	if s.loaded {
		m := s.latest
		s.mu.RUnlock()
		return m, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.latest, nil
	}

	version, assignments, centroids, err := s.repo.LoadLatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	s.loaded = true
	if version == 0 {
		return nil, nil
	}
	s.latest = buildModel(version, time.Now().UTC(), assignments, centroids)
	return s.latest, nil
}

// Recompute runs a full re-clustering pass over the given sites and
// metrics, persists the new version, and atomically swaps it in.
// Single-flight: a second concurrent call fails fast with
// ErrRecomputeRunning instead of queueing.
func (s *Store) Recompute(ctx context.Context, sites []contracts.Site, metrics []contracts.SiteMetric) (*Model, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrRecomputeRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if len(sites) < s.cfg.MinSites {
		return nil, ErrTooFewSites
	}

	metricsBySite := make(map[string][]contracts.SiteMetric)
	for _, m := range metrics {
		metricsBySite[m.SiteID] = append(metricsBySite[m.SiteID], m)
	}

	vecs := make([]siteVec, 0, len(sites))
	for _, site := range sites {
		vecs = append(vecs, siteVec{
			SiteID: site.ID,
			Vec:    featureVector(site, metricsBySite[site.ID]),
		})
	}
	normalize(vecs)

	assignments, centroids := kmeans(vecs, s.cfg)
	version := time.Now().UTC().UnixNano()
	computedAt := time.Now().UTC()

	if err := s.repo.SaveVersion(ctx, version, computedAt, assignments, centroids); err != nil {
		return nil, err
	}

	model := buildModel(version, computedAt, assignments, centroids)
	s.mu.Lock()
	s.latest = model
	s.loaded = true
	s.mu.Unlock()

	s.log.Info().
		Int64("version", version).
		Int("sites", len(assignments)).
		Int("clusters", len(model.Sizes)).
		Msg("cluster model committed")

	return model, nil
}

func buildModel(version int64, computedAt time.Time, assignments []contracts.ClusterAssignment, centroids map[int][]float64) *Model {
	m := &Model{
		Version:     version,
		ComputedAt:  computedAt,
		Assignments: make(map[string]contracts.ClusterAssignment, len(assignments)),
		Sizes:       make(map[int]int),
	}
	distSum := make(map[int]float64)
	for _, a := range assignments {
		m.Assignments[a.SiteID] = a
		m.Sizes[a.Label]++
		distSum[a.Label] += a.Distance
	}

	labels := make([]int, 0, len(m.Sizes))
	for label := range m.Sizes {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	for _, label := range labels {
		m.Clusters = append(m.Clusters, Summary{
			Label:    label,
			Size:     m.Sizes[label],
			Cohesion: distSum[label] / float64(m.Sizes[label]),
			Centroid: centroids[label],
		})
	}
	return m
}
