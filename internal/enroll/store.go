package enroll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/internal/scoringconfig"
)

// ErrRecomputeRunning signals a batch statistics pass already in flight.
var ErrRecomputeRunning = errors.New("enrollment recompute already running")

// Repository persists statistics model versions.
type Repository interface {
	SaveVersion(ctx context.Context, version int64, computedAt time.Time, rows []StatRow) error
	LoadLatestVersion(ctx context.Context) (int64, []StatRow, error)
}

// Model is one committed statistics version, indexed for lookup.
type Model struct {
	Version    int64
	ComputedAt time.Time
	Site       map[string]Stats
	Area       map[string]Stats
	Global     *Stats
}

// Store serves enrollment estimates from the latest committed model and
// runs batch recomputes. Same versioning discipline as the cluster
// store: readers keep the previous version until the new one swaps in.
type Store struct {
	predictor *Predictor
	repo      Repository
	log       zerolog.Logger

	mu      sync.RWMutex
	latest  *Model
	loaded  bool
	running bool
}

// NewStore creates a Store. The latest persisted model is loaded lazily.
func NewStore(cfg scoringconfig.Enroll, repo Repository, log zerolog.Logger) *Store {
	return &Store{
		predictor: NewPredictor(cfg),
		repo:      repo,
		log:       log.With().Str("component", "enroll.store").Logger(),
	}
}

// Estimate returns the annotation for one site in one area, or nil when
// no statistics exist at any level. Missing data is not an error.
func (s *Store) Estimate(ctx context.Context, siteID, area string) (*contracts.EnrollmentEstimate, error) {
	model, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return s.predictor.Estimate(model, siteID, area), nil
}

// Latest returns the current committed model, nil when none exists.
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

	version, rows, err := s.repo.LoadLatestVersion(ctx)
	if err != nil {
		return nil, err
	}
	s.loaded = true
	if version == 0 {
		return nil, nil
	}
	s.latest = buildModel(version, time.Now().UTC(), rows)
	return s.latest, nil
}

// Recompute rebuilds the statistics from the full history, persists the
// new version, and atomically swaps it in. Single-flight.
func (s *Store) Recompute(ctx context.Context, parts []contracts.Participation, trials map[string]contracts.Trial) (*Model, error) {
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

	rows := Compute(parts, trials)
	version := time.Now().UTC().UnixNano()
	computedAt := time.Now().UTC()

	if err := s.repo.SaveVersion(ctx, version, computedAt, rows); err != nil {
		return nil, err
	}

	model := buildModel(version, computedAt, rows)
	s.mu.Lock()
	s.latest = model
	s.loaded = true
	s.mu.Unlock()

	s.log.Info().
		Int64("version", version).
		Int("rows", len(rows)).
		Msg("enrollment statistics committed")

	return model, nil
}

func buildModel(version int64, computedAt time.Time, rows []StatRow) *Model {
	m := &Model{
		Version:    version,
		ComputedAt: computedAt,
		Site:       make(map[string]Stats),
		Area:       make(map[string]Stats),
	}
	for _, r := range rows {
		switch r.Level {
		case LevelSite:
			m.Site[r.Key] = r.Stats
		case LevelArea:
			m.Area[r.Key] = r.Stats
		case LevelGlobal:
			g := r.Stats
			m.Global = &g
		}
	}
	return m
}
