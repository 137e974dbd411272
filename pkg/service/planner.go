package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/assembly"
	"github.com/dock108/reelplan/pkg/cache"
	"github.com/dock108/reelplan/pkg/db"
	"github.com/dock108/reelplan/pkg/explain"
	"github.com/dock108/reelplan/pkg/models"
	"github.com/dock108/reelplan/pkg/scoring"
	"github.com/dock108/reelplan/pkg/search"
	"github.com/dock108/reelplan/pkg/signature"
	"github.com/dock108/reelplan/pkg/staleness"
)

// CacheStatus reports whether a plan was served from cache or freshly built.
type CacheStatus string

const (
	StatusCached CacheStatus = "cached"
	StatusFresh  CacheStatus = "fresh"
)

var (
	// ErrRetryable marks failures the caller may retry: provider outages
	// and build timeouts. Validation failures never wrap it.
	ErrRetryable = errors.New("retryable failure")
	// ErrBuildTimeout is returned when an in-flight build exceeds the hard
	// timeout, for the builder and for every caller waiting on its lease.
	ErrBuildTimeout = fmt.Errorf("playlist build timed out: %w", ErrRetryable)
)

// Config tunes the coordinator.
type Config struct {
	DurationStepMinutes int
	MaxParallelSearches int64
	SearchAttempts      int
	BuildTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.DurationStepMinutes <= 0 {
		c.DurationStepMinutes = signature.DefaultDurationStepMinutes
	}
	if c.MaxParallelSearches <= 0 {
		c.MaxParallelSearches = search.DefaultMaxParallel
	}
	if c.SearchAttempts <= 0 {
		c.SearchAttempts = search.DefaultAttempts
	}
	if c.BuildTimeout <= 0 {
		c.BuildTimeout = 30 * time.Second
	}
	return c
}

// Planner coordinates cache lookup, build-on-miss with at most one build
// per signature, and persistence. All state lives on the struct; there is
// no package-level cache or lock map.
type Planner struct {
	store     db.Store
	cache     cache.Cache
	provider  search.Provider
	scorer    *scoring.Scorer
	assembler *assembly.Assembler
	cfg       Config
	log       *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	leases map[string]*buildLease
}

// buildLease is the per-signature exclusivity token. The winner closes done
// once playlist/err are set; losers wait on done bounded by the build
// timeout.
type buildLease struct {
	done     chan struct{}
	playlist *models.Playlist
	err      error
}

func NewPlanner(store db.Store, hot cache.Cache, provider search.Provider, scorer *scoring.Scorer, assembler *assembly.Assembler, cfg Config, log *zap.Logger) *Planner {
	if hot == nil {
		hot = cache.NewNoop()
	}
	return &Planner{
		store:     store,
		cache:     hot,
		provider:  provider,
		scorer:    scorer,
		assembler: assembler,
		cfg:       cfg.withDefaults(),
		log:       log,
		now:       time.Now,
		leases:    make(map[string]*buildLease),
	}
}

// Plan returns the playlist for the request, serving a cached build when a
// non-stale one exists and building otherwise.
func (p *Planner) Plan(ctx context.Context, spec models.RequestSpec) (*models.Playlist, CacheStatus, error) {
	now := p.now().UTC()

	normalized, err := signature.Normalize(spec, now, p.cfg.DurationStepMinutes)
	if err != nil {
		return nil, "", fmt.Errorf("invalid request: %w", err)
	}

	if cached, prior := p.lookup(ctx, normalized.Key, now); cached != nil {
		p.log.Info("cache hit",
			zap.String("signature", normalized.Key),
			zap.String("playlist_id", cached.ID))
		return cached, StatusCached, nil
	} else if prior != nil {
		return p.planMiss(ctx, normalized, now, prior.Version)
	}
	return p.planMiss(ctx, normalized, now, 0)
}

// lookup returns a fresh playlist if one exists, and otherwise the latest
// (possibly stale) row so the caller knows the version to supersede.
func (p *Planner) lookup(ctx context.Context, key string, now time.Time) (fresh, prior *models.Playlist) {
	if hit, err := p.cache.PlaylistBySignature(ctx, key); err == nil && !hit.Stale(now) {
		return hit, nil
	} else if err != nil && !errors.Is(err, cache.ErrMiss) {
		p.log.Warn("hot cache lookup failed", zap.Error(err))
	}

	latest, err := p.store.LatestPlaylistBySignature(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		p.log.Warn("store lookup failed, treating as miss", zap.Error(err))
		return nil, nil
	}
	if latest.Stale(now) {
		return nil, latest
	}
	if err := p.cache.StorePlaylist(ctx, latest, now); err != nil {
		p.log.Warn("hot cache backfill failed", zap.Error(err))
	}
	return latest, nil
}

func (p *Planner) planMiss(ctx context.Context, normalized signature.Normalized, now time.Time, priorVersion int) (*models.Playlist, CacheStatus, error) {
	p.mu.Lock()
	lease, waiting := p.leases[normalized.Key]
	if !waiting {
		lease = &buildLease{done: make(chan struct{})}
		p.leases[normalized.Key] = lease
	}
	p.mu.Unlock()

	if waiting {
		return p.awaitLease(ctx, lease)
	}

	playlist, err := p.build(ctx, normalized, now, priorVersion)

	p.mu.Lock()
	delete(p.leases, normalized.Key)
	p.mu.Unlock()
	lease.playlist, lease.err = playlist, err
	close(lease.done)

	if err != nil {
		return nil, "", err
	}
	return playlist, StatusFresh, nil
}

// awaitLease blocks until the winning builder finishes, bounded by the
// build timeout. The loser is handed the winner's row rather than running a
// duplicate search-and-persist cycle.
func (p *Planner) awaitLease(ctx context.Context, lease *buildLease) (*models.Playlist, CacheStatus, error) {
	select {
	case <-lease.done:
		if lease.err != nil {
			return nil, "", lease.err
		}
		return lease.playlist, StatusCached, nil
	case <-time.After(p.cfg.BuildTimeout):
		return nil, "", ErrBuildTimeout
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

func (p *Planner) build(ctx context.Context, normalized signature.Normalized, now time.Time, priorVersion int) (*models.Playlist, error) {
	buildCtx, cancel := context.WithTimeout(ctx, p.cfg.BuildTimeout)
	defer cancel()

	spec := normalized.Spec
	queries := search.BuildQueries(spec)

	pool, err := search.FanOut(buildCtx, p.provider, queries, spec.SafeSearch, p.cfg.MaxParallelSearches, p.cfg.SearchAttempts, p.log)
	if err != nil {
		if buildCtx.Err() != nil && ctx.Err() == nil {
			return nil, ErrBuildTimeout
		}
		return nil, fmt.Errorf("%w: search fan-out: %v", ErrRetryable, err)
	}

	scored := p.scorer.ScoreBatch(spec, pool, now)
	result := p.assembler.Assemble(spec, scored)
	explanation := explain.Build(spec, result, p.scorer.Weights().Map())

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("generate playlist id: %w", err)
	}

	playlist := models.Playlist{
		ID:                   id.String(),
		Signature:            normalized.Key,
		Version:              priorVersion + 1,
		Items:                result.Items,
		TotalDurationSeconds: result.TotalSeconds,
		Explanation:          explanation,
		LoopMode:             spec.LoopMode,
		CreatedAt:            now,
		StaleAfter:           staleness.StaleAfter(spec.Window, now),
	}

	if err := p.store.InsertPlaylist(ctx, playlist); err != nil {
		if errors.Is(err, db.ErrConflict) {
			// Another instance won the unique-constraint race; serve its row.
			winner, readErr := p.store.LatestPlaylistBySignature(ctx, normalized.Key)
			if readErr != nil {
				return nil, fmt.Errorf("re-read after write conflict: %w", readErr)
			}
			p.log.Info("write conflict resolved by re-read",
				zap.String("signature", normalized.Key),
				zap.String("playlist_id", winner.ID))
			return winner, nil
		}
		return nil, fmt.Errorf("persist playlist: %w", err)
	}

	record := models.QueryRecord{
		Signature:     normalized.Key,
		Spec:          spec,
		LatestVersion: playlist.Version,
		CreatedAt:     now,
	}
	if err := p.store.SaveQueryRecord(ctx, record); err != nil {
		p.log.Warn("failed to save query record", zap.Error(err))
	}
	if err := p.cache.StorePlaylist(ctx, &playlist, now); err != nil {
		p.log.Warn("failed to populate hot cache", zap.Error(err))
	}

	p.log.Info("built playlist",
		zap.String("signature", normalized.Key),
		zap.String("playlist_id", playlist.ID),
		zap.Int("version", playlist.Version),
		zap.Int("items", len(playlist.Items)),
		zap.Int("total_seconds", playlist.TotalDurationSeconds))

	return &playlist, nil
}

// Get retrieves a playlist by id regardless of staleness.
func (p *Planner) Get(ctx context.Context, id string) (*models.Playlist, error) {
	if hit, err := p.cache.PlaylistByID(ctx, id); err == nil {
		return hit, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		p.log.Warn("hot cache lookup failed", zap.Error(err))
	}
	return p.store.PlaylistByID(ctx, id)
}
