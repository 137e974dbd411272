package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dock108/reelplan/pkg/models"
)

const (
	DefaultMaxParallel = 3
	DefaultAttempts    = 3

	initialBackoff = 250 * time.Millisecond
)

// BuildQueries derives several phrasings of the same ask to widen recall.
// The spec must already be normalized (lowercased, sorted lists).
func BuildQueries(spec models.RequestSpec) []string {
	var queries []string
	add := func(parts ...string) {
		q := strings.TrimSpace(strings.Join(parts, " "))
		if q == "" {
			return
		}
		for _, existing := range queries {
			if existing == q {
				return
			}
		}
		queries = append(queries, q)
	}

	types := strings.Join(spec.ContentTypes, " ")
	add(spec.Topic, types)
	for _, entity := range spec.Entities {
		add(spec.Topic, entity, types)
	}
	if types == "" {
		add(spec.Topic, "highlights")
	}

	return queries
}

// FanOut runs the queries against the provider with bounded parallelism,
// retrying each query with exponential backoff up to attempts tries. Results
// are merged, de-duplicated by external id, and sorted into a fixed order so
// the pool is independent of completion order.
func FanOut(ctx context.Context, provider Provider, queries []string, safeSearch bool, maxParallel int64, attempts int, log *zap.Logger) ([]models.CandidateItem, error) {
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	if attempts <= 0 {
		attempts = DefaultAttempts
	}

	sem := semaphore.NewWeighted(maxParallel)
	results := make([][]models.CandidateItem, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	for i, query := range queries {
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			items, err := searchWithRetry(ctx, provider, query, safeSearch, attempts, log)
			if err != nil {
				return fmt.Errorf("query %q: %w", query, err)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(results), nil
}

func searchWithRetry(ctx context.Context, provider Provider, query string, safeSearch bool, attempts int, log *zap.Logger) ([]models.CandidateItem, error) {
	var lastErr error
	backoff := initialBackoff
	for attempt := 1; attempt <= attempts; attempt++ {
		items, err := provider.Search(ctx, query, safeSearch)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("search attempt failed",
			zap.String("query", query),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt < attempts {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}
	return nil, lastErr
}

// mergeResults flattens, de-dupes by external id (first occurrence wins),
// and sorts by external id. Scoring happens after this point, so the fixed
// order here is what makes builds deterministic.
func mergeResults(results [][]models.CandidateItem) []models.CandidateItem {
	seen := make(map[string]struct{})
	var merged []models.CandidateItem
	for _, batch := range results {
		for _, item := range batch {
			if item.ExternalID == "" {
				continue
			}
			if _, ok := seen[item.ExternalID]; ok {
				continue
			}
			seen[item.ExternalID] = struct{}{}
			merged = append(merged, item)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ExternalID < merged[j].ExternalID
	})
	return merged
}
