// Package cache is the optional Redis read-through layer in front of the
// durable store. It only ever holds playlists that are still fresh; entries
// expire no later than the playlist's stale-after moment.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dock108/reelplan/pkg/models"
)

// ErrMiss means the cache has no fresh entry for the key.
var ErrMiss = errors.New("cache miss")

// Cache is the hot-path lookup in front of the store. Implementations are
// best-effort: a cache failure must never fail a plan.
type Cache interface {
	PlaylistByID(ctx context.Context, id string) (*models.Playlist, error)
	PlaylistBySignature(ctx context.Context, signature string) (*models.Playlist, error)
	StorePlaylist(ctx context.Context, playlist *models.Playlist, now time.Time) error
}

// maxEntryTTL bounds how long a never-expiring playlist stays hot.
const maxEntryTTL = 24 * time.Hour

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

type redisCache struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewRedisCache(rdb *redis.Client, log *zap.Logger) Cache {
	return &redisCache{rdb: rdb, log: log}
}

func playlistKey(id string) string         { return "playlist:" + id }
func signatureKey(signature string) string { return "sig:" + signature }

func (c *redisCache) PlaylistByID(ctx context.Context, id string) (*models.Playlist, error) {
	return c.get(ctx, playlistKey(id))
}

func (c *redisCache) PlaylistBySignature(ctx context.Context, signature string) (*models.Playlist, error) {
	return c.get(ctx, signatureKey(signature))
}

func (c *redisCache) get(ctx context.Context, key string) (*models.Playlist, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var playlist models.Playlist
	if err := json.Unmarshal(raw, &playlist); err != nil {
		c.log.Warn("dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		c.rdb.Del(ctx, key)
		return nil, ErrMiss
	}
	return &playlist, nil
}

func (c *redisCache) StorePlaylist(ctx context.Context, playlist *models.Playlist, now time.Time) error {
	ttl := maxEntryTTL
	if playlist.StaleAfter != nil {
		remaining := playlist.StaleAfter.Sub(now)
		if remaining <= 0 {
			return nil
		}
		if remaining < ttl {
			ttl = remaining
		}
	}

	raw, err := json.Marshal(playlist)
	if err != nil {
		return fmt.Errorf("marshal playlist %s: %w", playlist.ID, err)
	}

	pipe := c.rdb.Pipeline()
	pipe.Set(ctx, playlistKey(playlist.ID), raw, ttl)
	pipe.Set(ctx, signatureKey(playlist.Signature), raw, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

type noop struct{}

// NewNoop returns the cache used when Redis is not configured.
func NewNoop() Cache {
	return noop{}
}

func (noop) PlaylistByID(context.Context, string) (*models.Playlist, error) {
	return nil, ErrMiss
}

func (noop) PlaylistBySignature(context.Context, string) (*models.Playlist, error) {
	return nil, ErrMiss
}

func (noop) StorePlaylist(context.Context, *models.Playlist, time.Time) error {
	return nil
}
