// Package services hosts optional infrastructure the deck engine can
// be wired to; none of it is required to draw or play a storylet.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// TraceArchive pushes per-draw trace sink lines to a Redis list, keyed
// by deck id, for later inspection. It is diagnostic-only: deck and
// storylet state itself is never persisted here or anywhere else.
type TraceArchive struct {
	rdb    *redis.Client
	logger *slog.Logger
}

// NewTraceArchive connects to redisURL and returns a TraceArchive.
func NewTraceArchive(redisURL string, logger *slog.Logger) (*TraceArchive, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("tracearchive: failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("tracearchive: failed to connect to redis: %w", err)
	}

	logger.Info("tracearchive: connected to redis", "url", redisURL)
	return &TraceArchive{rdb: rdb, logger: logger}, nil
}

func archiveKey(deckID string) string {
	return fmt.Sprintf("storylet-trace:%s", deckID)
}

// Append pushes every line of a single draw's trace sink onto the
// deck's list, preserving order.
func (a *TraceArchive) Append(ctx context.Context, deckID string, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	args := make([]any, len(lines))
	for i, line := range lines {
		args[i] = line
	}
	if err := a.rdb.RPush(ctx, archiveKey(deckID), args...).Err(); err != nil {
		return fmt.Errorf("tracearchive: failed to append trace lines: %w", err)
	}
	a.logger.Debug("tracearchive: appended trace lines", "deck_id", deckID, "count", len(lines))
	return nil
}

// Recent returns up to limit of the most recently archived trace
// lines for a deck, oldest first. limit<=0 returns the whole archive.
func (a *TraceArchive) Recent(ctx context.Context, deckID string, limit int) ([]string, error) {
	key := archiveKey(deckID)
	length, err := a.rdb.LLen(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("tracearchive: failed to measure archive: %w", err)
	}
	start := int64(0)
	if limit > 0 && int64(limit) < length {
		start = length - int64(limit)
	}
	lines, err := a.rdb.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tracearchive: failed to read archive: %w", err)
	}
	return lines, nil
}

// Clear deletes a deck's entire trace archive.
func (a *TraceArchive) Clear(ctx context.Context, deckID string) error {
	if err := a.rdb.Del(ctx, archiveKey(deckID)).Err(); err != nil {
		return fmt.Errorf("tracearchive: failed to clear archive: %w", err)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (a *TraceArchive) Close() error {
	return a.rdb.Close()
}
