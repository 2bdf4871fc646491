// Package cache keeps the settings snapshot in Redis so every instance reads
// the same values without a database round trip per decision.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"intromarket/internal/settings/models"
)

const (
	settingsKey   = "intromarket:settings:v1"
	generationKey = "intromarket:settings:generation"
)

// ErrMiss is returned when nothing is cached.
var ErrMiss = errors.New("settings cache miss")

// setIfGeneration writes the snapshot only while the generation still
// matches the one the caller read before loading from the store.
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

// Redis stores the snapshot next to a generation counter. Invalidate bumps
// the counter, so a reader that loaded rows before an update cannot write
// its stale snapshot back afterwards.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (c *Redis) Get(ctx context.Context) (models.Settings, error) {
	raw, err := c.client.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Settings{}, ErrMiss
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("read settings cache: %w", err)
	}
	var s models.Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Settings{}, fmt.Errorf("decode settings cache: %w", err)
	}
	return s, nil
}

// Generation returns the invalidation counter, zero before the first update.
func (c *Redis) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read settings generation: %w", err)
	}
	return gen, nil
}

// SetIfGeneration caches s unless an invalidation happened after gen was
// read. It reports whether the snapshot was written.
func (c *Redis) SetIfGeneration(ctx context.Context, s models.Settings, gen int64) (bool, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("encode settings cache: %w", err)
	}
	written, err := setIfGeneration.Run(ctx, c.client,
		[]string{settingsKey, generationKey},
		string(raw), gen, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("write settings cache: %w", err)
	}
	return written == 1, nil
}

func (c *Redis) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, settingsKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate settings cache: %w", err)
	}
	return nil
}
