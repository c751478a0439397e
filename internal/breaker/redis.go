package breaker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfconsolidator/internal/metrics"
)

// Redis shares breaker state between service instances.
type Redis struct {
	redis       *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

func NewRedis(client *redis.Client, baseBackoff, maxBackoff time.Duration) *Redis {
	if baseBackoff <= 0 {
		baseBackoff = DefaultBase
	}
	if maxBackoff < baseBackoff {
		maxBackoff = baseBackoff
	}
	return &Redis{redis: client, baseBackoff: baseBackoff, maxBackoff: maxBackoff}
}

func (r *Redis) key(tool string) string { return fmt.Sprintf("cb:tool:%s", tool) }

// Open opens the breaker for tool.
func (r *Redis) Open(ctx context.Context, tool string) {
	key := r.key(tool)

	failuresStr, _ := r.redis.HGet(ctx, key, "failures").Result()
	failures, _ := strconv.Atoi(failuresStr)
	failures++

	cooldown := backoff(r.baseBackoff, r.maxBackoff, failures)
	retryAt := time.Now().Add(cooldown).Unix()

	r.redis.HSet(ctx, key, map[string]interface{}{
		"state":     "open",
		"retry_at":  retryAt,
		"failures":  failures,
		"opened_at": time.Now().Unix(),
	})
	r.redis.Expire(ctx, key, r.maxBackoff*2)

	metrics.BreakerOpened(tool)
	log.Warn().
		Str("tool", tool).
		Dur("cooldown", cooldown).
		Int("failures", failures).
		Time("retry_at", time.Unix(retryAt, 0)).
		Msg("circuit breaker OPENED")
}

// IsOpen checks if the breaker for tool is still cooling down.
func (r *Redis) IsOpen(ctx context.Context, tool string) bool {
	key := r.key(tool)

	state, err := r.redis.HGet(ctx, key, "state").Result()
	if err != nil || state != "open" {
		return false
	}

	retryAtStr, _ := r.redis.HGet(ctx, key, "retry_at").Result()
	retryAt, _ := strconv.ParseInt(retryAtStr, 10, 64)
	if time.Now().Unix() >= retryAt {
		r.redis.HSet(ctx, key, "state", "half_open")
		log.Info().Str("tool", tool).Msg("circuit breaker moved to HALF-OPEN")
		return false
	}
	return true
}

// Close resets the breaker on success.
func (r *Redis) Close(ctx context.Context, tool string) {
	key := r.key(tool)
	state, _ := r.redis.HGet(ctx, key, "state").Result()
	if state == "" || state == "closed" {
		return
	}
	r.redis.Del(ctx, key)
	metrics.BreakerClosed(tool)
	log.Info().Str("tool", tool).Msg("circuit breaker CLOSED (reset)")
}
