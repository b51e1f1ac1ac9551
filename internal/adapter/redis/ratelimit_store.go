package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const (
	rateLimitKeyPrefix = "ratelimit:generate:"
	rateLimitTimeout   = 250 * time.Millisecond
)

// INCR the window counter and arm its expiry on first use.
// KEYS[1] = window key, ARGV[1] = window length in ms. Returns the new count.
var fixedWindowScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RateLimitStore is a fixed-window limiter shared by every replica. Each
// window admits burst requests and lasts burst/rate seconds, so the sustained
// rate matches the in-memory token bucket.
//
// It satisfies echo's middleware.RateLimiterStore.
type RateLimitStore struct {
	rdb    *goredis.Client
	clock  clockwork.Clock
	limit  int64
	window time.Duration
}

func NewRateLimitStore(rdb *goredis.Client, clock clockwork.Clock, ratePerSecond float64, burst int) (*RateLimitStore, error) {
	if ratePerSecond <= 0 || burst < 1 {
		return nil, fmt.Errorf("invalid rate limit: rate=%v burst=%d", ratePerSecond, burst)
	}

	window := time.Duration(float64(burst) / ratePerSecond * float64(time.Second)).Round(time.Millisecond)
	if window < time.Millisecond {
		window = time.Millisecond
	}

	return &RateLimitStore{
		rdb:    rdb,
		clock:  clock,
		limit:  int64(burst),
		window: window,
	}, nil
}

// Window is the length of one counting window.
func (s *RateLimitStore) Window() time.Duration {
	return s.window
}

// Allow consumes one request for identifier in the current window.
func (s *RateLimitStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
	defer cancel()

	windowMs := s.window.Milliseconds()
	index := s.clock.Now().UnixMilli() / windowMs
	key := rateLimitKeyPrefix + identifier + ":" + strconv.FormatInt(index, 10)

	count, err := fixedWindowScript.Run(ctx, s.rdb, []string{key}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}
	return count <= s.limit, nil
}
