// Package quota tracks per-referer monthly call counts in Redis.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkAndIncrScript is an atomic find-and-increment: the counter is only
// incremented while under the limit, so concurrent calls at the quota
// boundary cannot both pass, and a denied call leaves the count untouched.
var checkAndIncrScript = redis.NewScript(`
	local current = tonumber(redis.call('GET', KEYS[1]) or '0')
	if current >= tonumber(ARGV[1]) then
		return {0, current}
	end
	current = redis.call('INCR', KEYS[1])
	return {1, current}
`)

// Counter counts calls per (referer, calendar month). Keys carry the year
// so counts never bleed across years, and are kept without expiry.
type Counter struct {
	client *redis.Client
	now    func() time.Time
}

func NewCounter(redisURL string) (*Counter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	return &Counter{
		client: redis.NewClient(opt),
		now:    time.Now,
	}, nil
}

// Allow checks the current month's count for the referer against limit and
// increments it when under the limit. It reports whether the call may
// proceed, along with the count after the check.
func (c *Counter) Allow(ctx context.Context, refererID int, limit int64) (bool, int64, error) {
	key := monthKey(refererID, c.now())

	res, err := checkAndIncrScript.Run(ctx, c.client, []string{key}, limit).Result()
	if err != nil {
		return false, 0, fmt.Errorf("quota check for %s: %w", key, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected quota script result: %v", res)
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)
	return allowed == 1, count, nil
}

// Used returns the current month's count for the referer without touching it.
func (c *Counter) Used(ctx context.Context, refererID int) (int64, error) {
	count, err := c.client.Get(ctx, monthKey(refererID, c.now())).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

func (c *Counter) Close() error {
	return c.client.Close()
}

func monthKey(refererID int, t time.Time) string {
	return fmt.Sprintf("monthly_access:%d:%s", refererID, t.Format("2006-01"))
}
