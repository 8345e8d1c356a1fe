package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

const (
	TimelinesDB = 0
	TestSuiteDB = 5
)

// GetNameForDatabase returns a name for the given database ID, if available.
// This is useful for adding debug information to redis calls.
func GetNameForDatabase(databaseId int) string {
	switch databaseId {
	case TimelinesDB:
		return "TimelinesDB"
	case TestSuiteDB:
		return "TestSuiteDB"
	}

	return fmt.Sprintf("db %d", databaseId)
}

// Cache is a redis-backed timeline cache. Each key holds a sorted set of
// item_id members scored by timestamp.
type Cache struct {
	client *redis.Client
}

func newRedisClient(db int) *redis.Client {
	redisURL := viper.GetString("REDIS_URL")
	redisPass := viper.GetString("REDIS_PASS")
	return redis.NewClient(&redis.Options{
		Addr:     redisURL,
		Password: redisPass,
		DB:       db,
	})
}

// NewCache creates a new redis cache
func NewCache(db int) *Cache {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	client := newRedisClient(db)
	if err := client.Ping(ctx).Err(); err != nil {
		panic(err)
	}
	return &Cache{client: client}
}

// ClearCache deletes the entire cache
func ClearCache(db int) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	client := newRedisClient(db)
	return client.FlushDB(ctx).Err()
}

// Add adds a member with the given score. Re-adding an existing member
// replaces its score, so duplicate fan-out resolves to a single entry.
func (c *Cache) Add(pCtx context.Context, key, member string, score float64) error {
	return c.client.ZAdd(pCtx, key, &redis.Z{Member: member, Score: score}).Err()
}

// BulkAdd adds a batch of members in a single round trip
func (c *Cache) BulkAdd(pCtx context.Context, key string, entries []memstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	zs := make([]*redis.Z, len(entries))
	for i, entry := range entries {
		zs[i] = &redis.Z{Member: entry.Member, Score: entry.Score}
	}
	return c.client.ZAdd(pCtx, key, zs...).Err()
}

// Remove removes the given members from the set
func (c *Cache) Remove(pCtx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, member := range members {
		args[i] = member
	}
	return c.client.ZRem(pCtx, key, args...).Err()
}

// RevRange returns members from start to stop inclusive over the score
// descending, member ascending ordering. Redis reverse iteration orders
// equal scores by member descending instead, so the read widens to the
// full equal-score runs at the window boundaries, reorders, and slices.
// Both orderings agree on where each score starts, so the widened segment
// always contains the requested window.
func (c *Cache) RevRange(pCtx context.Context, key string, start, stop int64) ([]string, error) {
	window, err := c.client.ZRevRangeWithScores(pCtx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(window) == 0 {
		return []string{}, nil
	}

	hi := window[0].Score
	lo := window[len(window)-1].Score

	above, err := c.client.ZCount(pCtx, key, exclusiveMin(hi), "+inf").Result()
	if err != nil {
		return nil, err
	}

	segment, err := c.client.ZRangeByScoreWithScores(pCtx, key, &redis.ZRangeBy{
		Min: formatScore(lo),
		Max: formatScore(hi),
	}).Result()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(segment, func(i, j int) bool {
		if segment[i].Score != segment[j].Score {
			return segment[i].Score > segment[j].Score
		}
		return segment[i].Member.(string) < segment[j].Member.(string)
	})

	first := start - above
	last := stop - above
	if first < 0 {
		first = 0
	}
	if last > int64(len(segment))-1 {
		last = int64(len(segment)) - 1
	}
	if first > last {
		return []string{}, nil
	}

	members := make([]string, 0, last-first+1)
	for _, z := range segment[first : last+1] {
		members = append(members, z.Member.(string))
	}
	return members, nil
}

// RevRank returns the 0-based rank of member over the score descending,
// member ascending ordering: the count of strictly higher scores plus the
// member's position within its equal-score run, which redis range-by-score
// yields lexicographically ascending.
func (c *Cache) RevRank(pCtx context.Context, key, member string) (int64, error) {
	score, err := c.client.ZScore(pCtx, key, member).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, memstore.ErrMemberNotFound{Key: key, Member: member}
		}
		return 0, err
	}

	above, err := c.client.ZCount(pCtx, key, exclusiveMin(score), "+inf").Result()
	if err != nil {
		return 0, err
	}

	run, err := c.client.ZRangeByScore(pCtx, key, &redis.ZRangeBy{
		Min: formatScore(score),
		Max: formatScore(score),
	}).Result()
	if err != nil {
		return 0, err
	}

	for i, m := range run {
		if m == member {
			return above + int64(i), nil
		}
	}
	return 0, memstore.ErrMemberNotFound{Key: key, Member: member}
}

func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

func exclusiveMin(score float64) string {
	return "(" + formatScore(score)
}

// Cardinality returns the number of members in the set
func (c *Cache) Cardinality(pCtx context.Context, key string) (int64, error) {
	return c.client.ZCard(pCtx, key).Result()
}

// pruneTimeline atomically pops the lowest-score members of the keyed set
// until its cardinality is back at the cap, returning the evicted count.
var pruneTimeline *redis.Script = redis.NewScript(`
	local count = redis.call("ZCARD", KEYS[1])
	local cap = tonumber(ARGV[1])
	if count <= cap then
		return 0
	end
	local excess = count - cap
	redis.call("ZPOPMIN", KEYS[1], excess)
	return excess
`)

// Prune enforces the timeline cap on the given key
func (c *Cache) Prune(pCtx context.Context, key string, cap int64) (int64, error) {
	evicted, err := pruneTimeline.Run(pCtx, c.client, []string{key}, cap).Int64()
	if err != nil {
		return 0, err
	}
	return evicted, nil
}

// Delete removes the keyed timeline entirely
func (c *Cache) Delete(pCtx context.Context, key string) error {
	return c.client.Del(pCtx, key).Err()
}

// Close closes the redis client and optionally deletes the cache
func (c *Cache) Close(clear bool) error {
	if clear {
		if err := c.client.FlushDB(context.Background()).Err(); err != nil {
			return err
		}
	}
	return c.client.Close()
}
