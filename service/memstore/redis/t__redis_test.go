package redis

import (
	"context"
	"testing"

	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupTest(t *testing.T) (*assert.Assertions, *Cache) {
	mr := miniredis.RunT(t)
	viper.Set("REDIS_URL", mr.Addr())
	viper.Set("REDIS_PASS", "")

	cache := NewCache(TestSuiteDB)
	t.Cleanup(func() { cache.Close(true) })

	return assert.New(t), cache
}

// seedTied fills a timeline with one high entry, an equal-score run of
// three, and one low entry. Expected read order: d, a, b, c, e.
func seedTied(a *assert.Assertions, cache *Cache, key string) {
	a.NoError(cache.Add(context.Background(), key, "d", 2000))
	a.NoError(cache.BulkAdd(context.Background(), key, []memstore.Entry{
		{Member: "c", Score: 1000},
		{Member: "a", Score: 1000},
		{Member: "b", Score: 1000},
	}))
	a.NoError(cache.Add(context.Background(), key, "e", 500))
}

func TestRevRangeTieBreak_Success(t *testing.T) {
	a, cache := setupTest(t)
	seedTied(a, cache, "u1:feed")

	members, err := cache.RevRange(context.Background(), "u1:feed", 0, 4)
	a.NoError(err)
	a.Equal([]string{"d", "a", "b", "c", "e"}, members)

	// windows cutting through the equal-score run
	members, err = cache.RevRange(context.Background(), "u1:feed", 0, 1)
	a.NoError(err)
	a.Equal([]string{"d", "a"}, members)

	members, err = cache.RevRange(context.Background(), "u1:feed", 2, 3)
	a.NoError(err)
	a.Equal([]string{"b", "c"}, members)

	members, err = cache.RevRange(context.Background(), "u1:feed", 3, 10)
	a.NoError(err)
	a.Equal([]string{"c", "e"}, members)
}

func TestRevRangeTiesOnly_Success(t *testing.T) {
	a, cache := setupTest(t)

	a.NoError(cache.BulkAdd(context.Background(), "u1:feed", []memstore.Entry{
		{Member: "c", Score: 1000},
		{Member: "a", Score: 1000},
		{Member: "b", Score: 1000},
	}))

	members, err := cache.RevRange(context.Background(), "u1:feed", 0, 1)
	a.NoError(err)
	a.Equal([]string{"a", "b"}, members)
}

func TestRevRangeEmptyKey_Success(t *testing.T) {
	a, cache := setupTest(t)

	members, err := cache.RevRange(context.Background(), "u1:feed", 0, 10)
	a.NoError(err)
	a.Len(members, 0)
}

func TestRevRankTieBreak_Success(t *testing.T) {
	a, cache := setupTest(t)
	seedTied(a, cache, "u1:feed")

	for i, member := range []string{"d", "a", "b", "c", "e"} {
		rank, err := cache.RevRank(context.Background(), "u1:feed", member)
		a.NoError(err)
		a.EqualValues(i, rank)
	}
}

func TestRevRankMissingMember_Fails(t *testing.T) {
	a, cache := setupTest(t)
	seedTied(a, cache, "u1:feed")

	_, err := cache.RevRank(context.Background(), "u1:feed", "nope")
	a.ErrorAs(err, &memstore.ErrMemberNotFound{})
}

func TestPruneEvictsLowest_Success(t *testing.T) {
	a, cache := setupTest(t)

	entries := make([]memstore.Entry, 6)
	for i := range entries {
		entries[i] = memstore.Entry{Member: string(rune('a' + i)), Score: float64(1000 + i)}
	}
	a.NoError(cache.BulkAdd(context.Background(), "u1:feed", entries))

	evicted, err := cache.Prune(context.Background(), "u1:feed", 4)
	a.NoError(err)
	a.EqualValues(2, evicted)

	count, err := cache.Cardinality(context.Background(), "u1:feed")
	a.NoError(err)
	a.EqualValues(4, count)

	members, err := cache.RevRange(context.Background(), "u1:feed", 0, 3)
	a.NoError(err)
	a.Equal([]string{"f", "e", "d", "c"}, members)
}

func TestPruneUnderCap_NoOp(t *testing.T) {
	a, cache := setupTest(t)

	a.NoError(cache.Add(context.Background(), "u1:feed", "a", 1000))

	evicted, err := cache.Prune(context.Background(), "u1:feed", 4)
	a.NoError(err)
	a.EqualValues(0, evicted)
}

func TestRemoveAndDelete_Success(t *testing.T) {
	a, cache := setupTest(t)
	seedTied(a, cache, "u1:feed")

	a.NoError(cache.Remove(context.Background(), "u1:feed", "b", "d"))

	members, err := cache.RevRange(context.Background(), "u1:feed", 0, 10)
	a.NoError(err)
	a.Equal([]string{"a", "c", "e"}, members)

	a.NoError(cache.Delete(context.Background(), "u1:feed"))

	count, err := cache.Cardinality(context.Background(), "u1:feed")
	a.NoError(err)
	a.EqualValues(0, count)
}

func TestClearCache_Success(t *testing.T) {
	a, cache := setupTest(t)
	seedTied(a, cache, "u1:feed")

	a.NoError(ClearCache(TestSuiteDB))

	count, err := cache.Cardinality(context.Background(), "u1:feed")
	a.NoError(err)
	a.EqualValues(0, count)

	a.Equal("TestSuiteDB", GetNameForDatabase(TestSuiteDB))
}
