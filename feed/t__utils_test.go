package feed

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/Sh4yy/FeedStream/queue"
	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/stretchr/testify/assert"
)

type testEnv struct {
	processor *Processor
	queue     *queue.Queue
	cache     *memCache
	flatStore *memFlatStore
	actStore  *memActivityStore
	relations *memRelationStore
}

// setupTest wires a processor over in-memory stores with a single worker so
// drain makes every submitted write observable
func setupTest(t *testing.T) (*assert.Assertions, *testEnv) {
	env := &testEnv{
		queue:     queue.New(1, 256),
		cache:     newMemCache(),
		flatStore: &memFlatStore{},
		actStore:  &memActivityStore{},
		relations: &memRelationStore{},
	}
	env.processor = NewProcessor(env.queue)

	env.processor.Register(NewFlat(Registration{
		Name:         "feed",
		Verbs:        []persist.Verb{"podcast"},
		IncludeActor: true,
		MaxCache:     500,
	}, env.flatStore, env.relations, env.cache))

	env.processor.Register(NewActivity(Registration{
		Name:     "notification",
		Verbs:    []persist.Verb{"like", "follow", "comment", "mention"},
		MaxCache: 200,
	}, env.actStore, env.relations, env.cache))

	env.queue.Start()
	t.Cleanup(env.queue.StopWait)

	return assert.New(t), env
}

// drain blocks until every enqueued job has executed
func (e *testEnv) drain() {
	e.queue.Wait()
}

// memCache is an in-memory stand-in for the redis timeline cache. Reads
// yield score descending, ties broken by member ascending.
type memCache struct {
	mu   sync.Mutex
	sets map[string]map[string]float64
}

func newMemCache() *memCache {
	return &memCache{sets: map[string]map[string]float64{}}
}

func (c *memCache) sorted(key string) []memstore.Entry {
	entries := make([]memstore.Entry, 0, len(c.sets[key]))
	for member, score := range c.sets[key] {
		entries = append(entries, memstore.Entry{Member: member, Score: score})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Member < entries[j].Member
	})
	return entries
}

func (c *memCache) Add(ctx context.Context, key, member string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets[key] == nil {
		c.sets[key] = map[string]float64{}
	}
	c.sets[key][member] = score
	return nil
}

func (c *memCache) BulkAdd(ctx context.Context, key string, entries []memstore.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets[key] == nil {
		c.sets[key] = map[string]float64{}
	}
	for _, entry := range entries {
		c.sets[key][entry.Member] = entry.Score
	}
	return nil
}

func (c *memCache) Remove(ctx context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, member := range members {
		delete(c.sets[key], member)
	}
	return nil
}

func (c *memCache) RevRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.sorted(key)
	if start < 0 {
		start = 0
	}
	if stop >= int64(len(entries)) {
		stop = int64(len(entries)) - 1
	}
	if start > stop {
		return []string{}, nil
	}
	members := make([]string, 0, stop-start+1)
	for _, entry := range entries[start : stop+1] {
		members = append(members, entry.Member)
	}
	return members, nil
}

func (c *memCache) RevRank(ctx context.Context, key, member string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, entry := range c.sorted(key) {
		if entry.Member == member {
			return int64(i), nil
		}
	}
	return 0, memstore.ErrMemberNotFound{Key: key, Member: member}
}

func (c *memCache) Cardinality(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.sets[key])), nil
}

func (c *memCache) Prune(ctx context.Context, key string, cap int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.sorted(key)
	evicted := int64(0)
	for int64(len(entries))-evicted > cap {
		lowest := entries[len(entries)-1-int(evicted)]
		delete(c.sets[key], lowest.Member)
		evicted++
	}
	return evicted, nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sets, key)
	return nil
}

// memFlatStore is an in-memory flat event store preserving insertion order
type memFlatStore struct {
	mu     sync.Mutex
	events []persist.FlatEvent
	nextID int64
}

func (s *memFlatStore) Create(ctx context.Context, event persist.FlatEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ProducerID == event.ProducerID && existing.ItemID == event.ItemID && existing.Verb == event.Verb {
			return nil
		}
	}
	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, event)
	return nil
}

func (s *memFlatStore) Delete(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, event := range s.events {
		if event.ProducerID == producerID && event.ItemID == itemID && event.Verb == verb {
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return nil
}

func (s *memFlatStore) GetByProducer(ctx context.Context, producerID persist.UserID, limit, offset int) ([]persist.FlatEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []persist.FlatEvent{}
	for _, event := range s.events {
		if event.ProducerID == producerID {
			matched = append(matched, event)
		}
	}
	return page(matched, limit, offset), nil
}

func (s *memFlatStore) GetByItemIDs(ctx context.Context, itemIDs []persist.ItemID) ([]persist.FlatEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[persist.ItemID]bool{}
	for _, id := range itemIDs {
		wanted[id] = true
	}
	matched := []persist.FlatEvent{}
	for _, event := range s.events {
		if wanted[event.ItemID] {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (s *memFlatStore) GetRecentByProducers(ctx context.Context, producerIDs []persist.UserID, limit int) ([]persist.FlatEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[persist.UserID]bool{}
	for _, id := range producerIDs {
		wanted[id] = true
	}
	matched := []persist.FlatEvent{}
	for _, event := range s.events {
		if wanted[event.ProducerID] {
			matched = append(matched, event)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp > matched[j].Timestamp
		}
		return matched[i].ItemID < matched[j].ItemID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *memFlatStore) GetAll(ctx context.Context, limit, offset int) ([]persist.FlatEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.events, limit, offset), nil
}

// memActivityStore is an in-memory activity event store preserving
// insertion order
type memActivityStore struct {
	mu     sync.Mutex
	events []persist.ActivityEvent
	nextID int64
}

func (s *memActivityStore) Create(ctx context.Context, event persist.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.events {
		if existing.ProducerID == event.ProducerID && existing.ItemID == event.ItemID &&
			existing.Verb == event.Verb && existing.ConsumerID == event.ConsumerID {
			return nil
		}
	}
	s.nextID++
	event.ID = s.nextID
	s.events = append(s.events, event)
	return nil
}

func (s *memActivityStore) Delete(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb, consumerID persist.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	for _, event := range s.events {
		if event.ProducerID == producerID && event.ItemID == itemID && event.Verb == verb && event.ConsumerID == consumerID {
			continue
		}
		kept = append(kept, event)
	}
	s.events = kept
	return nil
}

func (s *memActivityStore) GetByProducerAndConsumer(ctx context.Context, producerID, consumerID persist.UserID, limit, offset int) ([]persist.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := []persist.ActivityEvent{}
	for _, event := range s.events {
		if event.ProducerID == producerID && event.ConsumerID == consumerID {
			matched = append(matched, event)
		}
	}
	return page(matched, limit, offset), nil
}

func (s *memActivityStore) GetByConsumerAndItemIDs(ctx context.Context, consumerID persist.UserID, itemIDs []persist.ItemID) ([]persist.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[persist.ItemID]bool{}
	for _, id := range itemIDs {
		wanted[id] = true
	}
	matched := []persist.ActivityEvent{}
	for _, event := range s.events {
		if event.ConsumerID == consumerID && wanted[event.ItemID] {
			matched = append(matched, event)
		}
	}
	return matched, nil
}

func (s *memActivityStore) GetRecentByConsumer(ctx context.Context, consumerID persist.UserID, producerIDs []persist.UserID, limit int) ([]persist.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := map[persist.UserID]bool{}
	for _, id := range producerIDs {
		wanted[id] = true
	}
	matched := []persist.ActivityEvent{}
	for _, event := range s.events {
		if event.ConsumerID == consumerID && wanted[event.ProducerID] {
			matched = append(matched, event)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp != matched[j].Timestamp {
			return matched[i].Timestamp > matched[j].Timestamp
		}
		return matched[i].ItemID < matched[j].ItemID
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *memActivityStore) GetAll(ctx context.Context, limit, offset int) ([]persist.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return page(s.events, limit, offset), nil
}

// memRelationStore is an in-memory relation store
type memRelationStore struct {
	mu        sync.Mutex
	relations []persist.Relation
}

func (s *memRelationStore) Insert(ctx context.Context, consumerID, producerID persist.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rel := range s.relations {
		if rel.ConsumerID == consumerID && rel.ProducerID == producerID {
			return nil
		}
	}
	s.relations = append(s.relations, persist.Relation{ConsumerID: consumerID, ProducerID: producerID})
	return nil
}

func (s *memRelationStore) Delete(ctx context.Context, consumerID, producerID persist.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.relations[:0]
	for _, rel := range s.relations {
		if rel.ConsumerID == consumerID && rel.ProducerID == producerID {
			continue
		}
		kept = append(kept, rel)
	}
	s.relations = kept
	return nil
}

func (s *memRelationStore) GetConsumers(ctx context.Context, producerID persist.UserID) ([]persist.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	consumers := []persist.UserID{}
	for _, rel := range s.relations {
		if rel.ProducerID == producerID {
			consumers = append(consumers, rel.ConsumerID)
		}
	}
	return consumers, nil
}

func (s *memRelationStore) GetProducers(ctx context.Context, consumerID persist.UserID) ([]persist.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	producers := []persist.UserID{}
	for _, rel := range s.relations {
		if rel.ConsumerID == consumerID {
			producers = append(producers, rel.ProducerID)
		}
	}
	return producers, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-offset)
	copy(out, items[offset:end])
	return out
}
