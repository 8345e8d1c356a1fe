package feed

import (
	"context"

	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/Sh4yy/FeedStream/service/persist"
	"golang.org/x/sync/errgroup"
)

// fanOutConcurrency bounds the number of timelines written at once during a
// single fan-out
const fanOutConcurrency = 8

// Flat is the broadcast feed variant: every item a producer publishes fans
// out to the timeline of each of its subscribers.
type Flat struct {
	reg       Registration
	events    persist.FlatEventRepository
	relations persist.RelationRepository
	timeline  timeline
}

// NewFlat creates a broadcast feed handler
func NewFlat(reg Registration, events persist.FlatEventRepository, relations persist.RelationRepository, cache memstore.TimelineCache) *Flat {
	return &Flat{
		reg:       reg,
		events:    events,
		relations: relations,
		timeline:  timeline{name: reg.Name, maxCache: reg.MaxCache, cache: cache},
	}
}

// Registration returns the handler's immutable registration
func (f *Flat) Registration() Registration {
	return f.reg
}

// Add persists the row, then fans the item out to every subscriber's
// timeline. With save=false only the fan-out runs.
func (f *Flat) Add(ctx context.Context, input persist.EventInput, save bool) error {
	if input.ItemID == "" || input.ProducerID == "" {
		return persist.ErrInvalidPayload{Reason: "item_id and producer_id are required"}
	}

	if save {
		err := f.events.Create(ctx, persist.FlatEvent{
			ItemID:     input.ItemID,
			ProducerID: input.ProducerID,
			Verb:       input.Verb,
			Timestamp:  input.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	consumers, err := f.audience(ctx, input.ProducerID)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanOutConcurrency)
	for _, consumerID := range consumers {
		consumerID := consumerID
		group.Go(func() error {
			return f.timeline.addAndPrune(groupCtx, consumerID, input.ItemID, input.Timestamp)
		})
	}
	return group.Wait()
}

// Retract removes the item from every affected timeline, then deletes the
// row. Cache first, so no timeline ever references a deleted row.
func (f *Flat) Retract(ctx context.Context, input persist.EventInput) error {
	if input.ItemID == "" || input.ProducerID == "" {
		return persist.ErrInvalidPayload{Reason: "item_id and producer_id are required"}
	}

	consumers, err := f.audience(ctx, input.ProducerID)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fanOutConcurrency)
	for _, consumerID := range consumers {
		consumerID := consumerID
		group.Go(func() error {
			return f.timeline.cache.Remove(groupCtx, f.timeline.key(consumerID), input.ItemID.String())
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	return f.events.Delete(ctx, input.ProducerID, input.ItemID, input.Verb)
}

// Subscribe inserts the relation, then backfills the producer's history
// into the consumer's timeline. Original timestamps are kept as scores.
func (f *Flat) Subscribe(ctx context.Context, consumerID, producerID persist.UserID) error {
	if err := f.relations.Insert(ctx, consumerID, producerID); err != nil {
		return err
	}

	key := f.timeline.key(consumerID)
	for offset := 0; ; offset += backfillBatchSize {
		events, err := f.events.GetByProducer(ctx, producerID, backfillBatchSize, offset)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			break
		}
		entries := make([]memstore.Entry, len(events))
		for i, event := range events {
			entries[i] = memstore.Entry{Member: event.ItemID.String(), Score: float64(event.Timestamp)}
		}
		if err := f.timeline.cache.BulkAdd(ctx, key, entries); err != nil {
			return err
		}
	}

	_, err := f.timeline.cache.Prune(ctx, key, f.reg.MaxCache)
	return err
}

// Unsubscribe removes the producer's items from the consumer's timeline,
// then deletes the relation. The relation must outlive the removal so the
// affected rows can still be found.
func (f *Flat) Unsubscribe(ctx context.Context, consumerID, producerID persist.UserID) error {
	key := f.timeline.key(consumerID)
	for offset := 0; ; offset += backfillBatchSize {
		events, err := f.events.GetByProducer(ctx, producerID, backfillBatchSize, offset)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			break
		}
		members := make([]string, len(events))
		for i, event := range events {
			members[i] = event.ItemID.String()
		}
		if err := f.timeline.cache.Remove(ctx, key, members...); err != nil {
			return err
		}
	}

	return f.relations.Delete(ctx, consumerID, producerID)
}

// Consume returns up to limit entries of the consumer's timeline, newest
// first, projected to item_id and verb.
func (f *Flat) Consume(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	itemIDs, err := f.timeline.collect(ctx, consumerID, opts, f.Rebuild)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return []persist.FeedEntry{}, nil
	}

	events, err := f.events.GetByItemIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	verbs := make(map[persist.ItemID]persist.Verb, len(events))
	for _, event := range events {
		verbs[event.ItemID] = event.Verb
	}

	entries := make([]persist.FeedEntry, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		verb, ok := verbs[itemID]
		if !ok {
			// retracted between the range read and the join
			continue
		}
		entries = append(entries, persist.FeedEntry{ItemID: itemID, Verb: verb})
	}
	return entries, nil
}

// Rebuild recreates the consumer's timeline from the store, bounded to the
// feed's cap
func (f *Flat) Rebuild(ctx context.Context, consumerID persist.UserID) error {
	producers, err := f.relations.GetProducers(ctx, consumerID)
	if err != nil {
		return err
	}
	if f.reg.IncludeActor {
		producers = append(producers, consumerID)
	}
	if len(producers) == 0 {
		return nil
	}

	events, err := f.events.GetRecentByProducers(ctx, producers, int(f.reg.MaxCache))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	entries := make([]memstore.Entry, len(events))
	for i, event := range events {
		entries[i] = memstore.Entry{Member: event.ItemID.String(), Score: float64(event.Timestamp)}
	}

	key := f.timeline.key(consumerID)
	if err := f.timeline.cache.BulkAdd(ctx, key, entries); err != nil {
		return err
	}
	_, err = f.timeline.cache.Prune(ctx, key, f.reg.MaxCache)
	return err
}

// ForEachStored replays every stored row in insertion order
func (f *Flat) ForEachStored(ctx context.Context, fn func(persist.EventInput) error) error {
	for offset := 0; ; offset += backfillBatchSize {
		events, err := f.events.GetAll(ctx, backfillBatchSize, offset)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		for _, event := range events {
			err := fn(persist.EventInput{
				ItemID:     event.ItemID,
				ProducerID: event.ProducerID,
				Verb:       event.Verb,
				Timestamp:  event.Timestamp,
			})
			if err != nil {
				return err
			}
		}
	}
}

// audience returns every consumer whose timeline the producer's items reach
func (f *Flat) audience(ctx context.Context, producerID persist.UserID) ([]persist.UserID, error) {
	consumers, err := f.relations.GetConsumers(ctx, producerID)
	if err != nil {
		return nil, err
	}
	if f.reg.IncludeActor {
		consumers = append(consumers, producerID)
	}
	return consumers, nil
}
