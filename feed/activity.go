package feed

import (
	"context"

	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/Sh4yy/FeedStream/service/persist"
)

// Activity is the directed feed variant: every item is addressed to exactly
// one consumer, and subscriptions gate which producers surface there.
type Activity struct {
	reg       Registration
	events    persist.ActivityEventRepository
	relations persist.RelationRepository
	timeline  timeline
}

// NewActivity creates a directed feed handler
func NewActivity(reg Registration, events persist.ActivityEventRepository, relations persist.RelationRepository, cache memstore.TimelineCache) *Activity {
	return &Activity{
		reg:       reg,
		events:    events,
		relations: relations,
		timeline:  timeline{name: reg.Name, maxCache: reg.MaxCache, cache: cache},
	}
}

// Registration returns the handler's immutable registration
func (a *Activity) Registration() Registration {
	return a.reg
}

// Add persists the row and places it on the addressed consumer's timeline.
// The producer picks the consumer directly; subscription is not consulted.
func (a *Activity) Add(ctx context.Context, input persist.EventInput, save bool) error {
	if input.ItemID == "" || input.ProducerID == "" {
		return persist.ErrInvalidPayload{Reason: "item_id and producer_id are required"}
	}
	if input.ConsumerID == "" {
		return persist.ErrInvalidPayload{Reason: "consumer_id is required for activity feeds"}
	}

	if save {
		err := a.events.Create(ctx, persist.ActivityEvent{
			ItemID:     input.ItemID,
			ConsumerID: input.ConsumerID,
			ProducerID: input.ProducerID,
			Verb:       input.Verb,
			Timestamp:  input.Timestamp,
		})
		if err != nil {
			return err
		}
	}

	return a.timeline.addAndPrune(ctx, input.ConsumerID, input.ItemID, input.Timestamp)
}

// Retract removes the item from the addressed consumer's timeline, then
// deletes the row matching the full key
func (a *Activity) Retract(ctx context.Context, input persist.EventInput) error {
	if input.ItemID == "" || input.ProducerID == "" {
		return persist.ErrInvalidPayload{Reason: "item_id and producer_id are required"}
	}
	if input.ConsumerID == "" {
		return persist.ErrInvalidPayload{Reason: "consumer_id is required for activity feeds"}
	}

	if err := a.timeline.cache.Remove(ctx, a.timeline.key(input.ConsumerID), input.ItemID.String()); err != nil {
		return err
	}

	return a.events.Delete(ctx, input.ProducerID, input.ItemID, input.Verb, input.ConsumerID)
}

// Subscribe inserts the relation, then backfills what the producer already
// addressed to this consumer
func (a *Activity) Subscribe(ctx context.Context, consumerID, producerID persist.UserID) error {
	if err := a.relations.Insert(ctx, consumerID, producerID); err != nil {
		return err
	}

	key := a.timeline.key(consumerID)
	for offset := 0; ; offset += backfillBatchSize {
		events, err := a.events.GetByProducerAndConsumer(ctx, producerID, consumerID, backfillBatchSize, offset)
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
		if err := a.timeline.cache.BulkAdd(ctx, key, entries); err != nil {
			return err
		}
	}

	_, err := a.timeline.cache.Prune(ctx, key, a.reg.MaxCache)
	return err
}

// Unsubscribe removes the producer's items from the consumer's timeline,
// then deletes the relation
func (a *Activity) Unsubscribe(ctx context.Context, consumerID, producerID persist.UserID) error {
	key := a.timeline.key(consumerID)
	for offset := 0; ; offset += backfillBatchSize {
		events, err := a.events.GetByProducerAndConsumer(ctx, producerID, consumerID, backfillBatchSize, offset)
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
		if err := a.timeline.cache.Remove(ctx, key, members...); err != nil {
			return err
		}
	}

	return a.relations.Delete(ctx, consumerID, producerID)
}

// Consume returns up to limit entries of the consumer's timeline, newest
// first, projected to item_id and verb
func (a *Activity) Consume(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	itemIDs, err := a.timeline.collect(ctx, consumerID, opts, a.Rebuild)
	if err != nil {
		return nil, err
	}
	if len(itemIDs) == 0 {
		return []persist.FeedEntry{}, nil
	}

	events, err := a.events.GetByConsumerAndItemIDs(ctx, consumerID, itemIDs)
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
			continue
		}
		entries = append(entries, persist.FeedEntry{ItemID: itemID, Verb: verb})
	}
	return entries, nil
}

// Rebuild recreates the consumer's timeline from the store, restricted to
// producers the consumer is still subscribed to
func (a *Activity) Rebuild(ctx context.Context, consumerID persist.UserID) error {
	producers, err := a.relations.GetProducers(ctx, consumerID)
	if err != nil {
		return err
	}
	if len(producers) == 0 {
		return nil
	}

	events, err := a.events.GetRecentByConsumer(ctx, consumerID, producers, int(a.reg.MaxCache))
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

	key := a.timeline.key(consumerID)
	if err := a.timeline.cache.BulkAdd(ctx, key, entries); err != nil {
		return err
	}
	_, err = a.timeline.cache.Prune(ctx, key, a.reg.MaxCache)
	return err
}

// ForEachStored replays every stored row in insertion order
func (a *Activity) ForEachStored(ctx context.Context, fn func(persist.EventInput) error) error {
	for offset := 0; ; offset += backfillBatchSize {
		events, err := a.events.GetAll(ctx, backfillBatchSize, offset)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}
		for _, event := range events {
			err := fn(persist.EventInput{
				ItemID:     event.ItemID,
				ConsumerID: event.ConsumerID,
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
