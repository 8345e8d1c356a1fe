package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sh4yy/FeedStream/service/memstore"
	"github.com/Sh4yy/FeedStream/service/persist"
)

// DefaultLimit is the number of entries consume returns when no limit is given
const DefaultLimit = 20

// backfillBatchSize bounds how many rows a subscribe or unsubscribe streams
// from the store per round trip
const backfillBatchSize = 500

// Registration is the immutable description a handler is created with
type Registration struct {
	Name         persist.FeedName
	Verbs        []persist.Verb
	IncludeActor bool
	MaxCache     int64
}

// ConsumeOptions control the read path. After and Before are mutually
// exclusive cursors into the consumer's timeline.
type ConsumeOptions struct {
	Limit  int
	After  persist.ItemID
	Before persist.ItemID
}

// Handler is the capability set every feed variant implements. Add with
// save=false refills the cache without re-persisting the row; the preloader
// relies on that.
type Handler interface {
	Registration() Registration
	Add(ctx context.Context, input persist.EventInput, save bool) error
	Retract(ctx context.Context, input persist.EventInput) error
	Subscribe(ctx context.Context, consumerID, producerID persist.UserID) error
	Unsubscribe(ctx context.Context, consumerID, producerID persist.UserID) error
	Consume(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error)
	Rebuild(ctx context.Context, consumerID persist.UserID) error
	ForEachStored(ctx context.Context, fn func(persist.EventInput) error) error
}

// timeline is the read path both variants share. It owns the cache key
// scheme and the cursor arithmetic over the reverse-ordered set.
type timeline struct {
	name     persist.FeedName
	maxCache int64
	cache    memstore.TimelineCache
}

// key returns the cache key of a consumer's timeline
func (t timeline) key(consumerID persist.UserID) string {
	return fmt.Sprintf("%s:%s", consumerID, t.name)
}

// collect resolves a consume request to an ordered list of item IDs. An
// absent or empty timeline is rebuilt once before the range is taken.
func (t timeline) collect(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions, rebuild func(context.Context, persist.UserID) error) ([]persist.ItemID, error) {
	if opts.After != "" && opts.Before != "" {
		return nil, persist.ErrCursorConflict{}
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}

	key := t.key(consumerID)

	count, err := t.cache.Cardinality(ctx, key)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		if err := rebuild(ctx, consumerID); err != nil {
			return nil, err
		}
		count, err = t.cache.Cardinality(ctx, key)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			return []persist.ItemID{}, nil
		}
	}

	limit := int64(opts.Limit)
	start, end := int64(0), limit-1

	switch {
	case opts.After != "":
		rank, err := t.rank(ctx, key, opts.After)
		if err != nil {
			return nil, err
		}
		start = rank + 1
		end = start + limit - 1
	case opts.Before != "":
		rank, err := t.rank(ctx, key, opts.Before)
		if err != nil {
			return nil, err
		}
		end = rank - 1
		start = rank - limit
		if start < 0 {
			start = 0
		}
	}

	if end < start {
		return []persist.ItemID{}, nil
	}

	members, err := t.cache.RevRange(ctx, key, start, end)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]persist.ItemID, len(members))
	for i, member := range members {
		itemIDs[i] = persist.ItemID(member)
	}
	return itemIDs, nil
}

func (t timeline) rank(ctx context.Context, key string, cursor persist.ItemID) (int64, error) {
	rank, err := t.cache.RevRank(ctx, key, cursor.String())
	if err != nil {
		var notFound memstore.ErrMemberNotFound
		if errors.As(err, &notFound) {
			return 0, persist.ErrCursorNotFound{Cursor: cursor}
		}
		return 0, err
	}
	return rank, nil
}

// addAndPrune grows a timeline by one member and immediately enforces the cap
func (t timeline) addAndPrune(ctx context.Context, consumerID persist.UserID, itemID persist.ItemID, timestamp int64) error {
	key := t.key(consumerID)
	if err := t.cache.Add(ctx, key, itemID.String(), float64(timestamp)); err != nil {
		return err
	}
	_, err := t.cache.Prune(ctx, key, t.maxCache)
	return err
}
