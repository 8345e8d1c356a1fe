package feed

import (
	"context"
	"testing"

	"github.com/Sh4yy/FeedStream/service/persist"
)

func TestConsumeAfterCursor_Success(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 30)

	all, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{Limit: 30})
	a.NoError(err)
	a.Len(all, 30)

	next, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit: 10,
		After: all[5].ItemID,
	})
	a.NoError(err)
	a.Len(next, 10)
	a.Equal(all[6:16], next)
}

func TestConsumeBeforeCursor_Success(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 30)

	all, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{Limit: 30})
	a.NoError(err)

	prev, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit:  10,
		Before: all[15].ItemID,
	})
	a.NoError(err)
	a.Equal(all[5:15], prev)
}

func TestConsumeBeforeCursorNearHead_Clamps(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 30)

	all, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{Limit: 30})
	a.NoError(err)

	prev, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit:  10,
		Before: all[3].ItemID,
	})
	a.NoError(err)
	a.Equal(all[0:3], prev)
}

func TestConsumeBeforeFirstEntry_Empty(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 10)

	all, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{Limit: 10})
	a.NoError(err)

	prev, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit:  10,
		Before: all[0].ItemID,
	})
	a.NoError(err)
	a.Len(prev, 0)
}

func TestConsumeUnknownCursor_Fails(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 5)

	_, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit: 10,
		After: "no-such-item",
	})
	a.ErrorAs(err, &persist.ErrCursorNotFound{})
}

func TestConsumeBothCursors_Fails(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 5)

	_, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{
		Limit:  10,
		After:  "item-0001",
		Before: "item-0002",
	})
	a.ErrorAs(err, &persist.ErrCursorConflict{})
}

func TestConsumeDefaultLimit_Success(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")
	publishN(t, env, "shayan", 30)

	entries, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{})
	a.NoError(err)
	a.Len(entries, DefaultLimit)
}

func TestConsumeTieBreak_ItemIDAscending(t *testing.T) {
	a, env := setupTest(t)

	subscribeAll(t, env, "shayan", "u1")

	// identical timestamps resolve by item_id ascending
	for _, itemID := range []persist.ItemID{"c", "a", "b"} {
		err := env.processor.Publish(context.Background(), persist.EventInput{
			ItemID:     itemID,
			ProducerID: "shayan",
			Verb:       "podcast",
			Timestamp:  1000,
		})
		a.NoError(err)
	}
	env.drain()

	entries, err := env.processor.Consume(context.Background(), "feed", "u1", ConsumeOptions{Limit: 10})
	a.NoError(err)
	a.Len(entries, 3)
	a.Equal(persist.ItemID("a"), entries[0].ItemID)
	a.Equal(persist.ItemID("b"), entries[1].ItemID)
	a.Equal(persist.ItemID("c"), entries[2].ItemID)
}
