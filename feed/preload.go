package feed

import (
	"context"

	"github.com/Sh4yy/FeedStream/service/logger"
	"github.com/Sh4yy/FeedStream/service/persist"
	"github.com/gammazero/workerpool"
	"github.com/sirupsen/logrus"
)

// Preload replays every stored event of every registered feed through the
// add path without re-persisting, repopulating the timeline caches after a
// cold start. Feeds are replayed concurrently; within a feed, rows run in
// insertion order. Row failures are logged and skipped so boot completes.
func (p *Processor) Preload(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	wp := workerpool.New(workers)

	for _, handler := range p.handlers {
		handler := handler
		wp.Submit(func() {
			preloadFeed(ctx, handler)
		})
	}

	wp.StopWait()
}

func preloadFeed(ctx context.Context, handler Handler) {
	reg := handler.Registration()
	ctx = logger.NewContextWithFields(ctx, logrus.Fields{"feed": reg.Name})

	count := 0
	err := handler.ForEachStored(ctx, func(input persist.EventInput) error {
		if err := handler.Add(ctx, input, false); err != nil {
			logger.For(ctx).WithError(err).Errorf("failed to preload item %s", input.ItemID)
		}
		count++
		return nil
	})
	if err != nil {
		logger.For(ctx).WithError(err).Error("preload aborted")
		return
	}

	logger.For(ctx).Infof("preloaded %d events", count)
}
