package feed

import (
	"context"

	"github.com/Sh4yy/FeedStream/queue"
	"github.com/Sh4yy/FeedStream/service/persist"
)

// Processor routes the public operations onto registered handlers. Writes
// are enqueued onto the task queue and return once queued; Consume is
// synchronous and bypasses the queue entirely.
type Processor struct {
	handlers []Handler
	byName   map[persist.FeedName]Handler
	byVerb   map[persist.Verb][]Handler
	queue    *queue.Queue
}

// NewProcessor creates a processor bound to the given task queue
func NewProcessor(q *queue.Queue) *Processor {
	return &Processor{
		byName: map[persist.FeedName]Handler{},
		byVerb: map[persist.Verb][]Handler{},
		queue:  q,
	}
}

// Register adds a handler to the name and verb registries. Registering the
// same name twice is a no-op. Registration happens at boot, before dispatch.
func (p *Processor) Register(handler Handler) {
	reg := handler.Registration()
	if _, ok := p.byName[reg.Name]; ok {
		return
	}
	p.handlers = append(p.handlers, handler)
	p.byName[reg.Name] = handler
	for _, verb := range reg.Verbs {
		p.byVerb[verb] = append(p.byVerb[verb], handler)
	}
}

// Handlers returns every registered handler
func (p *Processor) Handlers() []Handler {
	return p.handlers
}

// Publish enqueues an add job on every feed bound to the payload's verb
func (p *Processor) Publish(ctx context.Context, input persist.EventInput) error {
	if input.Verb == "" {
		return persist.ErrInvalidPayload{Reason: "verb is required"}
	}

	handlers, ok := p.byVerb[input.Verb]
	if !ok {
		return persist.ErrVerbNotFound{Verb: input.Verb}
	}

	for _, handler := range handlers {
		handler := handler
		err := p.queue.Submit(ctx, "feed.add", func(ctx context.Context) error {
			return handler.Add(ctx, input, true)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Retract enqueues a retract job on every feed bound to the payload's verb
func (p *Processor) Retract(ctx context.Context, input persist.EventInput) error {
	if input.Verb == "" {
		return persist.ErrInvalidPayload{Reason: "verb is required"}
	}

	handlers, ok := p.byVerb[input.Verb]
	if !ok {
		return persist.ErrVerbNotFound{Verb: input.Verb}
	}

	for _, handler := range handlers {
		handler := handler
		err := p.queue.Submit(ctx, "feed.retract", func(ctx context.Context) error {
			return handler.Retract(ctx, input)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Subscribe enqueues a subscribe job on the named feed
func (p *Processor) Subscribe(ctx context.Context, name persist.FeedName, consumerID, producerID persist.UserID) error {
	handler, ok := p.byName[name]
	if !ok {
		return persist.ErrFeedNotFound{Name: name}
	}

	return p.queue.Submit(ctx, "feed.subscribe", func(ctx context.Context) error {
		return handler.Subscribe(ctx, consumerID, producerID)
	})
}

// Unsubscribe enqueues an unsubscribe job on the named feed
func (p *Processor) Unsubscribe(ctx context.Context, name persist.FeedName, consumerID, producerID persist.UserID) error {
	handler, ok := p.byName[name]
	if !ok {
		return persist.ErrFeedNotFound{Name: name}
	}

	return p.queue.Submit(ctx, "feed.unsubscribe", func(ctx context.Context) error {
		return handler.Unsubscribe(ctx, consumerID, producerID)
	})
}

// Consume reads the named feed for a consumer on the caller's goroutine
func (p *Processor) Consume(ctx context.Context, name persist.FeedName, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	handler, ok := p.byName[name]
	if !ok {
		return nil, persist.ErrFeedNotFound{Name: name}
	}

	return handler.Consume(ctx, consumerID, opts)
}
