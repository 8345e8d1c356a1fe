package persist

import (
	"context"
	"fmt"
)

// FlatEvent represents a broadcast event row: one producer, fanned out to
// every subscribed consumer.
type FlatEvent struct {
	ID         int64  `json:"id"`
	ItemID     ItemID `json:"item_id"`
	ProducerID UserID `json:"producer_id"`
	Verb       Verb   `json:"verb"`
	Timestamp  int64  `json:"timestamp"`
}

// ActivityEvent represents a directed event row addressed to exactly one
// consumer.
type ActivityEvent struct {
	ID         int64  `json:"id"`
	ItemID     ItemID `json:"item_id"`
	ConsumerID UserID `json:"consumer_id"`
	ProducerID UserID `json:"producer_id"`
	Verb       Verb   `json:"verb"`
	Timestamp  int64  `json:"timestamp"`
}

// Relation represents a consumer's subscription to a producer
type Relation struct {
	ConsumerID UserID `json:"consumer_id"`
	ProducerID UserID `json:"producer_id"`
}

// EventInput is the payload a publish or retract operation carries through
// the processor to the handlers. ConsumerID is only set for activity feeds.
type EventInput struct {
	ItemID     ItemID `json:"item_id" binding:"required"`
	ProducerID UserID `json:"producer_id" binding:"required"`
	ConsumerID UserID `json:"consumer_id"`
	Verb       Verb   `json:"verb" binding:"required"`
	Timestamp  int64  `json:"timestamp"`
}

// FeedEntry is the projection consume returns for each cached item
type FeedEntry struct {
	ItemID ItemID `json:"item_id"`
	Verb   Verb   `json:"verb"`
}

// FlatEventRepository represents the interface for interacting with the
// persisted state of broadcast events
type FlatEventRepository interface {
	Create(context.Context, FlatEvent) error
	Delete(ctx context.Context, producerID UserID, itemID ItemID, verb Verb) error
	GetByProducer(ctx context.Context, producerID UserID, limit, offset int) ([]FlatEvent, error)
	GetByItemIDs(context.Context, []ItemID) ([]FlatEvent, error)
	GetRecentByProducers(ctx context.Context, producerIDs []UserID, limit int) ([]FlatEvent, error)
	GetAll(ctx context.Context, limit, offset int) ([]FlatEvent, error)
}

// ActivityEventRepository represents the interface for interacting with the
// persisted state of directed events
type ActivityEventRepository interface {
	Create(context.Context, ActivityEvent) error
	Delete(ctx context.Context, producerID UserID, itemID ItemID, verb Verb, consumerID UserID) error
	GetByProducerAndConsumer(ctx context.Context, producerID, consumerID UserID, limit, offset int) ([]ActivityEvent, error)
	GetByConsumerAndItemIDs(ctx context.Context, consumerID UserID, itemIDs []ItemID) ([]ActivityEvent, error)
	GetRecentByConsumer(ctx context.Context, consumerID UserID, producerIDs []UserID, limit int) ([]ActivityEvent, error)
	GetAll(ctx context.Context, limit, offset int) ([]ActivityEvent, error)
}

// RelationRepository represents the interface for interacting with the
// persisted state of subscriptions
type RelationRepository interface {
	Insert(ctx context.Context, consumerID, producerID UserID) error
	Delete(ctx context.Context, consumerID, producerID UserID) error
	GetConsumers(ctx context.Context, producerID UserID) ([]UserID, error)
	GetProducers(ctx context.Context, consumerID UserID) ([]UserID, error)
}

// ErrFeedNotFound is returned when no feed is registered under a name
type ErrFeedNotFound struct {
	Name FeedName
}

func (e ErrFeedNotFound) Error() string {
	return fmt.Sprintf("feed not found by name: %s", e.Name)
}

// ErrVerbNotFound is returned when no feed is bound to a verb
type ErrVerbNotFound struct {
	Verb Verb
}

func (e ErrVerbNotFound) Error() string {
	return fmt.Sprintf("no feed bound to verb: %s", e.Verb)
}

// ErrInvalidPayload is returned when a payload is missing a required field
type ErrInvalidPayload struct {
	Reason string
}

func (e ErrInvalidPayload) Error() string {
	return fmt.Sprintf("invalid payload: %s", e.Reason)
}

// ErrCursorNotFound is returned when an after or before cursor references an
// item that is not in the consumer's timeline
type ErrCursorNotFound struct {
	Cursor ItemID
}

func (e ErrCursorNotFound) Error() string {
	return fmt.Sprintf("cursor not found in timeline: %s", e.Cursor)
}

// ErrCursorConflict is returned when both after and before are set
type ErrCursorConflict struct{}

func (e ErrCursorConflict) Error() string {
	return "after and before cursors are mutually exclusive"
}
