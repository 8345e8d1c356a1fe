package client

import (
	"context"

	"github.com/Sh4yy/FeedStream/service/persist"
)

// FlatStream is a typed client for a broadcast feed
type FlatStream struct {
	client    *Client
	eventName persist.FeedName
}

// NewFlatStream creates a client bound to the named broadcast feed
func NewFlatStream(eventName persist.FeedName, host string, port int) *FlatStream {
	return &FlatStream{client: New(host, port), eventName: eventName}
}

// Publish publishes a new item under the producer
func (s *FlatStream) Publish(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb, timestamp int64) (bool, error) {
	return s.client.publish(ctx, publishPayload{
		ProducerID: producerID,
		ItemID:     itemID,
		Verb:       verb,
		Timestamp:  timestamp,
	})
}

// Retract retracts a published item
func (s *FlatStream) Retract(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb) (bool, error) {
	return s.client.retract(ctx, publishPayload{
		ProducerID: producerID,
		ItemID:     itemID,
		Verb:       verb,
	})
}

// Subscribe subscribes a consumer to a producer
func (s *FlatStream) Subscribe(ctx context.Context, producerID, consumerID persist.UserID) (bool, error) {
	return s.client.subscribe(ctx, subscriptionPayload{
		EventName:  s.eventName,
		ProducerID: producerID,
		ConsumerID: consumerID,
	})
}

// Unsubscribe unsubscribes a consumer from a producer
func (s *FlatStream) Unsubscribe(ctx context.Context, producerID, consumerID persist.UserID) (bool, error) {
	return s.client.unsubscribe(ctx, subscriptionPayload{
		EventName:  s.eventName,
		ProducerID: producerID,
		ConsumerID: consumerID,
	})
}

// Consume reads the consumer's timeline, newest first
func (s *FlatStream) Consume(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	return s.client.consume(ctx, s.eventName, consumerID, opts)
}

// ActivityStream is a typed client for a directed feed
type ActivityStream struct {
	client    *Client
	eventName persist.FeedName
}

// NewActivityStream creates a client bound to the named directed feed
func NewActivityStream(eventName persist.FeedName, host string, port int) *ActivityStream {
	return &ActivityStream{client: New(host, port), eventName: eventName}
}

// Publish publishes a new item addressed to the given consumer
func (s *ActivityStream) Publish(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb, timestamp int64, consumerID persist.UserID) (bool, error) {
	return s.client.publish(ctx, publishPayload{
		ProducerID: producerID,
		ItemID:     itemID,
		Verb:       verb,
		Timestamp:  timestamp,
		ConsumerID: consumerID,
	})
}

// Retract retracts a published item
func (s *ActivityStream) Retract(ctx context.Context, producerID persist.UserID, itemID persist.ItemID, verb persist.Verb, consumerID persist.UserID) (bool, error) {
	return s.client.retract(ctx, publishPayload{
		ProducerID: producerID,
		ItemID:     itemID,
		Verb:       verb,
		ConsumerID: consumerID,
	})
}

// Subscribe subscribes a consumer to a producer
func (s *ActivityStream) Subscribe(ctx context.Context, producerID, consumerID persist.UserID) (bool, error) {
	return s.client.subscribe(ctx, subscriptionPayload{
		EventName:  s.eventName,
		ProducerID: producerID,
		ConsumerID: consumerID,
	})
}

// Unsubscribe unsubscribes a consumer from a producer
func (s *ActivityStream) Unsubscribe(ctx context.Context, producerID, consumerID persist.UserID) (bool, error) {
	return s.client.unsubscribe(ctx, subscriptionPayload{
		EventName:  s.eventName,
		ProducerID: producerID,
		ConsumerID: consumerID,
	})
}

// Consume reads the consumer's timeline, newest first
func (s *ActivityStream) Consume(ctx context.Context, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	return s.client.consume(ctx, s.eventName, consumerID, opts)
}
