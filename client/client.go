package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sh4yy/FeedStream/service/persist"
)

const version = "v1"

// Client is the shared HTTP client the typed streams are built on
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client pointed at a feedstream deployment
func New(host string, port int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://%s:%d/%s", host, port, version),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) post(ctx context.Context, method string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s", c.baseURL, method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, method string, args url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s?%s", c.baseURL, method, args.Encode()), nil)
	if err != nil {
		return err
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		errRes := struct {
			Message string `json:"message"`
		}{}
		json.NewDecoder(res.Body).Decode(&errRes)
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, res.StatusCode, errRes.Message)
	}

	return json.NewDecoder(res.Body).Decode(out)
}

type publishPayload struct {
	ProducerID persist.UserID `json:"producer_id"`
	ItemID     persist.ItemID `json:"item_id"`
	Verb       persist.Verb   `json:"verb"`
	Timestamp  int64          `json:"timestamp,omitempty"`
	ConsumerID persist.UserID `json:"consumer_id,omitempty"`
}

type subscriptionPayload struct {
	EventName  persist.FeedName `json:"event_name"`
	ProducerID persist.UserID   `json:"producer_id"`
	ConsumerID persist.UserID   `json:"consumer_id"`
}

func (c *Client) publish(ctx context.Context, payload publishPayload) (bool, error) {
	out := struct {
		Published bool `json:"published"`
	}{}
	err := c.post(ctx, "publish", payload, &out)
	return out.Published, err
}

func (c *Client) retract(ctx context.Context, payload publishPayload) (bool, error) {
	out := struct {
		Retracted bool `json:"retracted"`
	}{}
	err := c.post(ctx, "retract", payload, &out)
	return out.Retracted, err
}

func (c *Client) subscribe(ctx context.Context, payload subscriptionPayload) (bool, error) {
	out := struct {
		Subscribed bool `json:"subscribed"`
	}{}
	err := c.post(ctx, "subscribe", payload, &out)
	return out.Subscribed, err
}

func (c *Client) unsubscribe(ctx context.Context, payload subscriptionPayload) (bool, error) {
	out := struct {
		Unsubscribed bool `json:"unsubscribed"`
	}{}
	err := c.post(ctx, "unsubscribe", payload, &out)
	return out.Unsubscribed, err
}

// ConsumeOptions control a consume call. After and Before are mutually
// exclusive.
type ConsumeOptions struct {
	Limit  int
	After  persist.ItemID
	Before persist.ItemID
}

func (c *Client) consume(ctx context.Context, eventName persist.FeedName, consumerID persist.UserID, opts ConsumeOptions) ([]persist.FeedEntry, error) {
	args := url.Values{}
	args.Set("event_name", eventName.String())
	args.Set("consumer_id", consumerID.String())
	if opts.Limit > 0 {
		args.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.After != "" {
		args.Set("after", opts.After.String())
	}
	if opts.Before != "" {
		args.Set("before", opts.Before.String())
	}

	out := struct {
		Data []persist.FeedEntry `json:"data"`
	}{}
	err := c.get(ctx, "consume", args, &out)
	return out.Data, err
}
