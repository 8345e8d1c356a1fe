package memstore

import (
	"context"
	"fmt"
)

// Entry represents a single scored member of a timeline
type Entry struct {
	Member string
	Score  float64
}

// TimelineCache represents an abstraction over a sorted-set cache holding
// per-consumer timelines. Reads yield members by score descending, ties
// broken by member ascending.
type TimelineCache interface {
	Add(ctx context.Context, key, member string, score float64) error
	BulkAdd(ctx context.Context, key string, entries []Entry) error
	Remove(ctx context.Context, key string, members ...string) error
	RevRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	RevRank(ctx context.Context, key, member string) (int64, error)
	Cardinality(ctx context.Context, key string) (int64, error)
	Prune(ctx context.Context, key string, cap int64) (int64, error)
	Delete(ctx context.Context, key string) error
}

// ErrMemberNotFound is returned when a member is not found in a sorted set
type ErrMemberNotFound struct {
	Key    string
	Member string
}

func (e ErrMemberNotFound) Error() string {
	return fmt.Sprintf("member %s not found in %s", e.Member, e.Key)
}
