package persist

import (
	"github.com/segmentio/ksuid"
)

// FeedName represents the globally unique name of a registered feed
type FeedName string

// Verb represents the action type an event was published under
type Verb string

// UserID represents an opaque producer or consumer identifier
type UserID string

// ItemID represents the identifier of a published item
type ItemID string

// GenerateID generates an application-wide unique ID
func GenerateID() string {
	id, err := ksuid.NewRandom()
	if err != nil {
		panic(err)
	}
	return id.String()
}

func (f FeedName) String() string {
	return string(f)
}

func (v Verb) String() string {
	return string(v)
}

func (u UserID) String() string {
	return string(u)
}

func (i ItemID) String() string {
	return string(i)
}
