package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// ActivityEntry is one row of the append-only activity log.
type ActivityEntry struct {
	Sequence  int64
	Timestamp time.Time
	UserID    string
	Kind      string
	Skill     string
	Points    int
	Payload   json.RawMessage
}

// EventRepo provides append and query access to the activity log.
type EventRepo interface {
	// AppendActivity stamps entry with the next global sequence and stores
	// it. The assigned sequence is returned.
	AppendActivity(ctx context.Context, entry ActivityEntry) (int64, error)

	// QueryActivities returns a user's entries, newest first.
	QueryActivities(ctx context.Context, userID string, opts QueryOpts) ([]ActivityEntry, error)

	// CountActivities returns how many entries a user has logged.
	CountActivities(ctx context.Context, userID string) (int, error)
}
