// Package gateway is the persistence boundary for per-user records. A record
// is an opaque JSON document addressed by (user id, record type).
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("record not found")

// Gateway reads and writes per-user records.
type Gateway interface {
	Get(ctx context.Context, userID, recordType string) ([]byte, error)
	Set(ctx context.Context, userID, recordType string, value []byte) error
	// Keys lists the record types stored for userID that start with prefix.
	Keys(ctx context.Context, userID, prefix string) ([]string, error)
}

// Load reads a record and decodes it into a T.
func Load[T any](ctx context.Context, g Gateway, userID, recordType string) (T, error) {
	var v T
	raw, err := g.Get(ctx, userID, recordType)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s record for %s: %w", recordType, userID, err)
	}
	return v, nil
}

// Save encodes v as JSON and writes it.
func Save[T any](ctx context.Context, g Gateway, userID, recordType string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s record for %s: %w", recordType, userID, err)
	}
	return g.Set(ctx, userID, recordType, raw)
}
