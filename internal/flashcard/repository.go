package flashcard

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/prepdeck/internal/gateway"
)

// RecordPrefix prefixes the gateway record type of every card entry.
const RecordPrefix = "flashcard/"

// Repository persists deck entries, one record per card.
type Repository struct {
	gw gateway.Gateway
}

// NewRepository returns a Repository writing through gw.
func NewRepository(gw gateway.Gateway) *Repository {
	return &Repository{gw: gw}
}

// Save writes one entry.
func (r *Repository) Save(ctx context.Context, userID string, e Entry) error {
	return gateway.Save(ctx, r.gw, userID, RecordPrefix+e.Card.ID, e)
}

// Load reads one entry, returning ErrCardNotFound when missing.
func (r *Repository) Load(ctx context.Context, userID, cardID string) (Entry, error) {
	e, err := gateway.Load[Entry](ctx, r.gw, userID, RecordPrefix+cardID)
	if errors.Is(err, gateway.ErrNotFound) {
		return Entry{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	return e, err
}

// LoadAll reads every entry of a user's deck, removed cards included.
func (r *Repository) LoadAll(ctx context.Context, userID string) ([]Entry, error) {
	keys, err := r.gw.Keys(ctx, userID, RecordPrefix)
	if err != nil {
		return nil, fmt.Errorf("list flashcards: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e, err := r.Load(ctx, userID, strings.TrimPrefix(k, RecordPrefix))
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
