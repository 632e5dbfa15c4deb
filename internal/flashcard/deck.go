package flashcard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Deck is one user's card collection with review state. It is safe for
// concurrent use.
type Deck struct {
	userID   string
	repo     *Repository
	schedule Schedule

	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewDeck returns an empty deck. repo may be nil for an unpersisted deck.
func NewDeck(userID string, repo *Repository, schedule Schedule) *Deck {
	return &Deck{
		userID:   userID,
		repo:     repo,
		schedule: schedule,
		entries:  make(map[string]*Entry),
	}
}

// UserID returns the deck owner.
func (d *Deck) UserID() string {
	return d.userID
}

// Load replaces the in-memory deck with the persisted entries.
func (d *Deck) Load(ctx context.Context) error {
	if d.repo == nil {
		return nil
	}
	all, err := d.repo.LoadAll(ctx, d.userID)
	if err != nil {
		return fmt.Errorf("load deck: %w", err)
	}

	entries := make(map[string]*Entry, len(all))
	for i := range all {
		entries[all[i].Card.ID] = &all[i]
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

// Add puts card in the deck as new and due now. A previously removed card
// is reset and restored.
func (d *Deck) Add(ctx context.Context, card Card, now time.Time) (State, error) {
	if err := card.Validate(); err != nil {
		return State{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.entries[card.ID]; ok && !cur.State.Removed {
		return State{}, fmt.Errorf("%w: %s", ErrDuplicateCard, card.ID)
	}

	e := &Entry{
		Card: card,
		State: State{
			CardID:  card.ID,
			NextDue: now,
			IsNew:   true,
			AddedAt: now,
		},
	}
	if err := d.save(ctx, *e); err != nil {
		return State{}, err
	}
	d.entries[card.ID] = e
	return e.State, nil
}

// Remove soft-deletes a card. Its state is kept but it is never selected
// again. Removing a removed card is a no-op.
func (d *Deck) Remove(ctx context.Context, cardID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.entries[cardID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	if cur.State.Removed {
		return nil
	}

	next := *cur
	next.State.Removed = true
	if err := d.save(ctx, next); err != nil {
		return err
	}
	*cur = next
	return nil
}

// Get returns a copy of the entry for cardID.
func (d *Deck) Get(cardID string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[cardID]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Due returns reviewed, active cards due at now, most overdue first.
func (d *Deck) Due(now time.Time) []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var due []Entry
	for _, e := range d.entries {
		if e.State.Removed || e.State.IsNew || !e.State.IsDue(now) {
			continue
		}
		due = append(due, *e)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].State.NextDue.Equal(due[j].State.NextDue) {
			return due[i].State.NextDue.Before(due[j].State.NextDue)
		}
		return due[i].Card.ID < due[j].Card.ID
	})
	return due
}

// New returns never-reviewed active cards, oldest first.
func (d *Deck) New() []Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var fresh []Entry
	for _, e := range d.entries {
		if e.State.Removed || !e.State.IsNew {
			continue
		}
		fresh = append(fresh, *e)
	}
	sort.Slice(fresh, func(i, j int) bool {
		if !fresh[i].State.AddedAt.Equal(fresh[j].State.AddedAt) {
			return fresh[i].State.AddedAt.Before(fresh[j].State.AddedAt)
		}
		return fresh[i].Card.ID < fresh[j].Card.ID
	})
	return fresh
}

// NextDue returns the earliest due time after now among reviewed, active
// cards. ok is false when nothing is scheduled.
func (d *Deck) NextDue(now time.Time) (next time.Time, ok bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range d.entries {
		if e.State.Removed || e.State.IsNew || !e.State.NextDue.After(now) {
			continue
		}
		if !ok || e.State.NextDue.Before(next) {
			next, ok = e.State.NextDue, true
		}
	}
	return next, ok
}

// Counts returns due, new and total active cards at now.
func (d *Deck) Counts(now time.Time) Counts {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var c Counts
	for _, e := range d.entries {
		if e.State.Removed {
			continue
		}
		c.Total++
		switch {
		case e.State.IsNew:
			c.New++
		case e.State.IsDue(now):
			c.Due++
		}
	}
	return c
}

// answer reschedules cardID and returns the updated entry. Removed cards
// are not found.
func (d *Deck) answer(cardID string, correct bool, now time.Time) (Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[cardID]
	if !ok || e.State.Removed {
		return Entry{}, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	d.schedule.Apply(&e.State, correct, now)
	return *e, nil
}

func (d *Deck) save(ctx context.Context, e Entry) error {
	if d.repo == nil {
		return nil
	}
	if err := d.repo.Save(ctx, d.userID, e); err != nil {
		return fmt.Errorf("save card %s: %w", e.Card.ID, err)
	}
	return nil
}
