// Package flashcard manages a user's flashcard deck, the review schedule
// and timed study sessions over it.
package flashcard

import (
	"errors"
	"time"
)

var (
	ErrNoCards           = errors.New("no cards available for this session")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrUnknownCard       = errors.New("card is not part of this session")
	ErrCardNotFound      = errors.New("card not found")
	ErrDuplicateCard     = errors.New("card already in deck")
	ErrInvalidCard       = errors.New("invalid card")
)

// Card is the content of one flashcard.
type Card struct {
	ID       string `json:"id"`
	Front    string `json:"front"`
	Back     string `json:"back"`
	Category string `json:"category,omitempty"`
}

// Validate requires an id and both faces.
func (c Card) Validate() error {
	switch {
	case c.ID == "":
		return errors.Join(ErrInvalidCard, errors.New("missing id"))
	case c.Front == "" || c.Back == "":
		return errors.Join(ErrInvalidCard, errors.New("front and back are required"))
	}
	return nil
}

// State is the review state of one card for one user.
type State struct {
	CardID             string    `json:"card_id"`
	LastReviewed       time.Time `json:"last_reviewed,omitzero"`
	NextDue            time.Time `json:"next_due"`
	ConsecutiveCorrect int       `json:"consecutive_correct"`
	IsNew              bool      `json:"is_new"`
	Removed            bool      `json:"removed"`
	AddedAt            time.Time `json:"added_at"`
}

// IsDue returns true if the card is at or past its due time.
func (s *State) IsDue(now time.Time) bool {
	return !now.Before(s.NextDue)
}

// OverdueDays returns how many days past due the card is. Returns 0 if not
// yet due.
func (s *State) OverdueDays(now time.Time) float64 {
	if now.Before(s.NextDue) {
		return 0
	}
	return now.Sub(s.NextDue).Hours() / 24.0
}

// Entry is a card together with its state; the unit of persistence.
type Entry struct {
	Card  Card  `json:"card"`
	State State `json:"state"`
}

// Counts summarises a deck.
type Counts struct {
	Due   int `json:"due"`
	New   int `json:"new"`
	Total int `json:"total"`
}
