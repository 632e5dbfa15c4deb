package flashcard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/events"
)

// Mode selects which cards a session studies.
type Mode string

const (
	ModeReview Mode = "review" // due cards that were reviewed before
	ModeNew    Mode = "new"    // never-reviewed cards
	ModeMixed  Mode = "mixed"  // due cards first, then new ones
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeReview, ModeNew, ModeMixed:
		return true
	}
	return false
}

// Phase is the lifecycle state of a Session.
type Phase int

const (
	PhaseIdle   Phase = iota // Created, no cards selected
	PhaseActive              // Serving cards
	PhaseEnded               // Finished; terminal
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Stats tracks answers within one session.
type Stats struct {
	Reviewed  int           `json:"reviewed"`
	Correct   int           `json:"correct"`
	Incorrect int           `json:"incorrect"`
	TimeSpent time.Duration `json:"time_spent"`
}

// Accuracy returns correct/reviewed in [0, 1], or 0 before any answer.
func (s Stats) Accuracy() float64 {
	if s.Reviewed == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Reviewed)
}

// Summary is returned when a session ends.
type Summary struct {
	SessionID string        `json:"session_id"`
	Mode      Mode          `json:"mode"`
	Cards     int           `json:"cards"`
	Stats     Stats         `json:"stats"`
	Accuracy  float64       `json:"accuracy"`
	Duration  time.Duration `json:"duration"`
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock overrides time.Now.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithSessionLogger sets the logger used for background failures.
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(s *Session) { s.log = log }
}

// WithSessionPublisher publishes a session-ended event.
func WithSessionPublisher(p events.Publisher) SessionOption {
	return func(s *Session) { s.publisher = p }
}

// Session is one study run over a deck: idle → active → ended.
type Session struct {
	ID string

	deck      *Deck
	now       func() time.Time
	log       logrus.FieldLogger
	publisher events.Publisher

	mu        sync.Mutex
	phase     Phase
	mode      Mode
	cards     []string
	inSession map[string]struct{}
	touched   map[string]struct{}
	stats     Stats
	startedAt time.Time

	wg sync.WaitGroup
}

// NewSession returns an idle session over deck.
func NewSession(deck *Deck, opts ...SessionOption) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		deck:      deck,
		now:       time.Now,
		log:       logrus.StandardLogger(),
		publisher: events.Nop{},
		inSession: make(map[string]struct{}),
		touched:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"user_id": deck.UserID(), "session_id": s.ID})
	return s
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Cards returns the selected card entries in study order.
func (s *Session) Cards() []Entry {
	s.mu.Lock()
	ids := append([]string(nil), s.cards...)
	s.mu.Unlock()

	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.deck.Get(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// Stats returns a copy of the running stats.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Start selects up to size cards for mode and activates the session. With
// nothing to study it returns ErrNoCards and stays idle.
func (s *Session) Start(mode Mode, size int) ([]Entry, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown session mode %q", mode)
	}
	if size < 1 {
		return nil, fmt.Errorf("session size must be positive, got %d", size)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseIdle {
		return nil, fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.phase)
	}

	now := s.now()
	selected := s.selectCards(mode, size, now)
	if len(selected) == 0 {
		return nil, ErrNoCards
	}

	s.mode = mode
	s.startedAt = now
	s.phase = PhaseActive
	for _, e := range selected {
		s.cards = append(s.cards, e.Card.ID)
		s.inSession[e.Card.ID] = struct{}{}
	}
	return selected, nil
}

func (s *Session) selectCards(mode Mode, size int, now time.Time) []Entry {
	var pool []Entry
	switch mode {
	case ModeReview:
		pool = s.deck.Due(now)
	case ModeNew:
		pool = s.deck.New()
	case ModeMixed:
		pool = append(s.deck.Due(now), s.deck.New()...)
	}
	if len(pool) > size {
		pool = pool[:size]
	}
	return pool
}

// Answer records an answer for a card selected by Start and reschedules it.
func (s *Session) Answer(cardID string, correct bool, elapsed time.Duration) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseActive {
		return State{}, fmt.Errorf("%w: answer while %s", ErrInvalidTransition, s.phase)
	}
	if _, ok := s.inSession[cardID]; !ok {
		return State{}, fmt.Errorf("%w: %s", ErrUnknownCard, cardID)
	}

	e, err := s.deck.answer(cardID, correct, s.now())
	if err != nil {
		return State{}, err
	}

	s.stats.Reviewed++
	if correct {
		s.stats.Correct++
	} else {
		s.stats.Incorrect++
	}
	if elapsed > 0 {
		s.stats.TimeSpent += elapsed
	}
	s.touched[cardID] = struct{}{}
	return e.State, nil
}

// End finishes the session and persists every answered card in the
// background. Use Wait to block until those writes finish.
func (s *Session) End(ctx context.Context) (Summary, error) {
	s.mu.Lock()
	if s.phase != PhaseActive {
		phase := s.phase
		s.mu.Unlock()
		return Summary{}, fmt.Errorf("%w: end while %s", ErrInvalidTransition, phase)
	}
	s.phase = PhaseEnded

	summary := Summary{
		SessionID: s.ID,
		Mode:      s.mode,
		Cards:     len(s.cards),
		Stats:     s.stats,
		Accuracy:  s.stats.Accuracy(),
		Duration:  s.now().Sub(s.startedAt),
	}
	touched := make([]string, 0, len(s.touched))
	for id := range s.touched {
		touched = append(touched, id)
	}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.persist(context.WithoutCancel(ctx), touched, summary)
	return summary, nil
}

// Wait blocks until the writes scheduled by End have finished.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) persist(ctx context.Context, cardIDs []string, summary Summary) {
	defer s.wg.Done()

	if s.deck.repo != nil {
		for _, id := range cardIDs {
			e, ok := s.deck.Get(id)
			if !ok {
				continue
			}
			if err := s.deck.repo.Save(ctx, s.deck.UserID(), e); err != nil {
				s.log.WithError(err).WithField("card_id", id).Error("persist card state")
			}
		}
	}

	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.SessionEnded,
		UserID:     s.deck.UserID(),
		OccurredAt: s.now(),
		Data:       summary,
	})
	if err != nil {
		s.log.WithError(err).Warn("publish session ended")
	}
}
