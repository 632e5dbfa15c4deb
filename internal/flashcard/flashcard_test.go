package flashcard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepdeck/internal/events"
	"github.com/abhisek/prepdeck/internal/gateway"
)

var t0 = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func card(id string) Card {
	return Card{ID: id, Front: "Q " + id, Back: "A " + id, Category: "go"}
}

func newDeck(t *testing.T, gw gateway.Gateway, ids ...string) *Deck {
	t.Helper()
	d := NewDeck("u1", NewRepository(gw), DefaultSchedule())
	for i, id := range ids {
		_, err := d.Add(context.Background(), card(id), t0.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
	}
	return d
}

func TestSchedule_Interval(t *testing.T) {
	s := DefaultSchedule()
	tests := []struct {
		consecutive int
		want        int
	}{
		{-1, 1}, {0, 1}, {1, 1}, {2, 3}, {3, 7}, {4, 14}, {5, 30}, {6, 60}, {7, 60}, {40, 60},
	}
	for _, tt := range tests {
		if got := s.Interval(tt.consecutive); got != tt.want {
			t.Errorf("Interval(%d) = %d, want %d", tt.consecutive, got, tt.want)
		}
	}
}

func TestSchedule_Apply(t *testing.T) {
	s := DefaultSchedule()
	st := State{CardID: "c", IsNew: true, NextDue: t0}

	s.Apply(&st, true, t0)
	assert.False(t, st.IsNew)
	assert.Equal(t, 1, st.ConsecutiveCorrect)
	assert.Equal(t, t0.AddDate(0, 0, 1), st.NextDue)
	assert.Equal(t, t0, st.LastReviewed)

	s.Apply(&st, true, t0)
	assert.Equal(t, t0.AddDate(0, 0, 3), st.NextDue)

	s.Apply(&st, false, t0)
	assert.Equal(t, 0, st.ConsecutiveCorrect)
	assert.Equal(t, t0.AddDate(0, 0, 1), st.NextDue)
}

func TestSchedule_Validate(t *testing.T) {
	assert.NoError(t, DefaultSchedule().Validate())
	assert.Error(t, Schedule{}.Validate())
	assert.Error(t, Schedule{IntervalDays: []int{1, 1}}.Validate())
	assert.Error(t, Schedule{IntervalDays: []int{0, 2}}.Validate())
}

func TestDeck_AddRemove(t *testing.T) {
	ctx := context.Background()
	d := newDeck(t, gateway.NewMemory(), "a", "b")

	_, err := d.Add(ctx, card("a"), t0)
	assert.ErrorIs(t, err, ErrDuplicateCard)
	_, err = d.Add(ctx, Card{ID: "x"}, t0)
	assert.ErrorIs(t, err, ErrInvalidCard)

	assert.Equal(t, Counts{Due: 0, New: 2, Total: 2}, d.Counts(t0))

	require.NoError(t, d.Remove(ctx, "a"))
	require.NoError(t, d.Remove(ctx, "a"), "removing twice is a no-op")
	assert.ErrorIs(t, d.Remove(ctx, "zzz"), ErrCardNotFound)

	e, ok := d.Get("a")
	require.True(t, ok)
	assert.True(t, e.State.Removed)
	assert.Equal(t, Counts{New: 1, Total: 1}, d.Counts(t0))
	assert.Len(t, d.New(), 1)

	// Re-adding restores it as new.
	st, err := d.Add(ctx, card("a"), t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, st.IsNew)
	assert.False(t, st.Removed)
}

func TestDeck_PersistsAndLoads(t *testing.T) {
	gw := gateway.NewMemory()
	ctx := context.Background()
	d := newDeck(t, gw, "a", "b", "c")
	require.NoError(t, d.Remove(ctx, "b"))

	loaded := NewDeck("u1", NewRepository(gw), DefaultSchedule())
	require.NoError(t, loaded.Load(ctx))

	for _, id := range []string{"a", "b", "c"} {
		want, _ := d.Get(id)
		got, ok := loaded.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, want.Card, got.Card)
		assert.True(t, want.State.NextDue.Equal(got.State.NextDue))
		assert.Equal(t, want.State.Removed, got.State.Removed)
	}
}

func TestDeck_DueOrdering(t *testing.T) {
	d := newDeck(t, gateway.NewMemory(), "a", "b", "c")
	d.answer("a", true, t0)                     // due t0+1d
	d.answer("b", false, t0.Add(-48*time.Hour)) // due t0-1d
	d.answer("c", true, t0.Add(-24*time.Hour))  // due t0

	due := d.Due(t0.Add(36 * time.Hour))
	require.Len(t, due, 3)
	assert.Equal(t, "b", due[0].Card.ID, "most overdue first")
	assert.Equal(t, "c", due[1].Card.ID)
	assert.Equal(t, "a", due[2].Card.ID)

	assert.Len(t, d.Due(t0), 2)
}

func TestDeck_NextDue(t *testing.T) {
	ctx := context.Background()
	d := newDeck(t, gateway.NewMemory(), "a", "b", "c")

	_, ok := d.NextDue(t0)
	assert.False(t, ok, "new cards are not scheduled")

	_, err := d.answer("a", true, t0)
	require.NoError(t, err)
	_, err = d.answer("b", false, t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = d.answer("c", true, t0.Add(-48*time.Hour))
	require.NoError(t, err)

	next, ok := d.NextDue(t0.Add(2 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, t0.AddDate(0, 0, 1), next, "overdue card c is skipped")

	require.NoError(t, d.Remove(ctx, "a"))
	next, ok = d.NextDue(t0.Add(2 * time.Hour))
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour).AddDate(0, 0, 1), next)
}

func TestSession_Lifecycle(t *testing.T) {
	gw := gateway.NewMemory()
	clock := &fakeClock{t: t0.Add(time.Hour)}
	pub := events.NewRecorder()
	d := newDeck(t, gw, "a", "b", "c")
	s := NewSession(d, WithSessionClock(clock.Now), WithSessionPublisher(pub))

	assert.Equal(t, PhaseIdle, s.Phase())
	_, err := s.Answer("a", true, time.Second)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.End(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cards, err := s.Start(ModeNew, 2)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "a", cards[0].Card.ID, "oldest new card first")
	assert.Equal(t, "b", cards[1].Card.ID)
	assert.Equal(t, PhaseActive, s.Phase())

	_, err = s.Start(ModeNew, 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	st, err := s.Answer("a", true, 4*time.Second)
	require.NoError(t, err)
	assert.False(t, st.IsNew)
	assert.Equal(t, 1, st.ConsecutiveCorrect)

	_, err = s.Answer("b", false, 6*time.Second)
	require.NoError(t, err)
	_, err = s.Answer("c", true, time.Second)
	assert.ErrorIs(t, err, ErrUnknownCard)

	clock.Advance(5 * time.Minute)
	summary, err := s.End(context.Background())
	require.NoError(t, err)
	s.Wait()

	assert.Equal(t, s.ID, summary.SessionID)
	assert.Equal(t, 2, summary.Cards)
	assert.Equal(t, Stats{Reviewed: 2, Correct: 1, Incorrect: 1, TimeSpent: 10 * time.Second}, summary.Stats)
	assert.Equal(t, 0.5, summary.Accuracy)
	assert.Equal(t, 5*time.Minute, summary.Duration)
	assert.Equal(t, PhaseEnded, s.Phase())

	// Touched states were persisted.
	saved, err := NewRepository(gw).Load(context.Background(), "u1", "a")
	require.NoError(t, err)
	assert.False(t, saved.State.IsNew)
	assert.Equal(t, 1, saved.State.ConsecutiveCorrect)

	require.Len(t, pub.OfType(events.SessionEnded), 1)
}

func TestSession_AnswerRejectedAfterEnd(t *testing.T) {
	d := newDeck(t, gateway.NewMemory(), "a")
	s := NewSession(d, WithSessionClock(func() time.Time { return t0 }))

	_, err := s.Start(ModeMixed, 5)
	require.NoError(t, err)
	_, err = s.End(context.Background())
	require.NoError(t, err)
	s.Wait()

	_, err = s.Answer("a", true, time.Second)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.End(context.Background())
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = s.Start(ModeMixed, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSession_AnswerRemovedCard(t *testing.T) {
	ctx := context.Background()
	gw := gateway.NewMemory()
	d := newDeck(t, gw, "a", "b")
	s := NewSession(d, WithSessionClock(func() time.Time { return t0 }))

	_, err := s.Start(ModeNew, 5)
	require.NoError(t, err)
	require.NoError(t, d.Remove(ctx, "a"))

	_, err = s.Answer("a", true, time.Second)
	assert.ErrorIs(t, err, ErrCardNotFound)
	_, err = s.Answer("b", true, time.Second)
	require.NoError(t, err)

	summary, err := s.End(ctx)
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, 1, summary.Stats.Reviewed)

	saved, err := NewRepository(gw).Load(ctx, "u1", "a")
	require.NoError(t, err)
	assert.True(t, saved.State.Removed)
	assert.True(t, saved.State.IsNew, "removed card was not rescheduled")
}

func TestSession_NoCardsStaysIdle(t *testing.T) {
	d := newDeck(t, gateway.NewMemory(), "a")
	s := NewSession(d, WithSessionClock(func() time.Time { return t0 }))

	_, err := s.Start(ModeReview, 10)
	assert.ErrorIs(t, err, ErrNoCards)
	assert.Equal(t, PhaseIdle, s.Phase())

	cards, err := s.Start(ModeNew, 10)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}

func TestSession_InvalidArguments(t *testing.T) {
	s := NewSession(newDeck(t, gateway.NewMemory(), "a"))
	_, err := s.Start("cram", 3)
	assert.Error(t, err)
	_, err = s.Start(ModeNew, 0)
	assert.Error(t, err)
	assert.Equal(t, PhaseIdle, s.Phase())
}

func TestSession_ReviewNeverSelectsFutureCards(t *testing.T) {
	d := newDeck(t, gateway.NewMemory())
	now := t0.Add(100 * 24 * time.Hour)
	for i := range 40 {
		id := fmt.Sprintf("c%02d", i)
		_, err := d.Add(context.Background(), card(id), t0)
		require.NoError(t, err)
		// Spread due dates around now.
		d.answer(id, i%3 != 0, now.Add(time.Duration(i-20)*24*time.Hour))
	}

	s := NewSession(d, WithSessionClock(func() time.Time { return now }))
	cards, err := s.Start(ModeReview, 20)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(cards), 20)
	for _, c := range cards {
		assert.False(t, c.State.NextDue.After(now), "card %s due %v after %v", c.Card.ID, c.State.NextDue, now)
		assert.False(t, c.State.IsNew)
	}
}

func TestSession_MixedPutsDueFirst(t *testing.T) {
	d := newDeck(t, gateway.NewMemory(), "new1", "rev1")
	d.answer("rev1", false, t0.Add(-48*time.Hour))

	s := NewSession(d, WithSessionClock(func() time.Time { return t0 }))
	cards, err := s.Start(ModeMixed, 5)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, "rev1", cards[0].Card.ID)
	assert.Equal(t, "new1", cards[1].Card.ID)
}

// failingGateway rejects every write after the deck is built.
type failingGateway struct {
	*gateway.Memory
	fail bool
}

func (f *failingGateway) Set(ctx context.Context, userID, recordType string, value []byte) error {
	if f.fail {
		return errors.New("unavailable")
	}
	return f.Memory.Set(ctx, userID, recordType, value)
}

func TestSession_PersistFailureIsLogged(t *testing.T) {
	gw := &failingGateway{Memory: gateway.NewMemory()}
	d := newDeck(t, gw, "a")
	gw.fail = true

	logger, hook := test.NewNullLogger()
	s := NewSession(d, WithSessionLogger(logger))
	_, err := s.Start(ModeNew, 1)
	require.NoError(t, err)
	_, err = s.Answer("a", true, time.Second)
	require.NoError(t, err)
	_, err = s.End(context.Background())
	require.NoError(t, err)
	s.Wait()

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "persist card state", hook.Entries[0].Message)
	// In-memory state keeps the answer.
	e, _ := d.Get("a")
	assert.False(t, e.State.IsNew)
}

func TestStatsAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.Accuracy())
	assert.Equal(t, 0.75, Stats{Reviewed: 4, Correct: 3}.Accuracy())
}
