package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhisek/prepdeck/internal/activity"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/guidance"
	"github.com/abhisek/prepdeck/internal/progress"
)

// ErrNoStudySession is returned when answering or ending without an active
// study session.
var ErrNoStudySession = errors.New("no active study session")

// UserSession bundles the per-user components between sign-in and
// sign-out.
type UserSession struct {
	UserID   string
	Progress *progress.Aggregator
	Deck     *flashcard.Deck
	Guidance *guidance.Watcher

	app *App

	mu    sync.Mutex
	study *flashcard.Session
}

// SignIn loads the user's progress, deck and guidance state and starts
// periodic guidance checks. Signing in twice returns the existing session.
func (a *App) SignIn(ctx context.Context, userID string) (*UserSession, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, fmt.Errorf("app is closed")
	}
	if u, ok := a.sessions[userID]; ok {
		a.mu.Unlock()
		return u, nil
	}
	a.mu.Unlock()

	u, err := a.newUserSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if existing, ok := a.sessions[userID]; ok {
		a.mu.Unlock()
		u.Guidance.Stop()
		return existing, nil
	}
	a.sessions[userID] = u
	a.mu.Unlock()

	a.active.Inc()
	a.log.WithField("user_id", userID).Info("user signed in")
	return u, nil
}

func (a *App) newUserSession(ctx context.Context, userID string) (*UserSession, error) {
	opts := []progress.Option{
		progress.WithClock(a.now),
		progress.WithLocation(a.loc),
		progress.WithPublisher(a.publisher),
		progress.WithLogger(a.log),
	}
	if a.activityLog != nil {
		opts = append(opts, progress.WithActivityLog(a.activityLog))
	}
	agg := progress.NewAggregator(userID, progress.NewRepository(a.gw), opts...)
	if err := agg.Load(ctx); err != nil {
		return nil, err
	}

	deck := flashcard.NewDeck(userID, flashcard.NewRepository(a.gw), a.schedule)
	if err := deck.Load(ctx); err != nil {
		return nil, err
	}

	u := &UserSession{UserID: userID, Progress: agg, Deck: deck, app: a}
	u.Guidance = guidance.NewWatcher(userID, guidance.NewAdvisor(a.loc), a.gw, u.guidanceInput, a.log)
	if err := u.Guidance.Load(ctx); err != nil {
		return nil, err
	}
	u.Guidance.Check(ctx)
	if a.cfg.Guidance.Interval > 0 {
		if err := u.Guidance.Start(a.timers, a.cfg.Guidance.Interval); err != nil {
			return nil, fmt.Errorf("start guidance: %w", err)
		}
	}
	return u, nil
}

// Session returns the signed-in session of userID.
func (a *App) Session(userID string) (*UserSession, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.sessions[userID]
	return u, ok
}

// SignOut tears the user's session down: guidance stops, an active study
// session is ended and in-flight writes finish before it returns.
func (a *App) SignOut(ctx context.Context, userID string) error {
	a.mu.Lock()
	u, ok := a.sessions[userID]
	delete(a.sessions, userID)
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}

	a.active.Dec()
	err := u.teardown(ctx)
	a.log.WithField("user_id", userID).Info("user signed out")
	return err
}

func (u *UserSession) teardown(ctx context.Context) error {
	u.Guidance.Stop()

	u.mu.Lock()
	study := u.study
	u.study = nil
	u.mu.Unlock()

	var err error
	if study != nil && study.Phase() == flashcard.PhaseActive {
		if _, endErr := study.End(ctx); endErr != nil {
			err = fmt.Errorf("end study session: %w", endErr)
		}
	}
	if study != nil {
		study.Wait()
	}
	u.Progress.Wait()
	return err
}

// RecordActivity forwards ev to the progress aggregator.
func (u *UserSession) RecordActivity(ctx context.Context, ev activity.Event) (progress.Result, error) {
	return u.Progress.RecordActivity(ctx, ev)
}

// StartStudy opens a new study session. Only one session may be active at
// a time; an ended session is replaced once its writes have finished.
func (u *UserSession) StartStudy(mode flashcard.Mode, size int) (*flashcard.Session, []flashcard.Entry, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.study != nil && u.study.Phase() == flashcard.PhaseActive {
		return nil, nil, fmt.Errorf("%w: a study session is already active", flashcard.ErrInvalidTransition)
	}

	s := flashcard.NewSession(u.Deck,
		flashcard.WithSessionClock(u.app.now),
		flashcard.WithSessionLogger(u.app.log),
		flashcard.WithSessionPublisher(u.app.publisher),
	)
	cards, err := s.Start(mode, size)
	if err != nil {
		return nil, nil, err
	}
	if u.study != nil {
		u.study.Wait()
	}
	u.study = s
	return s, cards, nil
}

// Study returns the current study session, if any.
func (u *UserSession) Study() (*flashcard.Session, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.study, u.study != nil
}

// AnswerCard records an answer in the current study session.
func (u *UserSession) AnswerCard(cardID string, correct bool, elapsed time.Duration) (flashcard.State, error) {
	s, ok := u.Study()
	if !ok {
		return flashcard.State{}, ErrNoStudySession
	}
	return s.Answer(cardID, correct, elapsed)
}

// EndStudy ends the current study session and schedules a guidance check
// for when the next reviewed card comes due.
func (u *UserSession) EndStudy(ctx context.Context) (flashcard.Summary, error) {
	s, ok := u.Study()
	if !ok {
		return flashcard.Summary{}, ErrNoStudySession
	}
	summary, err := s.End(ctx)
	if err != nil {
		return summary, err
	}

	now := u.app.now()
	if next, ok := u.Deck.NextDue(now); ok {
		if err := u.Guidance.CheckAfter(u.app.timers, next.Sub(now)); err != nil {
			u.app.log.WithError(err).WithField("user_id", u.UserID).Warn("schedule review reminder")
		}
	}
	return summary, nil
}

// Tips re-evaluates guidance and returns the pending tips.
func (u *UserSession) Tips(ctx context.Context) []guidance.Tip {
	u.Guidance.Check(ctx)
	return u.Guidance.Pending()
}

func (u *UserSession) guidanceInput() guidance.Input {
	now := u.app.now()
	return guidance.Input{
		Progress: u.Progress.Snapshot(),
		Deck:     u.Deck.Counts(now),
		Now:      now,
	}
}
