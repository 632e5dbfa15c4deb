package progress

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/abhisek/prepdeck/internal/achievements"
	"github.com/abhisek/prepdeck/internal/activity"
	"github.com/abhisek/prepdeck/internal/events"
	"github.com/abhisek/prepdeck/internal/gateway"
	"github.com/abhisek/prepdeck/internal/scoring"
	"github.com/abhisek/prepdeck/internal/store"
)

// Result describes the effect of one recorded activity.
type Result struct {
	Points    int      `json:"points"`
	NewBadges []string `json:"new_badges"`
	// Record is a copy of the state after the activity.
	Record *Record `json:"record"`
}

// ActivityLog receives every accepted activity.
type ActivityLog interface {
	AppendActivity(ctx context.Context, entry store.ActivityEntry) (int64, error)
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLocation sets the time zone calendar days are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithCatalog replaces the default achievement catalog.
func WithCatalog(c *achievements.Catalog) Option {
	return func(a *Aggregator) { a.catalog = c }
}

// WithActivityLog appends every accepted activity to log.
func WithActivityLog(log ActivityLog) Option {
	return func(a *Aggregator) { a.activityLog = log }
}

// WithPublisher publishes activity and badge events.
func WithPublisher(p events.Publisher) Option {
	return func(a *Aggregator) { a.publisher = p }
}

// WithLogger sets the logger used for background failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Aggregator) { a.log = log }
}

// Aggregator owns one user's in-memory progress record. Updates are applied
// synchronously and persisted in the background.
type Aggregator struct {
	userID string
	repo   *Repository

	now         func() time.Time
	loc         *time.Location
	catalog     *achievements.Catalog
	activityLog ActivityLog
	publisher   events.Publisher
	log         logrus.FieldLogger

	mu     sync.Mutex
	record *Record

	saveMu        sync.Mutex
	savedRevision int64
	wg            sync.WaitGroup
}

// NewAggregator returns an aggregator for userID with no loaded state.
func NewAggregator(userID string, repo *Repository, opts ...Option) *Aggregator {
	a := &Aggregator{
		userID:    userID,
		repo:      repo,
		now:       time.Now,
		loc:       time.UTC,
		catalog:   achievements.DefaultCatalog(),
		publisher: events.Nop{},
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("user_id", userID)
	return a
}

// Load reads the persisted record. A missing record is not an error; it is
// created on the first activity.
func (a *Aggregator) Load(ctx context.Context) error {
	rec, err := a.repo.Load(ctx, a.userID)
	if errors.Is(err, gateway.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}

	a.mu.Lock()
	a.record = rec
	a.mu.Unlock()

	a.saveMu.Lock()
	a.savedRevision = rec.Revision
	a.saveMu.Unlock()
	return nil
}

// Snapshot returns a copy of the current record. Before any activity it is
// an empty, unpersisted record.
func (a *Aggregator) Snapshot() *Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.record == nil {
		return NewRecord(a.userID, a.now().UTC())
	}
	return a.record.Clone()
}

// Catalog returns the achievement catalog badges are evaluated against.
func (a *Aggregator) Catalog() *achievements.Catalog {
	return a.catalog
}

// RecordActivity merges ev into the record and schedules a write. Invalid
// events return an error wrapping activity.ErrInvalid and change nothing.
func (a *Aggregator) RecordActivity(ctx context.Context, ev activity.Event) (Result, error) {
	if ev == nil {
		return Result{}, fmt.Errorf("%w: nil event", activity.ErrInvalid)
	}
	if err := ev.Validate(); err != nil {
		return Result{}, err
	}

	a.mu.Lock()
	now := a.now().UTC()
	var next *Record
	if a.record == nil {
		next = NewRecord(a.userID, now)
	} else {
		next = a.record.Clone()
	}

	points, err := apply(next, ev)
	if err != nil {
		a.mu.Unlock()
		return Result{}, err
	}

	day := CalendarDay(now, a.loc)
	next.CurrentStreak = NextStreak(next.LastActivityDate, day, next.CurrentStreak)
	next.LongestStreak = max(next.LongestStreak, next.CurrentStreak)
	if gap, ok := daysBetween(next.LastActivityDate, day); next.LastActivityDate == "" || !ok || gap > 0 {
		next.LastActivityDate = day
	}

	next.TotalPoints += points
	next.StudySeconds += int64(ev.Spent() / time.Second)

	newBadges := a.catalog.NewlyEarned(next.Stats(), next.Badges)
	if len(newBadges) > 0 {
		next.Badges = append(next.Badges, newBadges...)
		slices.Sort(next.Badges)
	}

	next.Revision++
	next.UpdatedAt = now
	a.record = next
	snapshot := next.Clone()
	a.mu.Unlock()

	a.wg.Add(1)
	go a.persist(context.WithoutCancel(ctx), snapshot, ev, points, newBadges)

	return Result{Points: points, NewBadges: newBadges, Record: snapshot.Clone()}, nil
}

// Wait blocks until all scheduled writes have finished.
func (a *Aggregator) Wait() {
	a.wg.Wait()
}

// apply updates counters and proficiency for ev and returns its points.
func apply(r *Record, ev activity.Event) (int, error) {
	switch e := ev.(type) {
	case activity.Question:
		r.TotalQuestionsAnswered++
		target := 0
		if e.Correct {
			r.TotalCorrectAnswers++
			target = 100
		}
		observe(r, e.Skill, target)
		return scoring.QuestionPoints(e.Difficulty, e.Correct, e.Attempts), nil

	case activity.Challenge:
		if e.Completed {
			r.ChallengesCompleted++
		}
		if e.MaxScore > 0 {
			observe(r, e.Skill, e.Percent())
		}
		return scoring.ChallengePoints(e.Score, e.MaxScore, e.Completed), nil

	case activity.Section:
		done := r.CompletedSections[e.PathID]
		if e.TotalSections < len(done) {
			return 0, fmt.Errorf("%w: path %s has %d completed sections, total %d is too small",
				activity.ErrInvalid, e.PathID, len(done), e.TotalSections)
		}
		firstTime := !slices.Contains(done, e.SectionID)
		if firstTime && len(done) >= e.TotalSections {
			return 0, fmt.Errorf("%w: path %s already has all %d sections completed",
				activity.ErrInvalid, e.PathID, e.TotalSections)
		}
		r.PathTotals[e.PathID] = e.TotalSections
		if firstTime {
			done = append(done, e.SectionID)
			slices.Sort(done)
			r.CompletedSections[e.PathID] = done
		}
		observe(r, e.Skill, 100)
		finished := firstTime && len(done) == e.TotalSections
		return scoring.SectionCompletionPoints(firstTime, finished), nil

	default:
		return 0, fmt.Errorf("%w: unsupported event %T", activity.ErrInvalid, ev)
	}
}

func observe(r *Record, skill string, target int) {
	if skill == "" {
		return
	}
	cur, seen := r.SkillProficiency[skill]
	r.SkillProficiency[skill] = nudgeProficiency(cur, seen, target)
}

// persist writes rec unless a newer revision already landed, then appends
// the activity log and publishes events. Failures are logged only.
func (a *Aggregator) persist(ctx context.Context, rec *Record, ev activity.Event, points int, newBadges []string) {
	defer a.wg.Done()

	a.saveMu.Lock()
	if rec.Revision > a.savedRevision {
		if err := a.repo.Save(ctx, rec); err != nil {
			a.log.WithError(err).WithField("revision", rec.Revision).Error("persist progress record")
		} else {
			a.savedRevision = rec.Revision
		}
	}
	a.saveMu.Unlock()

	if a.activityLog != nil {
		a.appendLog(ctx, rec.UpdatedAt, ev, points)
	}
	a.publish(ctx, rec, ev, points, newBadges)
}

func (a *Aggregator) appendLog(ctx context.Context, at time.Time, ev activity.Event, points int) {
	payload, err := activity.Encode(ev)
	if err != nil {
		a.log.WithError(err).Warn("encode activity for log")
		return
	}
	_, err = a.activityLog.AppendActivity(ctx, store.ActivityEntry{
		Timestamp: at,
		UserID:    a.userID,
		Kind:      string(ev.Kind()),
		Skill:     activity.Skill(ev),
		Points:    points,
		Payload:   payload,
	})
	if err != nil {
		a.log.WithError(err).Warn("append activity log")
	}
}

func (a *Aggregator) publish(ctx context.Context, rec *Record, ev activity.Event, points int, newBadges []string) {
	send := func(typ string, data any) {
		err := a.publisher.Publish(ctx, events.Event{
			Type:       typ,
			UserID:     a.userID,
			OccurredAt: rec.UpdatedAt,
			Data:       data,
		})
		if err != nil {
			a.log.WithError(err).WithField("type", typ).Warn("publish event")
		}
	}

	send(events.ActivityRecorded, map[string]any{
		"kind":         ev.Kind(),
		"skill":        activity.Skill(ev),
		"points":       points,
		"total_points": rec.TotalPoints,
		"revision":     rec.Revision,
	})
	for _, id := range newBadges {
		send(events.BadgeEarned, map[string]any{"badge": id})
	}
}
