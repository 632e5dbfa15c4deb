// Package guidance decides which onboarding tips and nudges to show a user
// based on their progress and deck.
package guidance

import (
	"slices"
	"sort"
	"time"

	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/progress"
)

// TipID identifies a tip.
type TipID string

const (
	TipWelcome       TipID = "welcome"
	TipFirstQuestion TipID = "first-question"
	TipReviewDue     TipID = "review-due"
	TipStreakAtRisk  TipID = "streak-at-risk"
	TipTryFlashcards TipID = "try-flashcards"
)

// Tip is one piece of guidance. Lower priority values are shown first.
type Tip struct {
	ID       TipID  `json:"id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// State is the per-user guidance record.
type State struct {
	Dismissed []TipID              `json:"dismissed"`
	LastShown map[TipID]time.Time `json:"last_shown"`
}

// IsDismissed reports whether id was dismissed.
func (s State) IsDismissed(id TipID) bool {
	return slices.Contains(s.Dismissed, id)
}

// Input is what the advisor looks at.
type Input struct {
	Progress *progress.Record
	Deck     flashcard.Counts
	Now      time.Time
}

// Advisor evaluates tip heuristics.
type Advisor struct {
	// ReviewThrottle is the minimum gap between two review nudges.
	ReviewThrottle time.Duration
	// QuestionsBeforeFlashcards is how many answers precede the flashcard tip.
	QuestionsBeforeFlashcards int
	Location                  *time.Location
}

// NewAdvisor returns an advisor with default thresholds.
func NewAdvisor(loc *time.Location) *Advisor {
	if loc == nil {
		loc = time.UTC
	}
	return &Advisor{
		ReviewThrottle:            4 * time.Hour,
		QuestionsBeforeFlashcards: 5,
		Location:                  loc,
	}
}

// Evaluate returns the tips that apply to in, excluding dismissed ones,
// ordered by priority.
func (a *Advisor) Evaluate(in Input, st State) []Tip {
	rec := in.Progress
	if rec == nil {
		rec = progress.NewRecord("", in.Now)
	}

	var tips []Tip
	add := func(t Tip) {
		if !st.IsDismissed(t.ID) {
			tips = append(tips, t)
		}
	}

	if rec.Revision == 0 {
		add(Tip{
			ID:       TipWelcome,
			Title:    "Welcome to prepdeck",
			Message:  "Answer questions, finish challenges and work through learning paths to earn points and badges.",
			Priority: 0,
		})
	}
	if rec.TotalQuestionsAnswered == 0 {
		add(Tip{
			ID:       TipFirstQuestion,
			Title:    "Answer your first question",
			Message:  "Start with an easy question to open your streak.",
			Priority: 1,
		})
	}
	if in.Deck.Due > 0 && a.reviewAllowed(st, in.Now) {
		add(Tip{
			ID:       TipReviewDue,
			Title:    "Cards are waiting",
			Message:  "Some flashcards are due for review. A short session keeps them fresh.",
			Priority: 2,
		})
	}
	if a.streakAtRisk(rec, in.Now) {
		add(Tip{
			ID:       TipStreakAtRisk,
			Title:    "Keep your streak alive",
			Message:  "You have not studied today yet. One activity keeps the streak going.",
			Priority: 3,
		})
	}
	if rec.TotalQuestionsAnswered >= a.QuestionsBeforeFlashcards && in.Deck.Total == 0 {
		add(Tip{
			ID:       TipTryFlashcards,
			Title:    "Try flashcards",
			Message:  "Turn tricky concepts into flashcards and review them on a schedule.",
			Priority: 4,
		})
	}

	sort.SliceStable(tips, func(i, j int) bool { return tips[i].Priority < tips[j].Priority })
	return tips
}

func (a *Advisor) reviewAllowed(st State, now time.Time) bool {
	last, ok := st.LastShown[TipReviewDue]
	return !ok || now.Sub(last) >= a.ReviewThrottle
}

// streakAtRisk is true when a streak of two or more days was last extended
// yesterday.
func (a *Advisor) streakAtRisk(rec *progress.Record, now time.Time) bool {
	if rec.CurrentStreak < 2 || rec.LastActivityDate == "" {
		return false
	}
	yesterday := progress.CalendarDay(now.AddDate(0, 0, -1), a.Location)
	return rec.LastActivityDate == yesterday
}
