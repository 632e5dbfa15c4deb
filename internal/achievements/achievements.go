// Package achievements holds the static badge catalog and evaluates it
// against a learner's counters.
package achievements

import (
	"sort"

	"github.com/samber/lo"
)

// Metric names the counter an achievement is measured against.
type Metric string

const (
	MetricQuestionsAnswered Metric = "questions_answered"
	MetricLongestStreak     Metric = "longest_streak"
	MetricAccuracy          Metric = "accuracy"
	MetricChallenges        Metric = "challenges_completed"
	MetricPathsCompleted    Metric = "paths_completed"
	MetricTotalPoints       Metric = "total_points"
	MetricStudyMinutes      Metric = "study_minutes"
)

// Achievement is a catalog entry. It unlocks once Metric reaches Threshold,
// provided at least MinSample questions have been answered.
type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Metric      Metric `json:"metric"`
	Threshold   int    `json:"threshold"`
	MinSample   int    `json:"min_sample,omitempty"`
}

// Status is the evaluated state of one achievement.
type Status int

const (
	StatusLocked Status = iota
	StatusInProgress
	StatusEarned
)

func (s Status) String() string {
	switch s {
	case StatusEarned:
		return "earned"
	case StatusInProgress:
		return "in-progress"
	default:
		return "locked"
	}
}

// MarshalText renders the status by name in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stats is the snapshot of counters the catalog is evaluated against.
type Stats struct {
	QuestionsAnswered   int
	CorrectAnswers      int
	LongestStreak       int
	ChallengesCompleted int
	PathsCompleted      int
	TotalPoints         int
	StudyMinutes        int
}

// Value returns the current value of m.
func (s Stats) Value(m Metric) int {
	switch m {
	case MetricQuestionsAnswered:
		return s.QuestionsAnswered
	case MetricLongestStreak:
		return s.LongestStreak
	case MetricAccuracy:
		if s.QuestionsAnswered == 0 {
			return 0
		}
		return s.CorrectAnswers * 100 / s.QuestionsAnswered
	case MetricChallenges:
		return s.ChallengesCompleted
	case MetricPathsCompleted:
		return s.PathsCompleted
	case MetricTotalPoints:
		return s.TotalPoints
	case MetricStudyMinutes:
		return s.StudyMinutes
	default:
		return 0
	}
}

// Evaluation pairs an achievement with its status for one learner.
type Evaluation struct {
	Achievement
	Status  Status `json:"status"`
	Current int    `json:"current"`
	// Progress is Current/Threshold clamped to [0, 1].
	Progress float64 `json:"progress"`
}

// Catalog is an ordered, immutable set of achievements.
type Catalog struct {
	entries []Achievement
	byID    map[string]Achievement
}

// NewCatalog builds a catalog. Later duplicates of an id are ignored.
func NewCatalog(entries []Achievement) *Catalog {
	uniq := lo.UniqBy(entries, func(a Achievement) string { return a.ID })
	return &Catalog{
		entries: uniq,
		byID:    lo.KeyBy(uniq, func(a Achievement) string { return a.ID }),
	}
}

// DefaultCatalog returns the built-in badges.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Achievement{
		{ID: "first-question", Name: "First Steps", Description: "Answer your first question", Metric: MetricQuestionsAnswered, Threshold: 1},
		{ID: "questions-10", Name: "Warming Up", Description: "Answer 10 questions", Metric: MetricQuestionsAnswered, Threshold: 10},
		{ID: "questions-100", Name: "Centurion", Description: "Answer 100 questions", Metric: MetricQuestionsAnswered, Threshold: 100},
		{ID: "streak-7", Name: "On a Roll", Description: "Study 7 days in a row", Metric: MetricLongestStreak, Threshold: 7},
		{ID: "streak-30", Name: "Unstoppable", Description: "Study 30 days in a row", Metric: MetricLongestStreak, Threshold: 30},
		{ID: "sharpshooter", Name: "Sharpshooter", Description: "Keep 90% accuracy over at least 50 questions", Metric: MetricAccuracy, Threshold: 90, MinSample: 50},
		{ID: "challenger", Name: "Challenger", Description: "Complete 5 coding challenges", Metric: MetricChallenges, Threshold: 5},
		{ID: "path-finisher", Name: "Path Finisher", Description: "Finish a learning path", Metric: MetricPathsCompleted, Threshold: 1},
		{ID: "points-1000", Name: "High Scorer", Description: "Earn 1000 points", Metric: MetricTotalPoints, Threshold: 1000},
		{ID: "study-10h", Name: "Dedicated", Description: "Study for 10 hours", Metric: MetricStudyMinutes, Threshold: 600},
	})
}

// All returns the catalog entries in display order.
func (c *Catalog) All() []Achievement {
	return append([]Achievement(nil), c.entries...)
}

// Get looks up an achievement by id.
func (c *Catalog) Get(id string) (Achievement, bool) {
	a, ok := c.byID[id]
	return a, ok
}

// Unlocked reports whether a's criterion is met by stats.
func (a Achievement) Unlocked(stats Stats) bool {
	if a.MinSample > 0 && stats.QuestionsAnswered < a.MinSample {
		return false
	}
	return stats.Value(a.Metric) >= a.Threshold
}

// Evaluate returns every achievement with its status. Badges already in
// earned stay earned even if the counters no longer satisfy them.
func (c *Catalog) Evaluate(stats Stats, earned []string) []Evaluation {
	have := lo.Associate(earned, func(id string) (string, struct{}) { return id, struct{}{} })

	return lo.Map(c.entries, func(a Achievement, _ int) Evaluation {
		ev := Evaluation{Achievement: a, Current: stats.Value(a.Metric)}
		if a.Threshold > 0 {
			ev.Progress = min(float64(ev.Current)/float64(a.Threshold), 1)
		}

		_, already := have[a.ID]
		switch {
		case already || a.Unlocked(stats):
			ev.Status = StatusEarned
			ev.Progress = 1
		case ev.Current > 0:
			ev.Status = StatusInProgress
		default:
			ev.Status = StatusLocked
		}
		return ev
	})
}

// NewlyEarned returns the ids unlocked by stats that are not in earned,
// sorted.
func (c *Catalog) NewlyEarned(stats Stats, earned []string) []string {
	ids := lo.FilterMap(c.entries, func(a Achievement, _ int) (string, bool) {
		return a.ID, a.Unlocked(stats) && !lo.Contains(earned, a.ID)
	})
	sort.Strings(ids)
	return ids
}
