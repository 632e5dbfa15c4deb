// Package progress aggregates learning activities into a per-user progress
// record: counters, streaks, points, skill proficiency and badges.
package progress

import (
	"maps"
	"slices"
	"time"

	"github.com/abhisek/prepdeck/internal/achievements"
)

// DateLayout is the calendar-day format of LastActivityDate.
const DateLayout = "2006-01-02"

// Record is a user's aggregated progress. Accuracy and study minutes are
// derived from the stored counters.
type Record struct {
	UserID                 string              `json:"user_id"`
	TotalQuestionsAnswered int                 `json:"total_questions_answered"`
	TotalCorrectAnswers    int                 `json:"total_correct_answers"`
	CurrentStreak          int                 `json:"current_streak"`
	LongestStreak          int                 `json:"longest_streak"`
	StudySeconds           int64               `json:"study_seconds"`
	TotalPoints            int                 `json:"total_points"`
	Badges                 []string            `json:"badges"`
	SkillProficiency       map[string]int      `json:"skill_proficiency"`
	ChallengesCompleted    int                 `json:"challenges_completed"`
	CompletedSections      map[string][]string `json:"completed_sections"`
	PathTotals             map[string]int      `json:"path_totals"`
	LastActivityDate       string              `json:"last_activity_date,omitempty"`
	Revision               int64               `json:"revision"`
	CreatedAt              time.Time           `json:"created_at"`
	UpdatedAt              time.Time           `json:"updated_at"`
}

// NewRecord returns an empty record for userID.
func NewRecord(userID string, now time.Time) *Record {
	return &Record{
		UserID:            userID,
		Badges:            []string{},
		SkillProficiency:  map[string]int{},
		CompletedSections: map[string][]string{},
		PathTotals:        map[string]int{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Accuracy returns correct/answered in [0, 1], or 0 before any answer.
func (r *Record) Accuracy() float64 {
	if r.TotalQuestionsAnswered == 0 {
		return 0
	}
	return float64(r.TotalCorrectAnswers) / float64(r.TotalQuestionsAnswered)
}

// StudyMinutes returns total study time in whole minutes.
func (r *Record) StudyMinutes() int {
	return int(r.StudySeconds / 60)
}

// PathsCompleted counts learning paths whose every section is done.
func (r *Record) PathsCompleted() int {
	n := 0
	for path, done := range r.CompletedSections {
		if total := r.PathTotals[path]; total > 0 && len(done) >= total {
			n++
		}
	}
	return n
}

// HasBadge reports whether id has been earned.
func (r *Record) HasBadge(id string) bool {
	_, found := slices.BinarySearch(r.Badges, id)
	return found
}

// Stats projects the record onto the achievement counters.
func (r *Record) Stats() achievements.Stats {
	return achievements.Stats{
		QuestionsAnswered:   r.TotalQuestionsAnswered,
		CorrectAnswers:      r.TotalCorrectAnswers,
		LongestStreak:       r.LongestStreak,
		ChallengesCompleted: r.ChallengesCompleted,
		PathsCompleted:      r.PathsCompleted(),
		TotalPoints:         r.TotalPoints,
		StudyMinutes:        r.StudyMinutes(),
	}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	c.Badges = append([]string{}, r.Badges...)
	c.SkillProficiency = maps.Clone(r.SkillProficiency)
	c.PathTotals = maps.Clone(r.PathTotals)
	c.CompletedSections = make(map[string][]string, len(r.CompletedSections))
	for k, v := range r.CompletedSections {
		c.CompletedSections[k] = append([]string{}, v...)
	}
	c.normalize()
	return &c
}

// normalize replaces nil collections decoded from older documents.
func (r *Record) normalize() {
	if r.Badges == nil {
		r.Badges = []string{}
	}
	if r.SkillProficiency == nil {
		r.SkillProficiency = map[string]int{}
	}
	if r.CompletedSections == nil {
		r.CompletedSections = map[string][]string{}
	}
	if r.PathTotals == nil {
		r.PathTotals = map[string]int{}
	}
}
