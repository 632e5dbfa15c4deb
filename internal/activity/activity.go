package activity

import (
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/prepdeck/internal/scoring"
)

// Kind identifies an activity variant.
type Kind string

const (
	KindQuestion  Kind = "question"
	KindChallenge Kind = "challenge"
	KindSection   Kind = "learning-path-section"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid activity")

// MaxTimeSpent bounds the time a single activity may report.
const MaxTimeSpent = 24 * time.Hour

// Event is a completed learning activity. The concrete type is one of
// Question, Challenge or Section.
type Event interface {
	Kind() Kind
	Validate() error
	Spent() time.Duration
	isEvent()
}

// Question is one answered quiz question.
type Question struct {
	QuestionID string
	Skill      string
	Difficulty scoring.Difficulty
	Correct    bool
	Attempts   int
	TimeSpent  time.Duration
}

func (Question) Kind() Kind { return KindQuestion }
func (q Question) Spent() time.Duration { return q.TimeSpent }
func (Question) isEvent() {}

func (q Question) Validate() error {
	if !q.Difficulty.Valid() {
		return invalidf("question: unknown difficulty %q", q.Difficulty)
	}
	if q.Attempts < 0 {
		return invalidf("question: negative attempts %d", q.Attempts)
	}
	if q.TimeSpent < 0 || q.TimeSpent > MaxTimeSpent {
		return invalidf("question: time spent %s out of range", q.TimeSpent)
	}
	return nil
}

// Challenge is a finished (or abandoned) coding challenge.
type Challenge struct {
	ChallengeID string
	Skill       string
	Score       int
	MaxScore    int
	Completed   bool
	TimeSpent   time.Duration
}

func (Challenge) Kind() Kind { return KindChallenge }
func (c Challenge) Spent() time.Duration { return c.TimeSpent }
func (Challenge) isEvent() {}

// Validate only rejects malformed time; odd scores degrade to zero points.
func (c Challenge) Validate() error {
	if c.TimeSpent < 0 || c.TimeSpent > MaxTimeSpent {
		return invalidf("challenge: time spent %s out of range", c.TimeSpent)
	}
	return nil
}

// Percent returns the score as 0..100, or 0 when the maximum is not positive.
func (c Challenge) Percent() int {
	if c.MaxScore <= 0 || c.Score <= 0 {
		return 0
	}
	if c.Score >= c.MaxScore {
		return 100
	}
	return c.Score * 100 / c.MaxScore
}

// Section is a completed learning-path section.
type Section struct {
	PathID        string
	SectionID     string
	TotalSections int
	Skill         string
	TimeSpent     time.Duration
}

func (Section) Kind() Kind { return KindSection }
func (s Section) Spent() time.Duration { return s.TimeSpent }
func (Section) isEvent() {}

func (s Section) Validate() error {
	if s.PathID == "" || s.SectionID == "" {
		return invalidf("section: path and section ids are required")
	}
	if s.TotalSections < 1 {
		return invalidf("section: total sections must be positive, got %d", s.TotalSections)
	}
	if s.TimeSpent < 0 || s.TimeSpent > MaxTimeSpent {
		return invalidf("section: time spent %s out of range", s.TimeSpent)
	}
	return nil
}

// Skill returns the skill an event exercises, or "" when it has none.
func Skill(e Event) string {
	switch ev := e.(type) {
	case Question:
		return ev.Skill
	case Challenge:
		return ev.Skill
	case Section:
		return ev.Skill
	default:
		return ""
	}
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
