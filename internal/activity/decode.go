package activity

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/prepdeck/internal/scoring"
)

const schemaURL = "schema://activity-event.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// wireEvent is the flat JSON envelope shared by all variants.
type wireEvent struct {
	Kind          Kind   `json:"kind"`
	QuestionID    string `json:"question_id,omitempty"`
	ChallengeID   string `json:"challenge_id,omitempty"`
	PathID        string `json:"path_id,omitempty"`
	SectionID     string `json:"section_id,omitempty"`
	Skill         string `json:"skill,omitempty"`
	Difficulty    string `json:"difficulty,omitempty"`
	Correct       *bool  `json:"correct,omitempty"`
	Attempts      int    `json:"attempts,omitempty"`
	Score         *int   `json:"score,omitempty"`
	MaxScore      *int   `json:"max_score,omitempty"`
	Completed     *bool  `json:"completed,omitempty"`
	TotalSections int    `json:"total_sections,omitempty"`
	TimeSpentSecs int64  `json:"time_spent_secs,omitempty"`
}

// Decode validates raw JSON against the activity schema and returns the
// concrete Event it describes. All failures wrap ErrInvalid.
func Decode(raw []byte) (Event, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, invalidf("malformed JSON: %v", err)
	}

	schema, err := eventSchema()
	if err != nil {
		return nil, fmt.Errorf("compile activity schema: %w", err)
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, invalidf("schema validation failed: %v", err)
	}

	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalidf("decode %s: %v", w.Kind, err)
	}

	ev := w.event()
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

// Encode renders an Event in the envelope format accepted by Decode.
func Encode(e Event) ([]byte, error) {
	w := wireEvent{
		Kind:          e.Kind(),
		TimeSpentSecs: int64(e.Spent() / time.Second),
	}
	switch ev := e.(type) {
	case Question:
		w.QuestionID = ev.QuestionID
		w.Skill = ev.Skill
		w.Difficulty = string(ev.Difficulty)
		w.Correct = &ev.Correct
		w.Attempts = ev.Attempts
	case Challenge:
		w.ChallengeID = ev.ChallengeID
		w.Skill = ev.Skill
		w.Score = &ev.Score
		w.MaxScore = &ev.MaxScore
		w.Completed = &ev.Completed
	case Section:
		w.PathID = ev.PathID
		w.SectionID = ev.SectionID
		w.TotalSections = ev.TotalSections
		w.Skill = ev.Skill
	default:
		return nil, invalidf("unknown event type %T", e)
	}
	return json.Marshal(w)
}

func (w wireEvent) event() Event {
	spent := time.Duration(w.TimeSpentSecs) * time.Second
	switch w.Kind {
	case KindChallenge:
		return Challenge{
			ChallengeID: w.ChallengeID,
			Skill:       w.Skill,
			Score:       deref(w.Score),
			MaxScore:    deref(w.MaxScore),
			Completed:   deref(w.Completed),
			TimeSpent:   spent,
		}
	case KindSection:
		return Section{
			PathID:        w.PathID,
			SectionID:     w.SectionID,
			TotalSections: w.TotalSections,
			Skill:         w.Skill,
			TimeSpent:     spent,
		}
	default:
		attempts := w.Attempts
		if attempts == 0 {
			attempts = 1
		}
		return Question{
			QuestionID: w.QuestionID,
			Skill:      w.Skill,
			Difficulty: scoring.Difficulty(w.Difficulty),
			Correct:    deref(w.Correct),
			Attempts:   attempts,
			TimeSpent:  spent,
		}
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// eventSchema compiles the envelope schema once.
func eventSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants plain decoded JSON, not Go literals.
		defBytes, err := json.Marshal(envelopeSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}
