package activity

import "time"

// envelopeSchema is the JSON Schema every incoming activity payload must
// satisfy before it is decoded into a concrete Event.
var envelopeSchema = map[string]any{
	"type": "object",
	"required": []any{"kind"},
	"properties": map[string]any{
		"kind": map[string]any{
			"type": "string",
			"enum": []any{string(KindQuestion), string(KindChallenge), string(KindSection)},
		},
	},
	"oneOf": []any{
		questionSchema,
		challengeSchema,
		sectionSchema,
	},
}

var timeSpentProp = map[string]any{
	"type":        "integer",
	"minimum":     0,
	"maximum":     int(MaxTimeSpent / time.Second),
	"description": "Seconds spent on the activity",
}

var questionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind":        map[string]any{"const": string(KindQuestion)},
		"question_id": map[string]any{"type": "string"},
		"skill":       map[string]any{"type": "string"},
		"difficulty": map[string]any{
			"type": "string",
			"enum": []any{"easy", "medium", "hard"},
		},
		"correct":         map[string]any{"type": "boolean"},
		"attempts":        map[string]any{"type": "integer", "minimum": 1},
		"time_spent_secs": timeSpentProp,
	},
	"required": []any{"kind", "difficulty", "correct"},
}

var challengeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind":            map[string]any{"const": string(KindChallenge)},
		"challenge_id":    map[string]any{"type": "string"},
		"skill":           map[string]any{"type": "string"},
		"score":           map[string]any{"type": "integer"},
		"max_score":       map[string]any{"type": "integer"},
		"completed":       map[string]any{"type": "boolean"},
		"time_spent_secs": timeSpentProp,
	},
	"required": []any{"kind", "score", "max_score", "completed"},
}

var sectionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"kind":            map[string]any{"const": string(KindSection)},
		"path_id":         map[string]any{"type": "string", "minLength": 1},
		"section_id":      map[string]any{"type": "string", "minLength": 1},
		"total_sections":  map[string]any{"type": "integer", "minimum": 1},
		"skill":           map[string]any{"type": "string"},
		"time_spent_secs": timeSpentProp,
	},
	"required": []any{"kind", "path_id", "section_id", "total_sections"},
}
