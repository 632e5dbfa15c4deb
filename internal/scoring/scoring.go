package scoring

import "math"

// Difficulty is the tier of a quiz question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// AllDifficulties returns the difficulty tiers in ascending order.
func AllDifficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// Valid reports whether d is a known tier.
func (d Difficulty) Valid() bool {
	_, ok := basePoints[d]
	return ok
}

var basePoints = map[Difficulty]int{
	DifficultyEasy:   5,
	DifficultyMedium: 10,
	DifficultyHard:   20,
}

const (
	// RetryPenalty is subtracted for every attempt beyond the first.
	RetryPenalty = 2

	// MinCorrectPoints is the floor for a correct answer.
	MinCorrectPoints = 1

	// ChallengeMaxPoints is awarded for a perfect challenge score.
	ChallengeMaxPoints = 50

	// SectionPoints is awarded the first time a learning-path section is completed.
	SectionPoints = 15

	// PathBonus is awarded when a section completion finishes its learning path.
	PathBonus = 50
)

// BasePoints returns the points a first-attempt correct answer earns for d.
// Unknown tiers earn nothing.
func BasePoints(d Difficulty) int {
	return basePoints[d]
}

// QuestionPoints scores a single answered question.
func QuestionPoints(d Difficulty, correct bool, attempts int) int {
	if !correct {
		return 0
	}
	base, ok := basePoints[d]
	if !ok {
		return 0
	}
	if attempts < 1 {
		attempts = 1
	}
	pts := base - RetryPenalty*(attempts-1)
	if pts < MinCorrectPoints {
		pts = MinCorrectPoints
	}
	return pts
}

// ChallengePoints scores a coding challenge by the fraction of the maximum
// score reached. A zero or negative maxScore scores nothing.
func ChallengePoints(score, maxScore int, completed bool) int {
	if !completed || maxScore <= 0 {
		return 0
	}
	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}
	return int(math.Round(float64(score) / float64(maxScore) * ChallengeMaxPoints))
}

// SectionCompletionPoints scores a learning-path section completion.
// Repeat completions score nothing; finishing the path adds PathBonus.
func SectionCompletionPoints(firstTime, pathFinished bool) int {
	if !firstTime {
		return 0
	}
	pts := SectionPoints
	if pathFinished {
		pts += PathBonus
	}
	return pts
}
