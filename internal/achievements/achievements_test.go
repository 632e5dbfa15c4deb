package achievements

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewlyEarned(t *testing.T) {
	c := DefaultCatalog()

	got := c.NewlyEarned(Stats{QuestionsAnswered: 1, CorrectAnswers: 1}, nil)
	assert.Equal(t, []string{"first-question"}, got)

	got = c.NewlyEarned(Stats{QuestionsAnswered: 12, CorrectAnswers: 12}, []string{"first-question"})
	assert.Equal(t, []string{"questions-10"}, got)

	assert.Empty(t, c.NewlyEarned(Stats{}, nil))
}

func TestSharpshooterNeedsSample(t *testing.T) {
	c := DefaultCatalog()
	a, ok := c.Get("sharpshooter")
	require.True(t, ok)

	assert.False(t, a.Unlocked(Stats{QuestionsAnswered: 10, CorrectAnswers: 10}))
	assert.True(t, a.Unlocked(Stats{QuestionsAnswered: 50, CorrectAnswers: 45}))
	assert.False(t, a.Unlocked(Stats{QuestionsAnswered: 50, CorrectAnswers: 44}))
}

func TestEvaluate(t *testing.T) {
	c := NewCatalog([]Achievement{
		{ID: "a", Metric: MetricQuestionsAnswered, Threshold: 10},
		{ID: "b", Metric: MetricChallenges, Threshold: 5},
		{ID: "c", Metric: MetricTotalPoints, Threshold: 100},
	})

	evals := c.Evaluate(Stats{QuestionsAnswered: 4, TotalPoints: 20}, []string{"c"})
	require.Len(t, evals, 3)

	assert.Equal(t, StatusInProgress, evals[0].Status)
	assert.InDelta(t, 0.4, evals[0].Progress, 1e-9)
	assert.Equal(t, StatusLocked, evals[1].Status)
	// Earned badges stay earned.
	assert.Equal(t, StatusEarned, evals[2].Status)
	assert.Equal(t, 1.0, evals[2].Progress)
}

func TestCatalogDeduplicates(t *testing.T) {
	c := NewCatalog([]Achievement{
		{ID: "x", Name: "first"},
		{ID: "x", Name: "second"},
	})
	require.Len(t, c.All(), 1)
	a, _ := c.Get("x")
	assert.Equal(t, "first", a.Name)
}

func TestStatsValueAccuracy(t *testing.T) {
	assert.Equal(t, 0, Stats{}.Value(MetricAccuracy))
	assert.Equal(t, 66, Stats{QuestionsAnswered: 3, CorrectAnswers: 2}.Value(MetricAccuracy))
	assert.Equal(t, 0, Stats{}.Value(Metric("unknown")))
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(Evaluation{Achievement: Achievement{ID: "a"}, Status: StatusEarned})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"status":"earned"`)
	assert.Contains(t, string(b), `"id":"a"`)
}
