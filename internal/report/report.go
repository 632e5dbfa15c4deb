// Package report renders progress, achievements and activity history for
// the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/samber/lo"

	"github.com/abhisek/prepdeck/internal/achievements"
	"github.com/abhisek/prepdeck/internal/flashcard"
	"github.com/abhisek/prepdeck/internal/progress"
	"github.com/abhisek/prepdeck/internal/store"
	"github.com/abhisek/prepdeck/internal/ui/theme"
)

// DefaultWidth is used when the caller does not know the terminal width.
const DefaultWidth = 60

// Stats is everything the stats view shows.
type Stats struct {
	Record       *progress.Record
	Achievements []achievements.Evaluation
	Deck         flashcard.Counts
}

// RenderStats renders the dashboard printed by `prepdeck stats`.
func RenderStats(s Stats, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	rec := s.Record

	var b strings.Builder
	b.WriteString(theme.Title.Render("Progress for "+rec.UserID) + "\n")

	summary := [][2]string{
		{"Questions", fmt.Sprintf("%d answered, %d correct", rec.TotalQuestionsAnswered, rec.TotalCorrectAnswers)},
		{"Accuracy", fmt.Sprintf("%.0f%%", rec.Accuracy()*100)},
		{"Points", fmt.Sprintf("%d", rec.TotalPoints)},
		{"Streak", fmt.Sprintf("%d days (longest %d)", rec.CurrentStreak, rec.LongestStreak)},
		{"Study time", formatMinutes(rec.StudyMinutes())},
		{"Challenges", fmt.Sprintf("%d completed", rec.ChallengesCompleted)},
		{"Paths", fmt.Sprintf("%d completed", rec.PathsCompleted())},
		{"Flashcards", fmt.Sprintf("%d total, %d due, %d new", s.Deck.Total, s.Deck.Due, s.Deck.New)},
	}
	rows := lo.Map(summary, func(kv [2]string, _ int) string {
		return theme.Label.Width(12).Render(kv[0]) + theme.Value.Render(kv[1])
	})
	b.WriteString(theme.Card.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, rows...)) + "\n")

	if len(rec.SkillProficiency) > 0 {
		b.WriteString(theme.Heading.Render("Skills") + "\n")
		skills := lo.Keys(rec.SkillProficiency)
		sort.Strings(skills)
		labelWidth := lo.Max(lo.Map(skills, func(s string, _ int) int { return lipgloss.Width(s) }))
		for _, skill := range skills {
			bar := Bar{
				Label:       skill,
				LabelWidth:  labelWidth,
				Percent:     float64(rec.SkillProficiency[skill]) / 100,
				ShowPercent: true,
				Width:       width,
			}
			b.WriteString(bar.View() + "\n")
		}
	}

	if len(s.Achievements) > 0 {
		b.WriteString(theme.Heading.Render("Achievements") + "\n")
		for _, ev := range s.Achievements {
			b.WriteString(renderAchievement(ev, width) + "\n")
		}
	}
	return b.String()
}

func renderAchievement(ev achievements.Evaluation, width int) string {
	switch ev.Status {
	case achievements.StatusEarned:
		return theme.Earned.Render("✓ "+ev.Name) + theme.Hint.Render("  "+ev.Description)
	case achievements.StatusInProgress:
		bar := Bar{
			Label:       "  " + ev.Name,
			LabelWidth:  24,
			Percent:     ev.Progress,
			ShowPercent: true,
			Width:       width,
		}
		return theme.InProgress.Render("•") + bar.View()
	default:
		return theme.Locked.Render("· " + ev.Name + "  " + ev.Description)
	}
}

// RenderHistory renders activity log entries, one per line, with times in loc.
func RenderHistory(entries []store.ActivityEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return theme.Hint.Render("No activity recorded yet.") + "\n"
	}
	if loc == nil {
		loc = time.Local
	}

	var b strings.Builder
	for _, e := range entries {
		skill := e.Skill
		if skill == "" {
			skill = "-"
		}
		points := theme.Correct.Render(fmt.Sprintf("+%d", e.Points))
		if e.Points == 0 {
			points = theme.Incorrect.Render("+0")
		}
		fmt.Fprintf(&b, "%s  %s  %s  %s\n",
			theme.Label.Render(fmt.Sprintf("#%-5d %s", e.Sequence, e.Timestamp.In(loc).Format("2006-01-02 15:04"))),
			theme.Value.Width(22).Render(e.Kind),
			theme.Label.Width(16).Render(skill),
			points,
		)
	}
	return b.String()
}

func formatMinutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}
