package report

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/prepdeck/internal/ui/theme"
)

// Bar is a horizontal progress bar with an optional label and percentage.
type Bar struct {
	Label       string
	LabelWidth  int
	Percent     float64
	ShowPercent bool
	Width       int
}

// View renders the bar in exactly Width cells when Width leaves room for
// the label and at least four bar cells.
func (b Bar) View() string {
	var out string
	if b.Label != "" {
		label := b.Label
		if pad := b.LabelWidth - lipgloss.Width(label); pad > 0 {
			label += strings.Repeat(" ", pad)
		}
		out = theme.Label.Render(label) + " "
	}

	percentWidth := 0
	if b.ShowPercent {
		percentWidth = 5 // " 100%"
	}

	barWidth := b.Width - lipgloss.Width(out) - percentWidth
	if barWidth < 4 {
		barWidth = 4
	}

	filled := int(float64(barWidth) * b.Percent)
	filled = max(0, min(filled, barWidth))

	out += theme.ProgressFilled.Render(strings.Repeat("█", filled))
	out += theme.ProgressEmpty.Render(strings.Repeat("░", barWidth-filled))

	if b.ShowPercent {
		out += theme.Label.Render(fmt.Sprintf(" %3d%%", int(b.Percent*100)))
	}
	return out
}
