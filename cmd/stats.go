package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepdeck/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		width, _ := cmd.Flags().GetInt("width")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		u, err := a.SignIn(cmd.Context(), user)
		if err != nil {
			return err
		}
		rec := u.Progress.Snapshot()
		view := report.RenderStats(report.Stats{
			Record:       rec,
			Achievements: u.Progress.Catalog().Evaluate(rec.Stats(), rec.Badges),
			Deck:         u.Deck.Counts(a.Now()),
		}, width)
		fmt.Fprint(cmd.OutOrStdout(), view)
		return nil
	},
}

func init() {
	userFlag(statsCmd)
	statsCmd.Flags().Int("width", report.DefaultWidth, "Output width in columns")
}
