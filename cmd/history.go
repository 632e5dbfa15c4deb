package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepdeck/internal/report"
	"github.com/abhisek/prepdeck/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent activity from the activity log",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		entries, err := a.History(cmd.Context(), user, store.QueryOpts{Limit: limit})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), report.RenderHistory(entries, a.Location()))
		return nil
	},
}

func init() {
	userFlag(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Maximum entries to show (0 for all)")
}
