package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepdeck/internal/activity"
)

var recordCmd = &cobra.Command{
	Use:   "record [activity-json|-]",
	Short: "Record a learning activity",
	Long: `Record one activity given as JSON, either inline or on stdin with "-".

Example:
  prepdeck record -u alice '{"kind":"question","skill":"graphs","difficulty":"medium","correct":true}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}

		raw := []byte(args[0])
		if args[0] == "-" {
			raw, err = io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
		}
		ev, err := activity.Decode(raw)
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		u, err := a.SignIn(cmd.Context(), user)
		if err != nil {
			return err
		}
		res, err := u.RecordActivity(cmd.Context(), ev)
		if err != nil {
			return err
		}
		if err := a.SignOut(cmd.Context(), user); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "+%d points (total %d, streak %d)\n", res.Points, res.Record.TotalPoints, res.Record.CurrentStreak)
		if len(res.NewBadges) > 0 {
			fmt.Fprintf(out, "New badges: %s\n", strings.Join(res.NewBadges, ", "))
		}
		return nil
	},
}

func init() {
	userFlag(recordCmd)
}
