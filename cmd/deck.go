package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepdeck/internal/importer"
)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Manage flashcards",
}

var deckImportCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Import flashcards from a spreadsheet",
	Long:  "Import flashcards from an .xlsx or .csv file with columns id, front, back and an optional category.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
		if err != nil {
			return err
		}
		icfg := importer.DefaultConfig(args[0])
		icfg.SheetName, _ = cmd.Flags().GetString("sheet")
		noHeader, _ := cmd.Flags().GetBool("no-header")
		icfg.SkipHeader = !noHeader

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		u, err := a.SignIn(cmd.Context(), user)
		if err != nil {
			return err
		}
		res, err := importer.ImportDeck(cmd.Context(), u.Deck, icfg, a.Now())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Processed %d rows: %d created, %d already in deck, %d errors\n",
			res.Processed, res.Created, res.Skipped, len(res.Errors))
		for _, e := range res.Errors {
			fmt.Fprintln(out, "  "+e)
		}
		return nil
	},
}

var deckDueCmd = &cobra.Command{
	Use:   "due",
	Short: "List flashcards due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := userID(cmd)
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

		now := a.Now()
		counts := u.Deck.Counts(now)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d due, %d new, %d total\n", counts.Due, counts.New, counts.Total)
		for _, e := range u.Deck.Due(now) {
			fmt.Fprintf(out, "  %-20s %s (%.1f days overdue)\n", e.Card.ID, e.Card.Front, e.State.OverdueDays(now))
		}
		return nil
	},
}

func init() {
	userFlag(deckImportCmd)
	deckImportCmd.Flags().String("sheet", "", "Sheet to read (default: first sheet)")
	deckImportCmd.Flags().Bool("no-header", false, "First row is a card, not a header")

	userFlag(deckDueCmd)

	deckCmd.AddCommand(deckImportCmd)
	deckCmd.AddCommand(deckDueCmd)
}
