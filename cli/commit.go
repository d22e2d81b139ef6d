package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/seals"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

var commitCmd = &cobra.Command{
	Use:   "commit -m <message> [--item <id>]...",
	Short: "Record working changes as a new revision",
	Long: `Commits the working changes as a child of the head revision.

Without --item every change is committed; with it only the changes of the
named items are.

Examples:
  hvcs commit -m "bass line"
  hvcs commit -m "lead only" --item 6f1c0d2e`,
	Args: cobra.NoArgs,
	RunE: runCommit,
}

var (
	commitMessage string
	commitItems   []string
)

func init() {
	commitCmd.Flags().StringVarP(&commitMessage, "message", "m", "", "Revision message")
	commitCmd.Flags().StringSliceVar(&commitItems, "item", nil, "Only commit changes of this item id (repeatable)")
	_ = commitCmd.MarkFlagRequired("message")
}

func runCommit(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		ctx := cmd.Context()
		diff, err := w.vc.Diff(ctx)
		if err != nil {
			return err
		}
		selection, err := selectItems(diff, commitItems)
		if err != nil {
			return err
		}

		var rev *revision.Revision
		if selection == nil {
			rev, err = w.vc.Commit(ctx, commitMessage)
		} else {
			rev, err = w.vc.CommitItems(ctx, selection, commitMessage)
		}
		if errors.Is(err, vcs.ErrNothingToCommit) {
			fmt.Println(colors.Warning("Nothing to commit"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (%d change(s))\n", colors.Success("Committed"), colors.Info(seals.Name(rev.Hash())), rev.NumItems())
		return nil
	})
}
