package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/seals"
)

var resetCmd = &cobra.Command{
	Use:   "reset [--item <id>]...",
	Short: "Discard working changes",
	Long: `Reverts working changes on the live project.

Examples:
  hvcs reset                  # discard every change
  hvcs reset --item 6f1c0d2e  # discard the changes of one item`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <revision>",
	Short: "Replace the live project with the state at a revision",
	Long: `Moves the head to a revision and rewrites the live project to match it.

Refuses to discard working changes unless --force is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckout,
}

var (
	resetItems    []string
	checkoutForce bool
)

func init() {
	resetCmd.Flags().StringSliceVar(&resetItems, "item", nil, "Only reset changes of this item id (repeatable)")
	checkoutCmd.Flags().BoolVarP(&checkoutForce, "force", "f", false, "Discard working changes")
}

func runReset(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		ctx := cmd.Context()
		diff, err := w.vc.Diff(ctx)
		if err != nil {
			return err
		}
		if len(diff) == 0 {
			fmt.Println(colors.Dim("No working changes"))
			return nil
		}
		selection, err := selectItems(diff, resetItems)
		if err != nil {
			return err
		}
		report, err := w.vc.ResetChanges(ctx, selection)
		if err != nil {
			return err
		}
		fmt.Printf("%s %d change(s)\n", colors.Success("Reverted"), report.Applied)
		if !report.Clean() {
			fmt.Printf("%s %d change(s) could not be reverted\n", colors.Warning("Skipped"), report.Skipped)
		}
		return nil
	})
}

func runCheckout(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		ctx := cmd.Context()
		rev, err := resolveRevision(w.vc, args[0])
		if err != nil {
			return err
		}
		dirty, err := w.vc.IsDirty(ctx)
		if err != nil {
			return err
		}
		if dirty && !checkoutForce {
			return fmt.Errorf("working changes would be lost; commit, stash or use --force")
		}
		if err := w.vc.Checkout(ctx, rev.ID()); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", colors.Success("Checked out"), colors.Info(seals.Name(rev.Hash())))
		return nil
	})
}
