package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/render"
	"github.com/javanhut/helio-vcs/internal/stash"
)

var stashCmd = &cobra.Command{
	Use:   "stash",
	Short: "Set working changes aside",
	Long: `Stashes hold uncommitted changes outside the revision tree.

Examples:
  hvcs stash push -m "try a new chorus"
  hvcs stash push --name chorus --item 6f1c0d2e
  hvcs stash push --quick
  hvcs stash list
  hvcs stash pop chorus`,
}

var stashPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Stash working changes and revert them",
	Args:  cobra.NoArgs,
	RunE:  runStashPush,
}

var stashPopCmd = &cobra.Command{
	Use:   "pop [name]",
	Short: "Apply a stash and drop it (the quick stash when no name is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStashPop,
}

var stashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stashes",
	Args:  cobra.NoArgs,
	RunE:  runStashList,
}

var stashShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the changes held by a stash",
	Args:  cobra.ExactArgs(1),
	RunE:  runStashShow,
}

var (
	stashName    string
	stashMessage string
	stashItems   []string
	stashQuick   bool
)

func init() {
	stashPushCmd.Flags().StringVar(&stashName, "name", "", "Stash name (generated when empty)")
	stashPushCmd.Flags().StringVarP(&stashMessage, "message", "m", "", "Stash message")
	stashPushCmd.Flags().StringSliceVar(&stashItems, "item", nil, "Only stash changes of this item id (repeatable)")
	stashPushCmd.Flags().BoolVar(&stashQuick, "quick", false, "Use the quick stash slot")
}

func runStashPush(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		ctx := cmd.Context()
		if stashQuick {
			if err := w.vc.QuickStash(ctx); err != nil {
				return err
			}
			fmt.Printf("%s working changes in the quick slot\n", colors.Success("Stashed"))
			return nil
		}
		diff, err := w.vc.Diff(ctx)
		if err != nil {
			return err
		}
		selection, err := selectItems(diff, stashItems)
		if err != nil {
			return err
		}
		name, err := w.vc.Stash(ctx, stashName, stashMessage, selection)
		if errors.Is(err, stash.ErrNoItems) {
			fmt.Println(colors.Warning("Nothing to stash"))
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s working changes as %s\n", colors.Success("Stashed"), colors.Bold(name))
		return nil
	})
}

func runStashPop(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		name := stash.QuickStashName
		if len(args) == 1 {
			name = args[0]
		}
		report, err := w.vc.ApplyStash(cmd.Context(), name)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (%d change(s))\n", colors.Success("Applied"), colors.Bold(name), report.Applied)
		if !report.Clean() {
			fmt.Printf("%s %d change(s) no longer apply\n", colors.Warning("Skipped"), report.Skipped)
		}
		return nil
	})
}

func runStashList(cmd *cobra.Command, args []string) error {
	return withWorkspace(false, func(w *workspace) error {
		repo := w.vc.Stashes()
		if repo.Len() == 0 {
			fmt.Println(colors.Dim("No stashes"))
			return nil
		}
		if repo.HasQuick() {
			printStashLine(repo, stash.QuickStashName)
		}
		for _, name := range repo.Names() {
			printStashLine(repo, name)
		}
		return nil
	})
}

func printStashLine(repo *stash.Repository, name string) {
	s, err := repo.Peek(name)
	if err != nil {
		return
	}
	fmt.Printf("  %s  %s  %s  %s\n",
		colors.Bold(name),
		colors.Dim(s.CreatedAt.Local().Format("2006-01-02 15:04")),
		render.Summary(s.Items),
		s.Message)
}

func runStashShow(cmd *cobra.Command, args []string) error {
	return withWorkspace(false, func(w *workspace) error {
		s, err := w.vc.Stashes().Peek(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", colors.Bold("stash"), s.Name)
		if s.Message != "" {
			fmt.Printf("\n    %s\n", s.Message)
		}
		fmt.Println()
		render.Items(os.Stdout, s.Items)
		return nil
	})
}
