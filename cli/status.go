package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/render"
	"github.com/javanhut/helio-vcs/internal/seals"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the working changes",
	Long:  "Shows the head revision, the changes of the live project against it, stashes and unpushed revisions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorkspace(false, func(w *workspace) error {
			return showStatus(cmd.Context(), w)
		})
	},
}

func showStatus(ctx context.Context, w *workspace) error {
	head := w.vc.HeadRevision()
	fmt.Printf("%s %s %s\n", colors.Bold("On revision"), colors.Info(seals.Name(head.Hash())), colors.Dim(head.ID()))

	diff, err := w.vc.Diff(ctx)
	if err != nil {
		return err
	}
	fmt.Println()
	if len(diff) == 0 {
		fmt.Println(colors.Success("Nothing to commit, project matches the head revision"))
	} else {
		fmt.Println(colors.SectionHeader(fmt.Sprintf("Changes (%s):", render.Summary(diff))))
		render.Items(os.Stdout, diff)
	}

	if names := w.vc.Stashes().Names(); len(names) > 0 || w.vc.Stashes().HasQuick() {
		fmt.Println()
		fmt.Println(colors.SectionHeader("Stashes:"))
		if w.vc.Stashes().HasQuick() {
			fmt.Printf("  %s\n", colors.Warning("quick"))
		}
		for _, n := range names {
			fmt.Printf("  %s\n", n)
		}
	}

	if w.cfg.Remote.URL != "" {
		if local := w.vc.LocalOnly(); len(local) > 0 {
			fmt.Println()
			fmt.Printf("%s %d revision(s) not on %s\n", colors.Warning("Unpushed:"), len(local), w.cfg.Remote.URL)
		}
	}
	return nil
}
