package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/render"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/seals"
	"github.com/javanhut/helio-vcs/internal/serial"
)

var logCmd = &cobra.Command{
	Use:   "log [revision]",
	Short: "Show revision history",
	Long: `Display the ancestry of a revision, newest first.

Examples:
  hvcs log                    # history of the head revision
  hvcs log --limit 10         # only the last 10 revisions
  hvcs log --all              # every revision of the tree
  hvcs log bright-cello-swells-softly-447abe9b`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLog,
}

var showCmd = &cobra.Command{
	Use:   "show [revision]",
	Short: "Show the changes recorded by a revision",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var (
	logLimit  int
	logAll    bool
	showPatch bool
)

func init() {
	logCmd.Flags().IntVar(&logLimit, "limit", 0, "Limit number of revisions to show")
	logCmd.Flags().BoolVar(&logAll, "all", false, "Show every revision of the tree")
	showCmd.Flags().BoolVarP(&showPatch, "patch", "p", false, "Show payload diffs")
}

func runLog(cmd *cobra.Command, args []string) error {
	return withWorkspace(false, func(w *workspace) error {
		var revs []*revision.Revision
		if logAll {
			revs = w.vc.Revisions()
		} else {
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			start, err := resolveRevision(w.vc, ref)
			if err != nil {
				return err
			}
			if revs, err = w.vc.Log(start.ID()); err != nil {
				return err
			}
		}
		if logLimit > 0 && len(revs) > logLimit {
			revs = revs[:logLimit]
		}
		render.Log(os.Stdout, revs, w.vc.HeadRevision().ID())
		return nil
	})
}

func runShow(cmd *cobra.Command, args []string) error {
	return withWorkspace(false, func(w *workspace) error {
		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		rev, err := resolveRevision(w.vc, ref)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", colors.Bold("revision"), colors.Info(seals.Name(rev.Hash())))
		fmt.Printf("id:      %s\n", rev.ID())
		if p := rev.Parent(); p != nil {
			fmt.Printf("parent:  %s\n", p.ID())
		}
		if rev.Author() != "" {
			fmt.Printf("author:  %s\n", rev.Author())
		}
		fmt.Printf("date:    %s\n", rev.Timestamp().Local().Format("2006-01-02 15:04:05 MST"))
		if rev.Message() != "" {
			fmt.Printf("\n    %s\n", rev.Message())
		}
		fmt.Println()
		render.Items(os.Stdout, rev.Items())

		if !showPatch {
			return nil
		}
		previous, err := payloadsBefore(cmd.Context(), w, rev)
		if err != nil {
			return err
		}
		for _, it := range rev.Items() {
			patch, err := render.ItemPatch(it, previous)
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Print(patch)
		}
		return nil
	})
}

// payloadsBefore returns a lookup of the payload each item of rev replaced,
// taken from the flattened parent state.
func payloadsBefore(ctx context.Context, w *workspace, rev *revision.Revision) (func(*revision.Item) *serial.Node, error) {
	if rev.IsRoot() {
		return nil, nil
	}
	flat, err := w.vc.Flatten(ctx, rev.Parent().ID())
	if err != nil {
		return nil, err
	}
	last := map[string]*serial.Node{}
	for _, it := range flat {
		k := it.ItemID() + "/" + it.DeltaType()
		if it.ChangeType() == revision.Removed {
			delete(last, k)
			continue
		}
		last[k] = it.Delta().Payload()
	}
	return func(it *revision.Item) *serial.Node {
		return last[it.ItemID()+"/"+it.DeltaType()]
	}, nil
}
