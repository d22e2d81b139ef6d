package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/midiio"
	"github.com/javanhut/helio-vcs/internal/project"
)

var importMidiCmd = &cobra.Command{
	Use:   "import-midi <file.mid>",
	Short: "Add the tracks of a MIDI file as piano tracks",
	Long:  "Reads a Standard MIDI File and adds one piano track per MIDI track holding notes. The new tracks show up as working changes.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportMidi,
}

var exportMidiCmd = &cobra.Command{
	Use:   "export-midi <track-id> <file.mid>",
	Short: "Write a piano track as a MIDI file",
	Args:  cobra.ExactArgs(2),
	RunE:  runExportMidi,
}

func runImportMidi(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	tracks, err := midiio.ImportPianoTracks(f)
	if err != nil {
		return err
	}
	return withWorkspace(true, func(w *workspace) error {
		for _, tr := range tracks {
			if err := w.live.Add(tr); err != nil {
				return err
			}
			fmt.Printf("%s %s %s (%d notes)\n", colors.Added("+"), tr.Path, colors.Dim(tr.ID()), len(tr.Notes))
		}
		fmt.Printf("%s %d track(s)\n", colors.Success("Imported"), len(tracks))
		return nil
	})
}

func runExportMidi(cmd *cobra.Command, args []string) error {
	return withWorkspace(false, func(w *workspace) error {
		tr, ok := w.live.Find(args[0]).(*project.PianoTrack)
		if !ok {
			return fmt.Errorf("no piano track %s", args[0])
		}
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		if err := midiio.ExportPianoTrack(f, tr); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Printf("%s %s to %s\n", colors.Success("Exported"), tr.Path, args[1])
		return nil
	})
}
