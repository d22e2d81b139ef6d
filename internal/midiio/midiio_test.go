package midiio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/javanhut/helio-vcs/internal/project"
)

func TestExportImportRoundTrip(t *testing.T) {
	tr := project.NewPianoTrack("lead")
	tr.Path = "Lead"
	tr.Channel = 3
	tr.Notes = []project.Note{
		{ID: "a", Key: 60, Beat: 0, Length: 1, Velocity: 1},
		{ID: "b", Key: 64, Beat: 1, Length: 0.5, Velocity: 0.5},
		{ID: "c", Key: 64, Beat: 1.5, Length: 0.5, Velocity: 0.5},
	}

	var buf bytes.Buffer
	require.NoError(t, ExportPianoTrack(&buf, tr))

	got, err := ImportPianoTracks(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	imported := got[0]
	assert.Equal(t, "Lead", imported.Path)
	assert.Equal(t, 3, imported.Channel)
	require.Len(t, imported.Notes, 3)
	for i, want := range tr.Notes {
		n := imported.Notes[i]
		assert.Equal(t, want.Key, n.Key)
		assert.InDelta(t, want.Beat, n.Beat, 1e-9)
		assert.InDelta(t, want.Length, n.Length, 1e-9)
		assert.InDelta(t, want.Velocity, n.Velocity, 0.01)
		assert.NotEmpty(t, n.ID)
	}
}

func TestImportClosesDanglingNotes(t *testing.T) {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(96)
	var track smf.Track
	track.Add(0, midi.NoteOn(0, 50, 100))
	track.Add(96, midi.NoteOn(0, 52, 100))
	// velocity zero note on ends the first note
	track.Add(96, midi.NoteOn(0, 50, 0))
	track.Close(96)
	require.NoError(t, s.Add(track))
	var buf bytes.Buffer
	_, err := s.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ImportPianoTracks(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	notes := got[0].Notes
	require.Len(t, notes, 2)
	assert.Equal(t, 50, notes[0].Key)
	assert.InDelta(t, 2.0, notes[0].Length, 1e-9)
	assert.Equal(t, 52, notes[1].Key)
	assert.InDelta(t, 1.0, notes[1].Beat, 1e-9)
	// open until the end of track at tick 288
	assert.InDelta(t, 2.0, notes[1].Length, 1e-9)
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := ImportPianoTracks(bytes.NewReader([]byte("not midi at all")))
	assert.Error(t, err)
}
