// Package midiio converts piano tracks to and from Standard MIDI Files.
package midiio

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/google/uuid"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/javanhut/helio-vcs/internal/project"
)

// DefaultResolution is the ticks per quarter note used on export.
const DefaultResolution = 480

type pending struct {
	tick     int64
	velocity uint8
}

type noteKey struct {
	channel, key uint8
}

// ImportPianoTracks reads an SMF and returns one piano track per SMF track
// that holds notes. Note on/off pairs are matched first in, first out per
// channel and key; notes left open end at the last tick of their track.
// Beats are quarter notes.
func ImportPianoTracks(r io.Reader) ([]*project.PianoTrack, error) {
	s, err := smf.ReadFrom(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIDI: %w", err)
	}
	resolution := float64(DefaultResolution)
	if mt, ok := s.TimeFormat.(smf.MetricTicks); ok && mt.Resolution() > 0 {
		resolution = float64(mt.Resolution())
	}

	var out []*project.PianoTrack
	for i, track := range s.Tracks {
		tr := project.NewPianoTrack(uuid.NewString())
		tr.Path = fmt.Sprintf("track-%d", i+1)
		open := map[noteKey][]pending{}
		channelSet := false
		var tick int64

		emit := func(k noteKey, p pending, end int64) {
			tr.Notes = append(tr.Notes, project.Note{
				ID:       uuid.NewString(),
				Key:      int(k.key),
				Beat:     float64(p.tick) / resolution,
				Length:   float64(end-p.tick) / resolution,
				Velocity: float64(p.velocity) / 127,
			})
		}

		for _, ev := range track {
			tick += int64(ev.Delta)
			var name string
			if ev.Message.GetMetaTrackName(&name) && name != "" {
				tr.Path = name
				continue
			}
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				k := noteKey{ch, key}
				open[k] = append(open[k], pending{tick: tick, velocity: vel})
				if !channelSet {
					tr.Channel = int(ch) + 1
					channelSet = true
				}
			case msg.GetNoteEnd(&ch, &key):
				k := noteKey{ch, key}
				if q := open[k]; len(q) > 0 {
					emit(k, q[0], tick)
					open[k] = q[1:]
				}
			}
		}
		for k, q := range open {
			for _, p := range q {
				emit(k, p, tick)
			}
		}
		if len(tr.Notes) == 0 {
			continue
		}
		sort.SliceStable(tr.Notes, func(a, b int) bool {
			if tr.Notes[a].Beat != tr.Notes[b].Beat {
				return tr.Notes[a].Beat < tr.Notes[b].Beat
			}
			return tr.Notes[a].Key < tr.Notes[b].Key
		})
		out = append(out, tr)
	}
	return out, nil
}

type event struct {
	tick int64
	off  bool
	msg  []byte
}

func clampByte(v, lo, hi int) uint8 {
	return uint8(max(lo, min(hi, v)))
}

// ExportPianoTrack writes a single track SMF holding the track's notes.
func ExportPianoTrack(w io.Writer, tr *project.PianoTrack) error {
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(DefaultResolution)
	channel := clampByte(tr.Channel-1, 0, 15)

	var events []event
	for _, n := range tr.Notes {
		on := max(0, int64(math.Round(n.Beat*DefaultResolution)))
		off := on + max(1, int64(math.Round(n.Length*DefaultResolution)))
		key := clampByte(n.Key, 0, 127)
		vel := clampByte(int(math.Round(n.Velocity*127)), 1, 127)
		events = append(events,
			event{tick: on, msg: midi.NoteOn(channel, key, vel)},
			event{tick: off, off: true, msg: midi.NoteOff(channel, key)})
	}
	// note offs first so repeated keys retrigger cleanly
	sort.SliceStable(events, func(a, b int) bool {
		if events[a].tick != events[b].tick {
			return events[a].tick < events[b].tick
		}
		return events[a].off && !events[b].off
	})

	var track smf.Track
	track.Add(0, smf.MetaTrackSequenceName(tr.Path))
	var last int64
	for _, ev := range events {
		track.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	track.Close(0)
	if err := s.Add(track); err != nil {
		return fmt.Errorf("failed to add track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write MIDI: %w", err)
	}
	return nil
}
