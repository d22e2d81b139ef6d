package project

import (
	"fmt"

	"github.com/javanhut/helio-vcs/internal/serial"
)

// Kinds of tracked items. The kind string is stored on every revision item
// and selects the diff logic that interprets it.
const (
	KindPianoTrack      = "PianoTrack"
	KindAutomationTrack = "AutomationTrack"
	KindPatternSet      = "PatternSet"
	KindProjectInfo     = "ProjectInfo"
	KindProjectTimeline = "ProjectTimeline"
)

// Singleton ids. Every project has exactly one info and one timeline item.
const (
	InfoID     = "info"
	TimelineID = "timeline"
)

// Kinds lists every tracked kind in registration order.
func Kinds() []string {
	return []string{KindPianoTrack, KindAutomationTrack, KindPatternSet, KindProjectInfo, KindProjectTimeline}
}

// TrackedItem is a versioned entity of the project.
type TrackedItem interface {
	ID() string
	Kind() string
	Clone() TrackedItem
	Serialize() *serial.Node
}

// PianoTrack is a track of notes bound to an instrument channel.
type PianoTrack struct {
	id           string
	Path         string
	Colour       string
	InstrumentID string
	Channel      int
	Notes        []Note
}

func NewPianoTrack(id string) *PianoTrack { return &PianoTrack{id: id, Channel: 1} }

func (t *PianoTrack) ID() string { return t.id }
func (t *PianoTrack) Kind() string { return KindPianoTrack }

func (t *PianoTrack) Clone() TrackedItem {
	c := *t
	c.Notes = append([]Note(nil), t.Notes...)
	return &c
}

func (t *PianoTrack) Serialize() *serial.Node {
	n := serial.New(KindPianoTrack).
		SetString("id", t.id).
		SetString("path", t.Path).
		SetString("colour", t.Colour).
		SetString("instrument", t.InstrumentID).
		SetInt("channel", int64(t.Channel))
	writeEvents(n, "notes", t.Notes)
	return n
}

func deserializePianoTrack(n *serial.Node) (*PianoTrack, error) {
	t := NewPianoTrack(n.GetString("id", ""))
	t.Path = n.GetString("path", "")
	t.Colour = n.GetString("colour", "")
	t.InstrumentID = n.GetString("instrument", "")
	t.Channel = int(n.GetInt("channel", 1))
	notes, err := readEvents(n, "notes", DeserializeNote)
	if err != nil {
		return nil, err
	}
	t.Notes = notes
	return t, nil
}

// AutomationTrack is a track of controller events.
type AutomationTrack struct {
	id           string
	Path         string
	Colour       string
	InstrumentID string
	Controller   int
	Events       []AutomationEvent
}

func NewAutomationTrack(id string) *AutomationTrack { return &AutomationTrack{id: id} }

func (t *AutomationTrack) ID() string { return t.id }
func (t *AutomationTrack) Kind() string { return KindAutomationTrack }

func (t *AutomationTrack) Clone() TrackedItem {
	c := *t
	c.Events = append([]AutomationEvent(nil), t.Events...)
	return &c
}

func (t *AutomationTrack) Serialize() *serial.Node {
	n := serial.New(KindAutomationTrack).
		SetString("id", t.id).
		SetString("path", t.Path).
		SetString("colour", t.Colour).
		SetString("instrument", t.InstrumentID).
		SetInt("controller", int64(t.Controller))
	writeEvents(n, "events", t.Events)
	return n
}

func deserializeAutomationTrack(n *serial.Node) (*AutomationTrack, error) {
	t := NewAutomationTrack(n.GetString("id", ""))
	t.Path = n.GetString("path", "")
	t.Colour = n.GetString("colour", "")
	t.InstrumentID = n.GetString("instrument", "")
	t.Controller = int(n.GetInt("controller", 0))
	events, err := readEvents(n, "events", DeserializeAutomationEvent)
	if err != nil {
		return nil, err
	}
	t.Events = events
	return t, nil
}

// PatternSet holds the clips that place a track's pattern on the arrangement.
// TrackID names the owning track.
type PatternSet struct {
	id      string
	TrackID string
	Clips   []Clip
}

func NewPatternSet(id string) *PatternSet { return &PatternSet{id: id} }

func (p *PatternSet) ID() string { return p.id }
func (p *PatternSet) Kind() string { return KindPatternSet }

func (p *PatternSet) Clone() TrackedItem {
	c := *p
	c.Clips = append([]Clip(nil), p.Clips...)
	return &c
}

func (p *PatternSet) Serialize() *serial.Node {
	n := serial.New(KindPatternSet).
		SetString("id", p.id).
		SetString("track", p.TrackID)
	writeEvents(n, "clips", p.Clips)
	return n
}

func deserializePatternSet(n *serial.Node) (*PatternSet, error) {
	p := NewPatternSet(n.GetString("id", ""))
	p.TrackID = n.GetString("track", "")
	clips, err := readEvents(n, "clips", DeserializeClip)
	if err != nil {
		return nil, err
	}
	p.Clips = clips
	return p, nil
}

// Info is the project metadata singleton.
type Info struct {
	Title       string
	Author      string
	Description string
	License     string
}

func NewInfo() *Info { return &Info{} }

func (i *Info) ID() string { return InfoID }
func (i *Info) Kind() string { return KindProjectInfo }

func (i *Info) Clone() TrackedItem {
	c := *i
	return &c
}

func (i *Info) Serialize() *serial.Node {
	return serial.New(KindProjectInfo).
		SetString("id", InfoID).
		SetString("title", i.Title).
		SetString("author", i.Author).
		SetString("description", i.Description).
		SetString("license", i.License)
}

// Timeline is the singleton holding annotations and signatures.
type Timeline struct {
	Annotations    []Annotation
	TimeSignatures []TimeSignature
	KeySignatures  []KeySignature
}

func NewTimeline() *Timeline { return &Timeline{} }

func (t *Timeline) ID() string { return TimelineID }
func (t *Timeline) Kind() string { return KindProjectTimeline }

func (t *Timeline) Clone() TrackedItem {
	return &Timeline{
		Annotations:    append([]Annotation(nil), t.Annotations...),
		TimeSignatures: append([]TimeSignature(nil), t.TimeSignatures...),
		KeySignatures:  append([]KeySignature(nil), t.KeySignatures...),
	}
}

func (t *Timeline) Serialize() *serial.Node {
	n := serial.New(KindProjectTimeline).SetString("id", TimelineID)
	writeEvents(n, "annotations", t.Annotations)
	writeEvents(n, "timeSignatures", t.TimeSignatures)
	writeEvents(n, "keySignatures", t.KeySignatures)
	return n
}

func deserializeTimeline(n *serial.Node) (*Timeline, error) {
	t := NewTimeline()
	var err error
	if t.Annotations, err = readEvents(n, "annotations", DeserializeAnnotation); err != nil {
		return nil, err
	}
	if t.TimeSignatures, err = readEvents(n, "timeSignatures", DeserializeTimeSignature); err != nil {
		return nil, err
	}
	if t.KeySignatures, err = readEvents(n, "keySignatures", DeserializeKeySignature); err != nil {
		return nil, err
	}
	return t, nil
}

// DeserializeItem reads any tracked item written by its Serialize method.
func DeserializeItem(n *serial.Node) (TrackedItem, error) {
	if !n.IsValid() {
		return nil, fmt.Errorf("%w: invalid node", ErrUnknownType)
	}
	if n.Type() != KindProjectInfo && n.Type() != KindProjectTimeline && n.GetString("id", "") == "" {
		return nil, fmt.Errorf("project: %s without id", n.Type())
	}
	switch n.Type() {
	case KindPianoTrack:
		return deserializePianoTrack(n)
	case KindAutomationTrack:
		return deserializeAutomationTrack(n)
	case KindPatternSet:
		return deserializePatternSet(n)
	case KindProjectInfo:
		return &Info{
			Title:       n.GetString("title", ""),
			Author:      n.GetString("author", ""),
			Description: n.GetString("description", ""),
			License:     n.GetString("license", ""),
		}, nil
	case KindProjectTimeline:
		return deserializeTimeline(n)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, n.Type())
}

// NewItem creates an empty item of the given kind.
func NewItem(kind, id string) (TrackedItem, error) {
	switch kind {
	case KindPianoTrack:
		return NewPianoTrack(id), nil
	case KindAutomationTrack:
		return NewAutomationTrack(id), nil
	case KindPatternSet:
		return NewPatternSet(id), nil
	case KindProjectInfo:
		return NewInfo(), nil
	case KindProjectTimeline:
		return NewTimeline(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, kind)
}

// Equivalent compares two items by their serialized state. Event order is
// not significant.
func Equivalent(a, b TrackedItem) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Kind() == b.Kind() && a.ID() == b.ID() && a.Serialize().IsEquivalentTo(b.Serialize())
}
