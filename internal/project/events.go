package project

import (
	"fmt"
	"sort"

	"github.com/javanhut/helio-vcs/internal/serial"
)

// Event is an element of an ordered sequence inside a tracked item. Events
// are matched across snapshots by their stable id, never by position.
type Event interface {
	EventID() string
	Position() float64
	Serialize() *serial.Node
}

// SortEvents orders events by position, then id, in place.
func SortEvents[E Event](events []E) {
	sort.SliceStable(events, func(i, j int) bool {
		pi, pj := events[i].Position(), events[j].Position()
		if pi != pj {
			return pi < pj
		}
		return events[i].EventID() < events[j].EventID()
	})
}

func sortedCopy[E Event](events []E) []E {
	out := make([]E, len(events))
	copy(out, events)
	SortEvents(out)
	return out
}

func writeEvents[E Event](parent *serial.Node, typ string, events []E) {
	seq := parent.MustAppend(serial.New(typ))
	for _, e := range sortedCopy(events) {
		seq.MustAppend(e.Serialize())
	}
}

func readEvents[E Event](parent *serial.Node, typ string, decode func(*serial.Node) (E, error)) ([]E, error) {
	seq := parent.ChildOfType(typ)
	if seq == nil {
		return nil, nil
	}
	out := make([]E, 0, seq.NumChildren())
	for _, c := range seq.Children() {
		e, err := decode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func eventID(n *serial.Node, typ string) (string, error) {
	if n.Type() != typ {
		return "", fmt.Errorf("%w: expected %s, got %q", ErrUnknownType, typ, n.Type())
	}
	id := n.GetString("id", "")
	if id == "" {
		return "", fmt.Errorf("project: %s without id", typ)
	}
	return id, nil
}

// Note is a piano roll note. Key is the MIDI key number.
type Note struct {
	ID       string
	Key      int
	Beat     float64
	Length   float64
	Velocity float64
}

const NoteNodeType = "note"

func (n Note) EventID() string { return n.ID }
func (n Note) Position() float64 { return n.Beat }

func (n Note) Serialize() *serial.Node {
	return serial.New(NoteNodeType).
		SetString("id", n.ID).
		SetInt("key", int64(n.Key)).
		SetFloat("beat", n.Beat).
		SetFloat("length", n.Length).
		SetFloat("velocity", n.Velocity)
}

func DeserializeNote(node *serial.Node) (Note, error) {
	id, err := eventID(node, NoteNodeType)
	if err != nil {
		return Note{}, err
	}
	return Note{
		ID:       id,
		Key:      int(node.GetInt("key", 0)),
		Beat:     node.GetFloat("beat", 0),
		Length:   node.GetFloat("length", 0),
		Velocity: node.GetFloat("velocity", 0),
	}, nil
}

// AutomationEvent is a controller value at a beat. Curve shapes the ramp
// towards the next event, 0.5 being linear.
type AutomationEvent struct {
	ID    string
	Beat  float64
	Value float64
	Curve float64
}

const AutomationEventNodeType = "event"

func (e AutomationEvent) EventID() string { return e.ID }
func (e AutomationEvent) Position() float64 { return e.Beat }

func (e AutomationEvent) Serialize() *serial.Node {
	return serial.New(AutomationEventNodeType).
		SetString("id", e.ID).
		SetFloat("beat", e.Beat).
		SetFloat("value", e.Value).
		SetFloat("curve", e.Curve)
}

func DeserializeAutomationEvent(node *serial.Node) (AutomationEvent, error) {
	id, err := eventID(node, AutomationEventNodeType)
	if err != nil {
		return AutomationEvent{}, err
	}
	return AutomationEvent{
		ID:    id,
		Beat:  node.GetFloat("beat", 0),
		Value: node.GetFloat("value", 0),
		Curve: node.GetFloat("curve", 0.5),
	}, nil
}

// Clip is one instance of a track's pattern on the arrangement.
type Clip struct {
	ID        string
	Beat      float64
	Transpose int
	Volume    float64
	Mute      bool
	Solo      bool
}

const ClipNodeType = "clip"

func (c Clip) EventID() string { return c.ID }
func (c Clip) Position() float64 { return c.Beat }

func (c Clip) Serialize() *serial.Node {
	return serial.New(ClipNodeType).
		SetString("id", c.ID).
		SetFloat("beat", c.Beat).
		SetInt("transpose", int64(c.Transpose)).
		SetFloat("volume", c.Volume).
		SetBool("mute", c.Mute).
		SetBool("solo", c.Solo)
}

func DeserializeClip(node *serial.Node) (Clip, error) {
	id, err := eventID(node, ClipNodeType)
	if err != nil {
		return Clip{}, err
	}
	return Clip{
		ID:        id,
		Beat:      node.GetFloat("beat", 0),
		Transpose: int(node.GetInt("transpose", 0)),
		Volume:    node.GetFloat("volume", 1),
		Mute:      node.GetBool("mute", false),
		Solo:      node.GetBool("solo", false),
	}, nil
}

// Annotation is a labelled region of the timeline.
type Annotation struct {
	ID          string
	Beat        float64
	Length      float64
	Description string
	Colour      string
}

const AnnotationNodeType = "annotation"

func (a Annotation) EventID() string { return a.ID }
func (a Annotation) Position() float64 { return a.Beat }

func (a Annotation) Serialize() *serial.Node {
	return serial.New(AnnotationNodeType).
		SetString("id", a.ID).
		SetFloat("beat", a.Beat).
		SetFloat("length", a.Length).
		SetString("description", a.Description).
		SetString("colour", a.Colour)
}

func DeserializeAnnotation(node *serial.Node) (Annotation, error) {
	id, err := eventID(node, AnnotationNodeType)
	if err != nil {
		return Annotation{}, err
	}
	return Annotation{
		ID:          id,
		Beat:        node.GetFloat("beat", 0),
		Length:      node.GetFloat("length", 0),
		Description: node.GetString("description", ""),
		Colour:      node.GetString("colour", ""),
	}, nil
}

type TimeSignature struct {
	ID          string
	Beat        float64
	Numerator   int
	Denominator int
}

const TimeSignatureNodeType = "timeSignature"

func (s TimeSignature) EventID() string { return s.ID }
func (s TimeSignature) Position() float64 { return s.Beat }

func (s TimeSignature) Serialize() *serial.Node {
	return serial.New(TimeSignatureNodeType).
		SetString("id", s.ID).
		SetFloat("beat", s.Beat).
		SetInt("numerator", int64(s.Numerator)).
		SetInt("denominator", int64(s.Denominator))
}

func DeserializeTimeSignature(node *serial.Node) (TimeSignature, error) {
	id, err := eventID(node, TimeSignatureNodeType)
	if err != nil {
		return TimeSignature{}, err
	}
	return TimeSignature{
		ID:          id,
		Beat:        node.GetFloat("beat", 0),
		Numerator:   int(node.GetInt("numerator", 4)),
		Denominator: int(node.GetInt("denominator", 4)),
	}, nil
}

// KeySignature sets the root key (0 = C) and scale name from a beat on.
type KeySignature struct {
	ID      string
	Beat    float64
	RootKey int
	Scale   string
}

const KeySignatureNodeType = "keySignature"

func (s KeySignature) EventID() string { return s.ID }
func (s KeySignature) Position() float64 { return s.Beat }

func (s KeySignature) Serialize() *serial.Node {
	return serial.New(KeySignatureNodeType).
		SetString("id", s.ID).
		SetFloat("beat", s.Beat).
		SetInt("rootKey", int64(s.RootKey)).
		SetString("scale", s.Scale)
}

func DeserializeKeySignature(node *serial.Node) (KeySignature, error) {
	id, err := eventID(node, KeySignatureNodeType)
	if err != nil {
		return KeySignature{}, err
	}
	return KeySignature{
		ID:      id,
		Beat:    node.GetFloat("beat", 0),
		RootKey: int(node.GetInt("rootKey", 0)),
		Scale:   node.GetString("scale", ""),
	}, nil
}
