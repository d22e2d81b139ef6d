package difflogic

import (
	"fmt"

	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// Delta types shared by track kinds.
const (
	DeltaPath       = "path"
	DeltaInstrument = "instrument"
	DeltaNotes      = "notes"
	DeltaEvents     = "events"
)

// trackHeader is the part of a track the path and instrument deltas cover.
// Param is the channel of piano tracks and the controller of automation tracks.
type trackHeader struct {
	path, colour string
	instrument   string
	param        int
}

func pathItem(ct revision.ChangeType, live project.TrackedItem, h trackHeader) *revision.Item {
	p := serial.New(DeltaPath).SetString("name", h.path).SetString("colour", h.colour)
	desc := delta.Description{Text: "path " + ct.String(), Param: h.path}
	return newItem(ct, live, DeltaPath, desc, p)
}

func instrumentItem(ct revision.ChangeType, live project.TrackedItem, h trackHeader, paramName string) *revision.Item {
	p := serial.New(DeltaInstrument).SetString("instrumentId", h.instrument).SetInt(paramName, int64(h.param))
	desc := delta.Description{Text: "instrument " + ct.String(), Param: h.instrument}
	return newItem(ct, live, DeltaInstrument, desc, p)
}

func diffHeader(live project.TrackedItem, a, b trackHeader, paramName string) []*revision.Item {
	var items []*revision.Item
	if a.path != b.path || a.colour != b.colour {
		items = append(items, pathItem(revision.Changed, live, b))
	}
	if a.instrument != b.instrument || a.param != b.param {
		items = append(items, instrumentItem(revision.Changed, live, b, paramName))
	}
	return items
}

// applyHeader handles the path and instrument deltas. handled is false for
// any other delta type.
func applyHeader(h *trackHeader, item *revision.Item, paramName string, defParam int) (handled, remove bool, err error) {
	switch item.DeltaType() {
	case DeltaPath:
		if item.ChangeType() == revision.Removed {
			return true, true, nil
		}
		p, err := payloadOf(item)
		if err != nil {
			return true, false, err
		}
		h.path = p.GetString("name", "")
		h.colour = p.GetString("colour", "")
		return true, false, nil
	case DeltaInstrument:
		if item.ChangeType() == revision.Removed {
			h.instrument, h.param = "", defParam
			return true, false, nil
		}
		p, err := payloadOf(item)
		if err != nil {
			return true, false, err
		}
		h.instrument = p.GetString("instrumentId", "")
		h.param = int(p.GetInt(paramName, int64(defParam)))
		return true, false, nil
	}
	return false, false, nil
}

// PianoTrackLogic versions piano tracks: path, instrument binding and notes.
type PianoTrackLogic struct {
	notes sequence[project.Note]
}

func NewPianoTrackLogic() *PianoTrackLogic {
	return &PianoTrackLogic{notes: sequence[project.Note]{deltaType: DeltaNotes, decode: project.DeserializeNote}}
}

func (l *PianoTrackLogic) Kind() string { return project.KindPianoTrack }

func (l *PianoTrackLogic) DeltaTypes() []string {
	return []string{DeltaPath, DeltaInstrument, DeltaNotes}
}

func (l *PianoTrackLogic) NewItem(id string) project.TrackedItem { return project.NewPianoTrack(id) }

func pianoHeader(t *project.PianoTrack) trackHeader {
	return trackHeader{path: t.Path, colour: t.Colour, instrument: t.InstrumentID, param: t.Channel}
}

func (l *PianoTrackLogic) CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error) {
	a, ok := initial.(*project.PianoTrack)
	if !ok {
		return nil, mismatch(l.Kind(), initial)
	}
	b, ok := target.(*project.PianoTrack)
	if !ok {
		return nil, mismatch(l.Kind(), target)
	}
	if a.ID() != b.ID() {
		return nil, fmt.Errorf("difflogic: cannot diff %s against %s", a.ID(), b.ID())
	}
	items := diffHeader(b, pianoHeader(a), pianoHeader(b), "channel")
	return append(items, l.notes.diff(b, a.Notes, b.Notes)...), nil
}

func (l *PianoTrackLogic) Apply(live project.TrackedItem, item *revision.Item) (bool, error) {
	t, ok := live.(*project.PianoTrack)
	if !ok {
		return false, mismatch(l.Kind(), live)
	}
	h := pianoHeader(t)
	handled, remove, err := applyHeader(&h, item, "channel", 1)
	if err != nil || remove {
		return remove, err
	}
	if handled {
		t.Path, t.Colour, t.InstrumentID, t.Channel = h.path, h.colour, h.instrument, h.param
		return false, nil
	}
	if item.DeltaType() != DeltaNotes {
		return false, fmt.Errorf("%w: %s on %s", ErrUnknownDelta, item.DeltaType(), l.Kind())
	}
	notes, err := l.notes.apply(t.Notes, item)
	if err != nil {
		return false, err
	}
	t.Notes = notes
	return false, nil
}

func (l *PianoTrackLogic) Snapshot(item project.TrackedItem) []*revision.Item {
	t, ok := item.(*project.PianoTrack)
	if !ok {
		return nil
	}
	h := pianoHeader(t)
	items := []*revision.Item{
		pathItem(revision.Added, t, h),
		instrumentItem(revision.Added, t, h, "channel"),
	}
	return append(items, l.notes.snapshot(t, t.Notes)...)
}

// AutomationTrackLogic versions automation tracks: path, controller binding
// and events.
type AutomationTrackLogic struct {
	events sequence[project.AutomationEvent]
}

func NewAutomationTrackLogic() *AutomationTrackLogic {
	return &AutomationTrackLogic{events: sequence[project.AutomationEvent]{deltaType: DeltaEvents, decode: project.DeserializeAutomationEvent}}
}

func (l *AutomationTrackLogic) Kind() string { return project.KindAutomationTrack }

func (l *AutomationTrackLogic) DeltaTypes() []string {
	return []string{DeltaPath, DeltaInstrument, DeltaEvents}
}

func (l *AutomationTrackLogic) NewItem(id string) project.TrackedItem {
	return project.NewAutomationTrack(id)
}

func automationHeader(t *project.AutomationTrack) trackHeader {
	return trackHeader{path: t.Path, colour: t.Colour, instrument: t.InstrumentID, param: t.Controller}
}

func (l *AutomationTrackLogic) CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error) {
	a, ok := initial.(*project.AutomationTrack)
	if !ok {
		return nil, mismatch(l.Kind(), initial)
	}
	b, ok := target.(*project.AutomationTrack)
	if !ok {
		return nil, mismatch(l.Kind(), target)
	}
	if a.ID() != b.ID() {
		return nil, fmt.Errorf("difflogic: cannot diff %s against %s", a.ID(), b.ID())
	}
	items := diffHeader(b, automationHeader(a), automationHeader(b), "controller")
	return append(items, l.events.diff(b, a.Events, b.Events)...), nil
}

func (l *AutomationTrackLogic) Apply(live project.TrackedItem, item *revision.Item) (bool, error) {
	t, ok := live.(*project.AutomationTrack)
	if !ok {
		return false, mismatch(l.Kind(), live)
	}
	h := automationHeader(t)
	handled, remove, err := applyHeader(&h, item, "controller", 0)
	if err != nil || remove {
		return remove, err
	}
	if handled {
		t.Path, t.Colour, t.InstrumentID, t.Controller = h.path, h.colour, h.instrument, h.param
		return false, nil
	}
	if item.DeltaType() != DeltaEvents {
		return false, fmt.Errorf("%w: %s on %s", ErrUnknownDelta, item.DeltaType(), l.Kind())
	}
	events, err := l.events.apply(t.Events, item)
	if err != nil {
		return false, err
	}
	t.Events = events
	return false, nil
}

func (l *AutomationTrackLogic) Snapshot(item project.TrackedItem) []*revision.Item {
	t, ok := item.(*project.AutomationTrack)
	if !ok {
		return nil
	}
	h := automationHeader(t)
	items := []*revision.Item{
		pathItem(revision.Added, t, h),
		instrumentItem(revision.Added, t, h, "controller"),
	}
	return append(items, l.events.snapshot(t, t.Events)...)
}
