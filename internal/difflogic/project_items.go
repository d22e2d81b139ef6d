package difflogic

import (
	"fmt"

	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

const (
	DeltaOwner          = "owner"
	DeltaClips          = "clips"
	DeltaTitle          = "title"
	DeltaAuthor         = "author"
	DeltaDescription    = "description"
	DeltaLicense        = "license"
	DeltaAnnotations    = "annotations"
	DeltaTimeSignatures = "timeSignatures"
	DeltaKeySignatures  = "keySignatures"
)

// PatternSetLogic versions the clips of a track's pattern. The owner delta
// is primary: removing it removes the set.
type PatternSetLogic struct {
	clips sequence[project.Clip]
}

func NewPatternSetLogic() *PatternSetLogic {
	return &PatternSetLogic{clips: sequence[project.Clip]{deltaType: DeltaClips, decode: project.DeserializeClip}}
}

func (l *PatternSetLogic) Kind() string { return project.KindPatternSet }

func (l *PatternSetLogic) DeltaTypes() []string { return []string{DeltaOwner, DeltaClips} }

func (l *PatternSetLogic) NewItem(id string) project.TrackedItem { return project.NewPatternSet(id) }

func ownerItem(ct revision.ChangeType, p *project.PatternSet) *revision.Item {
	payload := serial.New(DeltaOwner).SetString("trackId", p.TrackID)
	return newItem(ct, p, DeltaOwner, delta.Description{Text: "owner " + ct.String(), Param: p.TrackID}, payload)
}

func (l *PatternSetLogic) CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error) {
	a, ok := initial.(*project.PatternSet)
	if !ok {
		return nil, mismatch(l.Kind(), initial)
	}
	b, ok := target.(*project.PatternSet)
	if !ok {
		return nil, mismatch(l.Kind(), target)
	}
	var items []*revision.Item
	if a.TrackID != b.TrackID {
		items = append(items, ownerItem(revision.Changed, b))
	}
	return append(items, l.clips.diff(b, a.Clips, b.Clips)...), nil
}

func (l *PatternSetLogic) Apply(live project.TrackedItem, item *revision.Item) (bool, error) {
	p, ok := live.(*project.PatternSet)
	if !ok {
		return false, mismatch(l.Kind(), live)
	}
	switch item.DeltaType() {
	case DeltaOwner:
		if item.ChangeType() == revision.Removed {
			return true, nil
		}
		payload, err := payloadOf(item)
		if err != nil {
			return false, err
		}
		p.TrackID = payload.GetString("trackId", "")
		return false, nil
	case DeltaClips:
		clips, err := l.clips.apply(p.Clips, item)
		if err != nil {
			return false, err
		}
		p.Clips = clips
		return false, nil
	}
	return false, fmt.Errorf("%w: %s on %s", ErrUnknownDelta, item.DeltaType(), l.Kind())
}

func (l *PatternSetLogic) Snapshot(item project.TrackedItem) []*revision.Item {
	p, ok := item.(*project.PatternSet)
	if !ok {
		return nil
	}
	return append([]*revision.Item{ownerItem(revision.Added, p)}, l.clips.snapshot(p, p.Clips)...)
}

// infoFields maps each info delta type to its field.
var infoFields = []struct {
	deltaType string
	field     func(*project.Info) *string
}{
	{DeltaTitle, func(i *project.Info) *string { return &i.Title }},
	{DeltaAuthor, func(i *project.Info) *string { return &i.Author }},
	{DeltaDescription, func(i *project.Info) *string { return &i.Description }},
	{DeltaLicense, func(i *project.Info) *string { return &i.License }},
}

// ProjectInfoLogic versions the metadata singleton, one delta per field.
// The singleton is never removed; a Removed field delta clears the field.
type ProjectInfoLogic struct{}

func NewProjectInfoLogic() *ProjectInfoLogic { return &ProjectInfoLogic{} }

func (l *ProjectInfoLogic) Kind() string { return project.KindProjectInfo }

func (l *ProjectInfoLogic) DeltaTypes() []string {
	return []string{DeltaTitle, DeltaAuthor, DeltaDescription, DeltaLicense}
}

func (l *ProjectInfoLogic) NewItem(string) project.TrackedItem { return project.NewInfo() }

func infoItem(ct revision.ChangeType, info *project.Info, deltaType, value string) *revision.Item {
	payload := serial.New(deltaType).SetString("value", value)
	return newItem(ct, info, deltaType, delta.Description{Text: deltaType + " " + ct.String(), Param: value}, payload)
}

func (l *ProjectInfoLogic) CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error) {
	a, ok := initial.(*project.Info)
	if !ok {
		return nil, mismatch(l.Kind(), initial)
	}
	b, ok := target.(*project.Info)
	if !ok {
		return nil, mismatch(l.Kind(), target)
	}
	var items []*revision.Item
	for _, f := range infoFields {
		if av, bv := *f.field(a), *f.field(b); av != bv {
			items = append(items, infoItem(revision.Changed, b, f.deltaType, bv))
		}
	}
	return items, nil
}

func (l *ProjectInfoLogic) Apply(live project.TrackedItem, item *revision.Item) (bool, error) {
	info, ok := live.(*project.Info)
	if !ok {
		return false, mismatch(l.Kind(), live)
	}
	for _, f := range infoFields {
		if f.deltaType != item.DeltaType() {
			continue
		}
		if item.ChangeType() == revision.Removed {
			*f.field(info) = ""
			return false, nil
		}
		payload, err := payloadOf(item)
		if err != nil {
			return false, err
		}
		*f.field(info) = payload.GetString("value", "")
		return false, nil
	}
	return false, fmt.Errorf("%w: %s on %s", ErrUnknownDelta, item.DeltaType(), l.Kind())
}

func (l *ProjectInfoLogic) Snapshot(item project.TrackedItem) []*revision.Item {
	info, ok := item.(*project.Info)
	if !ok {
		return nil
	}
	var items []*revision.Item
	for _, f := range infoFields {
		if v := *f.field(info); v != "" {
			items = append(items, infoItem(revision.Added, info, f.deltaType, v))
		}
	}
	return items
}

// ProjectTimelineLogic versions annotations, time signatures and key
// signatures of the timeline singleton.
type ProjectTimelineLogic struct {
	annotations    sequence[project.Annotation]
	timeSignatures sequence[project.TimeSignature]
	keySignatures  sequence[project.KeySignature]
}

func NewProjectTimelineLogic() *ProjectTimelineLogic {
	return &ProjectTimelineLogic{
		annotations:    sequence[project.Annotation]{deltaType: DeltaAnnotations, decode: project.DeserializeAnnotation},
		timeSignatures: sequence[project.TimeSignature]{deltaType: DeltaTimeSignatures, decode: project.DeserializeTimeSignature},
		keySignatures:  sequence[project.KeySignature]{deltaType: DeltaKeySignatures, decode: project.DeserializeKeySignature},
	}
}

func (l *ProjectTimelineLogic) Kind() string { return project.KindProjectTimeline }

func (l *ProjectTimelineLogic) DeltaTypes() []string {
	return []string{DeltaAnnotations, DeltaTimeSignatures, DeltaKeySignatures}
}

func (l *ProjectTimelineLogic) NewItem(string) project.TrackedItem { return project.NewTimeline() }

func (l *ProjectTimelineLogic) CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error) {
	a, ok := initial.(*project.Timeline)
	if !ok {
		return nil, mismatch(l.Kind(), initial)
	}
	b, ok := target.(*project.Timeline)
	if !ok {
		return nil, mismatch(l.Kind(), target)
	}
	items := l.annotations.diff(b, a.Annotations, b.Annotations)
	items = append(items, l.timeSignatures.diff(b, a.TimeSignatures, b.TimeSignatures)...)
	return append(items, l.keySignatures.diff(b, a.KeySignatures, b.KeySignatures)...), nil
}

func (l *ProjectTimelineLogic) Apply(live project.TrackedItem, item *revision.Item) (bool, error) {
	t, ok := live.(*project.Timeline)
	if !ok {
		return false, mismatch(l.Kind(), live)
	}
	var err error
	switch item.DeltaType() {
	case DeltaAnnotations:
		t.Annotations, err = applyTo(l.annotations, t.Annotations, item)
	case DeltaTimeSignatures:
		t.TimeSignatures, err = applyTo(l.timeSignatures, t.TimeSignatures, item)
	case DeltaKeySignatures:
		t.KeySignatures, err = applyTo(l.keySignatures, t.KeySignatures, item)
	default:
		err = fmt.Errorf("%w: %s on %s", ErrUnknownDelta, item.DeltaType(), l.Kind())
	}
	return false, err
}

// applyTo keeps the current events when apply fails.
func applyTo[E project.Event](s sequence[E], events []E, item *revision.Item) ([]E, error) {
	out, err := s.apply(events, item)
	if err != nil {
		return events, err
	}
	return out, nil
}

func (l *ProjectTimelineLogic) Snapshot(item project.TrackedItem) []*revision.Item {
	t, ok := item.(*project.Timeline)
	if !ok {
		return nil
	}
	items := l.annotations.snapshot(t, t.Annotations)
	items = append(items, l.timeSignatures.snapshot(t, t.TimeSignatures)...)
	return append(items, l.keySignatures.snapshot(t, t.KeySignatures)...)
}
