package difflogic

import (
	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// sequence diffs an ordered list of events matched by stable id. Positions
// only matter through the event content, so reordering alone is no change.
type sequence[E project.Event] struct {
	deltaType string
	decode    func(*serial.Node) (E, error)
}

func (s sequence[E]) payload(events []E) *serial.Node {
	n := serial.New(s.deltaType)
	for _, e := range events {
		n.MustAppend(e.Serialize())
	}
	return n
}

func (s sequence[E]) item(ct revision.ChangeType, live project.TrackedItem, events []E) *revision.Item {
	desc := delta.Description{Text: "{n} " + s.deltaType + " " + ct.String(), Count: int64(len(events))}
	return newItem(ct, live, s.deltaType, desc, s.payload(events))
}

func sorted[E project.Event](events []E) []E {
	out := append([]E(nil), events...)
	project.SortEvents(out)
	return out
}

// diff emits at most three items: Removed, Changed and Added, each listing
// every affected event.
func (s sequence[E]) diff(live project.TrackedItem, initial, target []E) []*revision.Item {
	a, b := sorted(initial), sorted(target)
	before := make(map[string]E, len(a))
	for _, e := range a {
		before[e.EventID()] = e
	}
	after := make(map[string]bool, len(b))
	var added, changed, removed []E
	for _, e := range b {
		after[e.EventID()] = true
		old, ok := before[e.EventID()]
		if !ok {
			added = append(added, e)
			continue
		}
		if !old.Serialize().IsEquivalentTo(e.Serialize()) {
			changed = append(changed, e)
		}
	}
	for _, e := range a {
		if !after[e.EventID()] {
			removed = append(removed, e)
		}
	}

	var items []*revision.Item
	if len(removed) > 0 {
		items = append(items, s.item(revision.Removed, live, removed))
	}
	if len(changed) > 0 {
		items = append(items, s.item(revision.Changed, live, changed))
	}
	if len(added) > 0 {
		items = append(items, s.item(revision.Added, live, added))
	}
	return items
}

func (s sequence[E]) snapshot(live project.TrackedItem, events []E) []*revision.Item {
	if len(events) == 0 {
		return nil
	}
	return []*revision.Item{s.item(revision.Added, live, sorted(events))}
}

// apply merges the item's events into events. Added and Changed upsert by
// id; an Added event whose id already exists replaces it, so the last item
// applied wins. Removed drops the listed ids.
func (s sequence[E]) apply(events []E, item *revision.Item) ([]E, error) {
	p, err := payloadOf(item)
	if err != nil {
		return nil, err
	}
	incoming := make([]E, 0, p.NumChildren())
	for _, c := range p.Children() {
		e, err := s.decode(c)
		if err != nil {
			return nil, err
		}
		incoming = append(incoming, e)
	}

	out := append([]E(nil), events...)
	index := make(map[string]int, len(out))
	for i, e := range out {
		index[e.EventID()] = i
	}
	switch item.ChangeType() {
	case revision.Added, revision.Changed:
		for _, e := range incoming {
			if i, ok := index[e.EventID()]; ok {
				out[i] = e
				continue
			}
			index[e.EventID()] = len(out)
			out = append(out, e)
		}
	case revision.Removed:
		drop := make(map[string]bool, len(incoming))
		for _, e := range incoming {
			drop[e.EventID()] = true
		}
		kept := out[:0]
		for _, e := range out {
			if !drop[e.EventID()] {
				kept = append(kept, e)
			}
		}
		out = kept
	}
	project.SortEvents(out)
	return out, nil
}
