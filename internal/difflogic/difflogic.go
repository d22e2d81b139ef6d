// Package difflogic computes and applies revision items for each kind of
// tracked project item.
//
// Every kind has one Logic. A Logic only knows its own kind: changes that
// span kinds, such as a new track together with its pattern clips, are
// separate items of separate kinds. The Registry maps the kind string stored
// on each item to its Logic and runs whole-project diffs and replays.
package difflogic

import (
	"errors"
	"fmt"

	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

var (
	// ErrItemNotFound is returned when a Changed or Removed item targets an
	// entity that no longer exists. Replays skip such items.
	ErrItemNotFound = errors.New("difflogic: target item not found")
	ErrUnknownKind  = errors.New("difflogic: unknown item kind")
	ErrUnknownDelta = errors.New("difflogic: unknown delta type")
	ErrKindMismatch = errors.New("difflogic: item kind mismatch")
)

// Logic diffs and applies items of one tracked kind.
type Logic interface {
	Kind() string
	// DeltaTypes lists the delta types Apply understands.
	DeltaTypes() []string
	// NewItem creates the empty entity an Added item is applied to.
	NewItem(id string) project.TrackedItem
	// CreateDiff returns the items turning initial into target, in a
	// deterministic order. Unchanged parts produce no items.
	CreateDiff(initial, target project.TrackedItem) ([]*revision.Item, error)
	// Apply mutates live in place. It returns true when the item removes
	// the entity altogether.
	Apply(live project.TrackedItem, item *revision.Item) (removeItem bool, err error)
	// Snapshot expresses the full state of an entity as Added items, the
	// primary delta first.
	Snapshot(item project.TrackedItem) []*revision.Item
}

func newItem(ct revision.ChangeType, live project.TrackedItem, typ string, desc delta.Description, payload *serial.Node) *revision.Item {
	return revision.NewItem(ct, live.ID(), live.Kind(), delta.New(typ, desc, payload))
}

func payloadOf(item *revision.Item) (*serial.Node, error) {
	p := item.Delta().Payload()
	if !p.IsValid() {
		return nil, fmt.Errorf("difflogic: %s has no payload", item.Key())
	}
	return p, nil
}

func mismatch(want string, got project.TrackedItem) error {
	return fmt.Errorf("%w: want %s, got %T", ErrKindMismatch, want, got)
}

// removal turns a snapshot into the items deleting the entity: same deltas,
// reverse order, so the primary delta is removed last.
func removal(snapshot []*revision.Item) []*revision.Item {
	out := make([]*revision.Item, 0, len(snapshot))
	for i := len(snapshot) - 1; i >= 0; i-- {
		it := snapshot[i]
		desc := it.Delta().Description()
		desc.Text = removedText(it.DeltaType())
		out = append(out, revision.NewItem(revision.Removed, it.ItemID(), it.ItemKind(),
			delta.New(it.DeltaType(), desc, it.Delta().Payload().Clone())))
	}
	return out
}

func removedText(deltaType string) string {
	switch deltaType {
	case "notes", "events", "clips", "annotations", "timeSignatures", "keySignatures":
		return "{n} " + deltaType + " removed"
	}
	return deltaType + " removed"
}
