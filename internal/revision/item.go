package revision

import (
	"fmt"

	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// ChangeType is the kind of change an item describes.
type ChangeType uint8

const (
	Added ChangeType = iota + 1
	Removed
	Changed
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return fmt.Sprintf("ChangeType(%d)", uint8(c))
}

// Inverse returns the change type that undoes c.
func (c ChangeType) Inverse() ChangeType {
	switch c {
	case Added:
		return Removed
	case Removed:
		return Added
	}
	return c
}

// ParseChangeType is the inverse of ChangeType.String.
func ParseChangeType(s string) (ChangeType, error) {
	switch s {
	case "added":
		return Added, nil
	case "removed":
		return Removed, nil
	case "changed":
		return Changed, nil
	}
	return 0, fmt.Errorf("revision: unknown change type %q", s)
}

// ItemNodeType is the serialized node type of an item.
const ItemNodeType = "item"

// Item is one change of one tracked entity, carrying exactly one delta.
// Items are immutable values once created.
type Item struct {
	changeType ChangeType
	itemID     string
	itemKind   string
	delta      *delta.Delta
}

// NewItem creates an item owning d.
func NewItem(changeType ChangeType, itemID, itemKind string, d *delta.Delta) *Item {
	return &Item{changeType: changeType, itemID: itemID, itemKind: itemKind, delta: d}
}

func (i *Item) ChangeType() ChangeType { return i.changeType }

// ItemID is the identity of the tracked entity, e.g. a track id.
func (i *Item) ItemID() string { return i.itemID }

// ItemKind selects the diff logic that interprets the delta.
func (i *Item) ItemKind() string { return i.itemKind }

func (i *Item) Delta() *delta.Delta { return i.delta }

// DeltaType is a shortcut for Delta().Type().
func (i *Item) DeltaType() string { return i.delta.Type() }

// Key identifies an item within a diff: entity, delta type and change type.
func (i *Item) Key() string {
	return i.itemID + "/" + i.delta.Type() + "/" + i.changeType.String()
}

// Copy returns an independently owned item.
func (i *Item) Copy() *Item {
	return &Item{changeType: i.changeType, itemID: i.itemID, itemKind: i.itemKind, delta: i.delta.Copy()}
}

// Equivalent compares identity, change type and delta content.
func (i *Item) Equivalent(o *Item) bool {
	return i.changeType == o.changeType &&
		i.itemID == o.itemID &&
		i.itemKind == o.itemKind &&
		i.delta.Equivalent(o.delta)
}

func (i *Item) String() string {
	return fmt.Sprintf("%s %s %s: %s", i.changeType, i.itemKind, i.itemID, i.delta.Description())
}

// Serialize writes the item with its delta as the only child.
func (i *Item) Serialize() *serial.Node {
	n := serial.New(ItemNodeType)
	n.SetString("changeType", i.changeType.String())
	n.SetString("itemId", i.itemID)
	n.SetString("itemType", i.itemKind)
	n.MustAppend(i.delta.Serialize())
	return n
}

// DeserializeItem reads an item written by Serialize.
func DeserializeItem(n *serial.Node) (*Item, error) {
	if !n.IsValid() || n.Type() != ItemNodeType {
		return nil, fmt.Errorf("revision: unexpected item node %q", n.Type())
	}
	ct, err := ParseChangeType(n.GetString("changeType", ""))
	if err != nil {
		return nil, err
	}
	id := n.GetString("itemId", "")
	kind := n.GetString("itemType", "")
	if id == "" || kind == "" {
		return nil, fmt.Errorf("revision: item without identity")
	}
	dn := n.ChildOfType(delta.NodeType)
	if dn == nil {
		return nil, fmt.Errorf("revision: item %s has no delta", id)
	}
	d, err := delta.Deserialize(dn)
	if err != nil {
		return nil, fmt.Errorf("revision: item %s: %w", id, err)
	}
	return NewItem(ct, id, kind, d), nil
}

// CopyItems deep-copies a slice of items.
func CopyItems(items []*Item) []*Item {
	out := make([]*Item, len(items))
	for i, it := range items {
		out[i] = it.Copy()
	}
	return out
}

// EquivalentItems compares two item sequences in order.
func EquivalentItems(a, b []*Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equivalent(b[i]) {
			return false
		}
	}
	return true
}
