// Package revision implements the commit graph of the version control engine.
//
// A Revision owns its children; the parent link is a back-reference only.
// Once a revision is attached to a tree its items are frozen and only its
// children may grow. Item order is replay order: Flatten and every consumer
// process items exactly as stored, never re-sorted.
//
// Revisions are not safe for concurrent mutation; the owning version control
// instance serializes writers.
package revision

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// NodeType is the serialized node type of a revision payload.
const NodeType = "revision"

var (
	// ErrAlreadyAttached is returned when attaching a revision that is part of a tree.
	ErrAlreadyAttached = errors.New("revision: already attached")
	// ErrCycle is returned when attaching an ancestor below its descendant.
	ErrCycle = errors.New("revision: attachment would create a cycle")
	// ErrWrongParent is returned when a pending child is attached under another revision.
	ErrWrongParent = errors.New("revision: pending child belongs to another parent")
	// ErrFrozen is returned when adding items to a committed revision.
	ErrFrozen = errors.New("revision: committed revisions are immutable")
)

// Folder reduces a replay-ordered item sequence to the full state it
// produces, expressed as Added items.
type Folder interface {
	Fold(items []*Item) ([]*Item, error)
}

// Revision is a node of the commit graph.
type Revision struct {
	id        string
	message   string
	author    string
	timestamp time.Time
	items     []*Item

	parent        *Revision
	pendingParent *Revision
	children      []*Revision
	committed     bool
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// New creates a pending, parentless revision.
func New(message, author string) *Revision {
	return &Revision{
		id:        newID(),
		message:   message,
		author:    author,
		timestamp: time.Now().UTC(),
	}
}

// NewRoot creates the committed root of a fresh tree.
func NewRoot() *Revision {
	r := New("", "")
	r.committed = true
	return r
}

// NewRootAt is NewRoot with an explicit creation time.
func NewRootAt(t time.Time) *Revision {
	r := New("", "")
	r.timestamp = t.UTC()
	r.committed = true
	return r
}

// CreateChild returns a pending revision that will be attached under r.
func (r *Revision) CreateChild(message, author string) *Revision {
	c := New(message, author)
	c.pendingParent = r
	return c
}

func (r *Revision) ID() string { return r.id }
func (r *Revision) Message() string { return r.message }
func (r *Revision) Author() string { return r.author }
func (r *Revision) Timestamp() time.Time { return r.timestamp }
func (r *Revision) Parent() *Revision { return r.parent }
func (r *Revision) IsRoot() bool { return r.parent == nil }
func (r *Revision) IsCommitted() bool { return r.committed }
func (r *Revision) NumItems() int { return len(r.items) }

// SetTimestamp overrides the creation time of a pending revision.
func (r *Revision) SetTimestamp(t time.Time) {
	if !r.committed {
		r.timestamp = t.UTC()
	}
}

// AddItem appends an item in replay order.
func (r *Revision) AddItem(item *Item) error {
	if r.committed {
		return ErrFrozen
	}
	r.items = append(r.items, item)
	return nil
}

// Items returns the items in stored order. The slice is a copy.
func (r *Revision) Items() []*Item {
	out := make([]*Item, len(r.items))
	copy(out, r.items)
	return out
}

// Children returns the children in attachment order. The slice is a copy.
func (r *Revision) Children() []*Revision {
	out := make([]*Revision, len(r.children))
	copy(out, r.children)
	return out
}

// Freeze marks a parentless revision as the committed root of a tree.
func (r *Revision) Freeze() {
	r.committed = true
}

// AttachChild makes child a permanent child of r. Attachment happens once.
func (r *Revision) AttachChild(child *Revision) error {
	if child.parent != nil || child.committed {
		return fmt.Errorf("%w: %s", ErrAlreadyAttached, child.id)
	}
	if child.pendingParent != nil && child.pendingParent != r {
		return fmt.Errorf("%w: %s", ErrWrongParent, child.id)
	}
	for p := r; p != nil; p = p.parent {
		if p == child {
			return fmt.Errorf("%w: %s", ErrCycle, child.id)
		}
	}
	child.parent = r
	child.pendingParent = nil
	child.committed = true
	r.children = append(r.children, child)
	return nil
}

// Ancestors returns r and its ancestors, nearest first.
func (r *Revision) Ancestors() []*Revision {
	var out []*Revision
	for p := r; p != nil; p = p.parent {
		out = append(out, p)
	}
	return out
}

// Path returns the revisions from the root down to r.
func (r *Revision) Path() []*Revision {
	anc := r.Ancestors()
	for i, j := 0, len(anc)-1; i < j; i, j = i+1, j-1 {
		anc[i], anc[j] = anc[j], anc[i]
	}
	return anc
}

// Depth is the number of edges between r and the root.
func (r *Revision) Depth() int {
	return len(r.Ancestors()) - 1
}

// IsAncestorOf reports whether r lies on the path from the root to other.
func (r *Revision) IsAncestorOf(other *Revision) bool {
	for p := other; p != nil; p = p.parent {
		if p == r {
			return true
		}
	}
	return false
}

// Walk visits r and its descendants depth-first, pre-order. Returning false
// from fn stops the walk.
func (r *Revision) Walk(fn func(*Revision) bool) bool {
	if !fn(r) {
		return false
	}
	for _, c := range r.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find looks up a revision by id among r and its descendants.
func (r *Revision) Find(id string) *Revision {
	var found *Revision
	r.Walk(func(rev *Revision) bool {
		if rev.id == id {
			found = rev
			return false
		}
		return true
	})
	return found
}

// CountDescendants returns the number of revisions below r.
func (r *Revision) CountDescendants() int {
	n := -1
	r.Walk(func(*Revision) bool {
		n++
		return true
	})
	return n
}

// History returns every item from the root down to r in replay order.
func (r *Revision) History() []*Item {
	var items []*Item
	for _, rev := range r.Path() {
		items = append(items, rev.items...)
	}
	return items
}

// Flatten reconstructs the full state at r by folding the items of every
// revision from the root down to r, in stored order.
func (r *Revision) Flatten(folder Folder) ([]*Item, error) {
	return folder.Fold(r.History())
}

// Serialize writes metadata and items. Tree links are persisted by the owner.
func (r *Revision) Serialize() *serial.Node {
	n := serial.New(NodeType)
	n.SetString("id", r.id)
	n.SetString("message", r.message)
	if r.author != "" {
		n.SetString("author", r.author)
	}
	n.SetInt("timestamp", r.timestamp.UnixMilli())
	for _, it := range r.items {
		n.MustAppend(it.Serialize())
	}
	return n
}

// Hash is the content address of the serialized revision.
func (r *Revision) Hash() cas.Hash {
	return cas.SumB3(r.Serialize().Bytes())
}

// Deserialize reads a pending revision written by Serialize.
func Deserialize(n *serial.Node) (*Revision, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("revision: unexpected node %q", n.Type())
	}
	id := n.GetString("id", "")
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("revision: bad id %q: %w", id, err)
	}
	r := &Revision{
		id:        id,
		message:   n.GetString("message", ""),
		author:    n.GetString("author", ""),
		timestamp: time.UnixMilli(n.GetInt("timestamp", 0)).UTC(),
	}
	for _, c := range n.Children() {
		it, err := DeserializeItem(c)
		if err != nil {
			return nil, fmt.Errorf("revision %s: %w", id, err)
		}
		r.items = append(r.items, it)
	}
	return r, nil
}
