// Package project holds the live, editable sequencer project that the version
// control engine snapshots, diffs and rewrites.
//
// A Project is a concurrent container of tracked items keyed by id. Every
// successful mutation bumps Version so observers can tell whether cached
// diffs are still current.
package project

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/javanhut/helio-vcs/internal/serial"
)

// NodeType is the serialized node type of a project document.
const NodeType = "project"

var (
	ErrUnknownType = errors.New("project: unknown item type")
	ErrDuplicateID = errors.New("project: duplicate item id")
	ErrNotFound    = errors.New("project: item not found")
	ErrSingleton   = errors.New("project: singleton items cannot be removed")
)

// Project is the live project state.
type Project struct {
	mu      sync.RWMutex
	items   []TrackedItem
	version uint64
}

// New creates a project holding only the info and timeline singletons.
func New() *Project {
	return &Project{items: []TrackedItem{NewInfo(), NewTimeline()}}
}

func isSingleton(id string) bool {
	return id == InfoID || id == TimelineID
}

func (p *Project) indexOf(id string) int {
	for i, it := range p.items {
		if it.ID() == id {
			return i
		}
	}
	return -1
}

// Version is a counter bumped by every mutation.
func (p *Project) Version() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.version
}

func (p *Project) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

// Add appends an item. The project takes ownership of it.
func (p *Project) Add(item TrackedItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.indexOf(item.ID()) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID())
	}
	p.items = append(p.items, item)
	p.version++
	return nil
}

// Remove deletes an item by id.
func (p *Project) Remove(id string) error {
	if isSingleton(id) {
		return ErrSingleton
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	p.version++
	return nil
}

// Find returns a copy of the item with the given id, or nil.
func (p *Project) Find(id string) TrackedItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i := p.indexOf(id); i >= 0 {
		return p.items[i].Clone()
	}
	return nil
}

// Update mutates an existing item in place.
func (p *Project) Update(id string, fn func(TrackedItem) error) error {
	return p.Modify(id, func(cur TrackedItem) (TrackedItem, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err := fn(cur); err != nil {
			return nil, err
		}
		return cur, nil
	})
}

// Modify runs fn on the item with the given id (nil when absent) under the
// write lock and stores what it returns: a nil result removes the item, a
// new item is appended. Nothing changes when fn fails.
func (p *Project) Modify(id string, fn func(cur TrackedItem) (TrackedItem, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.indexOf(id)
	var cur TrackedItem
	if i >= 0 {
		cur = p.items[i].Clone()
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	switch {
	case next == nil && i >= 0:
		if isSingleton(id) {
			return ErrSingleton
		}
		p.items = append(p.items[:i], p.items[i+1:]...)
	case next == nil:
		return nil
	case next.ID() != id:
		return fmt.Errorf("project: modify of %s returned item %s", id, next.ID())
	case i >= 0:
		p.items[i] = next
	default:
		p.items = append(p.items, next)
	}
	p.version++
	return nil
}

// Items returns deep copies of all items in project order.
func (p *Project) Items() []TrackedItem {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]TrackedItem, len(p.items))
	for i, it := range p.items {
		out[i] = it.Clone()
	}
	return out
}

func (p *Project) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.items))
	for i, it := range p.items {
		out[i] = it.ID()
	}
	return out
}

// Snapshot returns an independent deep copy.
func (p *Project) Snapshot() *Project {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := &Project{items: make([]TrackedItem, len(p.items)), version: p.version}
	for i, it := range p.items {
		s.items[i] = it.Clone()
	}
	return s
}

// Reset replaces the whole content. Missing singletons are recreated.
func (p *Project) Reset(items []TrackedItem) {
	next := make([]TrackedItem, 0, len(items)+2)
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.ID()] {
			continue
		}
		seen[it.ID()] = true
		next = append(next, it.Clone())
	}
	if !seen[InfoID] {
		next = append([]TrackedItem{NewInfo()}, next...)
	}
	if !seen[TimelineID] {
		next = append(next, NewTimeline())
	}
	p.mu.Lock()
	p.items = next
	p.version++
	p.mu.Unlock()
}

// Equivalent reports whether both projects hold equivalent items, ignoring
// item order.
func (p *Project) Equivalent(o *Project) bool {
	a, b := p.Items(), o.Items()
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]TrackedItem, len(b))
	for _, it := range b {
		byID[it.ID()] = it
	}
	for _, it := range a {
		if !Equivalent(it, byID[it.ID()]) {
			return false
		}
	}
	return true
}

// Serialize writes every item in project order.
func (p *Project) Serialize() *serial.Node {
	n := serial.New(NodeType)
	for _, it := range p.Items() {
		n.MustAppend(it.Serialize())
	}
	return n
}

// Deserialize reads a project written by Serialize.
func Deserialize(n *serial.Node) (*Project, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("project: unexpected node %q", n.Type())
	}
	items := make([]TrackedItem, 0, n.NumChildren())
	seen := make(map[string]bool)
	for _, c := range n.Children() {
		it, err := DeserializeItem(c)
		if err != nil {
			return nil, err
		}
		if seen[it.ID()] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, it.ID())
		}
		seen[it.ID()] = true
		items = append(items, it)
	}
	p := &Project{}
	p.Reset(items)
	p.version = 0
	return p, nil
}

// Save writes the project as a binary document.
func (p *Project) Save(w io.Writer) error {
	return serial.WriteDocument(w, p.Serialize())
}

// Load reads a binary document written by Save.
func Load(r io.Reader) (*Project, error) {
	n, err := serial.ReadDocument(r)
	if err != nil {
		return nil, fmt.Errorf("could not open project: %w", err)
	}
	return Deserialize(n)
}
