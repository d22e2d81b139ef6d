// Package stash keeps uncommitted change sets aside under a name so they can
// be re-applied later. Besides named stashes there is one quick stash slot.
//
// Stash names are never silently overwritten: stashing under an occupied
// name fails and leaves the repository unchanged.
package stash

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/javanhut/helio-vcs/internal/keys"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// QuickStashName is the name reported for the quick stash slot.
const QuickStashName = "quick"

// NodeType is the serialized node type of a stash repository.
const NodeType = "stashes"

var (
	ErrNameTaken  = errors.New("stash name already in use")
	ErrNotFound   = errors.New("stash not found")
	ErrEmptyName  = errors.New("stash name is empty")
	ErrNoItems    = errors.New("nothing to stash")
	errBadPayload = errors.New("stash: malformed payload")
)

// Stash is a detached, uncommitted change set.
type Stash struct {
	Name      string
	Message   string
	CreatedAt time.Time
	Items     []*revision.Item
}

func (s *Stash) copy() *Stash {
	c := *s
	c.Items = revision.CopyItems(s.Items)
	return &c
}

// Repository holds named stashes and the quick stash.
type Repository struct {
	mu      sync.Mutex
	stashes map[string]*Stash
	quick   *Stash
	now     func() time.Time
}

type Option func(*Repository)

// WithClock sets the source of stash creation times.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func NewRepository(opts ...Option) *Repository {
	r := &Repository{stashes: make(map[string]*Stash), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Stash stores a copy of items under name.
func (r *Repository) Stash(name, message string, items []*revision.Item) error {
	if name == "" {
		return ErrEmptyName
	}
	if len(items) == 0 {
		return ErrNoItems
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.stashes[name]; ok || name == QuickStashName {
		return fmt.Errorf("%w: %s", ErrNameTaken, name)
	}
	r.stashes[name] = &Stash{Name: name, Message: message, CreatedAt: r.now().UTC(), Items: revision.CopyItems(items)}
	return nil
}

// Pop removes and returns a named stash.
func (r *Repository) Pop(name string) (*Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stashes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.stashes, name)
	return s, nil
}

// Peek returns a copy of a named stash without removing it.
func (r *Repository) Peek(name string) (*Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == QuickStashName && r.quick != nil {
		return r.quick.copy(), nil
	}
	s, ok := r.stashes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.copy(), nil
}

func (r *Repository) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stashes[name]
	return ok
}

// Names lists the named stashes in lexical order.
func (r *Repository) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.stashes))
	for n := range r.stashes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len counts named stashes and the quick stash.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.stashes)
	if r.quick != nil {
		n++
	}
	return n
}

// QuickStash fills the quick stash slot. An occupied slot is an error.
func (r *Repository) QuickStash(items []*revision.Item) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quick != nil {
		return fmt.Errorf("%w: %s", ErrNameTaken, QuickStashName)
	}
	r.quick = &Stash{Name: QuickStashName, CreatedAt: r.now().UTC(), Items: revision.CopyItems(items)}
	return nil
}

func (r *Repository) PopQuick() (*Stash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.quick == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, QuickStashName)
	}
	s := r.quick
	r.quick = nil
	return s, nil
}

func (r *Repository) HasQuick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quick != nil
}

// GenerateName returns an unused phrase like "ember-willow-042".
func (r *Repository) GenerateName() string {
	return keys.GenerateUniquePhrase(func(p string) bool { return r.Has(p) }, 2, 3)
}

func serializeStash(s *Stash, quick bool) *serial.Node {
	n := serial.New("stash").
		SetString("name", s.Name).
		SetString("message", s.Message).
		SetInt("createdAt", s.CreatedAt.UnixMilli())
	if quick {
		n.SetBool("quick", true)
	}
	for _, it := range s.Items {
		n.MustAppend(it.Serialize())
	}
	return n
}

// Serialize writes every stash; named stashes are written in name order.
func (r *Repository) Serialize() *serial.Node {
	n := serial.New(NodeType)
	r.mu.Lock()
	quick := r.quick
	r.mu.Unlock()
	for _, name := range r.Names() {
		if s, err := r.Peek(name); err == nil {
			n.MustAppend(serializeStash(s, false))
		}
	}
	if quick != nil {
		n.MustAppend(serializeStash(quick, true))
	}
	return n
}

// Deserialize reads a repository written by Serialize.
func Deserialize(n *serial.Node, opts ...Option) (*Repository, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("%w: unexpected node %q", errBadPayload, n.Type())
	}
	r := NewRepository(opts...)
	for _, c := range n.Children() {
		s := &Stash{
			Name:      c.GetString("name", ""),
			Message:   c.GetString("message", ""),
			CreatedAt: time.UnixMilli(c.GetInt("createdAt", 0)).UTC(),
		}
		for _, in := range c.Children() {
			it, err := revision.DeserializeItem(in)
			if err != nil {
				return nil, fmt.Errorf("stash %s: %w", s.Name, err)
			}
			s.Items = append(s.Items, it)
		}
		if c.GetBool("quick", false) {
			r.quick = s
			continue
		}
		if s.Name == "" {
			return nil, fmt.Errorf("%w: stash without name", errBadPayload)
		}
		r.stashes[s.Name] = s
	}
	return r, nil
}
