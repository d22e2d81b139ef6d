// Package serial implements the structured-data container every persisted
// entity of the version control engine is written as.
//
// A Node is a typed tree element with named scalar properties and an ordered
// list of exclusively owned children. Nodes can be written to a tagged binary
// stream (optionally framed by the "Helio2::" document magic) and mirrored to
// XML. Equality is structural: see IsEquivalentTo.
package serial

import (
	"errors"
	"sort"
)

var (
	// ErrHasParent is returned when attaching a node that already has a parent.
	ErrHasParent = errors.New("serial: node is already attached to a parent")
	// ErrCycle is returned when attaching a node under one of its own descendants.
	ErrCycle = errors.New("serial: attaching node would create a cycle")
)

// Node is one element of a serialized tree.
type Node struct {
	typ        string
	properties map[string]Value
	children   []*Node
	parent     *Node
}

// New creates an empty node of the given type.
func New(typ string) *Node {
	return &Node{typ: typ, properties: make(map[string]Value)}
}

// Type returns the node type tag.
func (n *Node) Type() string {
	if n == nil {
		return ""
	}
	return n.typ
}

// IsValid reports whether the node can be used. Failed reads return invalid nodes.
func (n *Node) IsValid() bool {
	return n != nil && n.typ != ""
}

// Set stores a property, replacing any previous value with the same name.
func (n *Node) Set(name string, v Value) *Node {
	n.properties[name] = v
	return n
}

func (n *Node) SetInt(name string, v int64) *Node { return n.Set(name, IntValue(v)) }
func (n *Node) SetFloat(name string, v float64) *Node { return n.Set(name, FloatValue(v)) }
func (n *Node) SetString(name string, v string) *Node { return n.Set(name, StringValue(v)) }
func (n *Node) SetBool(name string, v bool) *Node { return n.Set(name, BoolValue(v)) }
func (n *Node) SetBlob(name string, v []byte) *Node { return n.Set(name, BlobValue(v)) }

// Get returns a property by name.
func (n *Node) Get(name string) (Value, bool) {
	if n == nil {
		return Value{}, false
	}
	v, ok := n.properties[name]
	return v, ok
}

// Has reports whether the property exists.
func (n *Node) Has(name string) bool {
	_, ok := n.Get(name)
	return ok
}

func (n *Node) GetInt(name string, def int64) int64 {
	if v, ok := n.Get(name); ok {
		if i, ok := v.AsInt(); ok {
			return i
		}
	}
	return def
}

func (n *Node) GetFloat(name string, def float64) float64 {
	if v, ok := n.Get(name); ok {
		if f, ok := v.AsFloat(); ok {
			return f
		}
	}
	return def
}

func (n *Node) GetString(name string, def string) string {
	if v, ok := n.Get(name); ok {
		if s, ok := v.AsString(); ok {
			return s
		}
	}
	return def
}

func (n *Node) GetBool(name string, def bool) bool {
	if v, ok := n.Get(name); ok {
		if b, ok := v.AsBool(); ok {
			return b
		}
	}
	return def
}

func (n *Node) GetBlob(name string) []byte {
	if v, ok := n.Get(name); ok {
		if b, ok := v.AsBlob(); ok {
			return b
		}
	}
	return nil
}

// Remove deletes a property.
func (n *Node) Remove(name string) {
	delete(n.properties, name)
}

// PropertyNames returns the property names sorted, for deterministic output.
func (n *Node) PropertyNames() []string {
	names := make([]string, 0, len(n.properties))
	for name := range n.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (n *Node) NumProperties() int { return len(n.properties) }

// AppendChild takes ownership of child. A node has at most one parent, so a
// child still attached elsewhere must be detached first.
func (n *Node) AppendChild(child *Node) error {
	if child.parent != nil {
		return ErrHasParent
	}
	for p := n; p != nil; p = p.parent {
		if p == child {
			return ErrCycle
		}
	}
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// MustAppend appends a freshly created child and returns it. It panics on
// attachment errors, which can only happen for nodes that are not new.
func (n *Node) MustAppend(child *Node) *Node {
	if err := n.AppendChild(child); err != nil {
		panic(err)
	}
	return child
}

// DetachChild removes the i-th child and returns it without a parent.
func (n *Node) DetachChild(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	child := n.children[i]
	n.children = append(n.children[:i], n.children[i+1:]...)
	child.parent = nil
	return child
}

// Detach removes n from its parent, if any.
func (n *Node) Detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	for i, c := range p.children {
		if c == n {
			p.DetachChild(i)
			return
		}
	}
	n.parent = nil
}

func (n *Node) Parent() *Node { return n.parent }

func (n *Node) NumChildren() int {
	if n == nil {
		return 0
	}
	return len(n.children)
}

func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// Children returns the children in order. The slice is a copy; the nodes are not.
func (n *Node) Children() []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildOfType returns the first child with the given type.
func (n *Node) ChildOfType(typ string) *Node {
	for _, c := range n.children {
		if c.typ == typ {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy detached from any parent.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{
		typ:        n.typ,
		properties: make(map[string]Value, len(n.properties)),
		children:   make([]*Node, 0, len(n.children)),
	}
	for k, v := range n.properties {
		if v.kind == KindBlob {
			v = BlobValue(v.b)
		}
		out.properties[k] = v
	}
	for _, c := range n.children {
		cc := c.Clone()
		cc.parent = out
		out.children = append(out.children, cc)
	}
	return out
}

// IsEquivalentTo compares two trees structurally: same type, same set of
// properties regardless of order, and equivalent children in the same order.
func (n *Node) IsEquivalentTo(o *Node) bool {
	if n == nil || o == nil {
		return n == nil && o == nil
	}
	if n.typ != o.typ || len(n.properties) != len(o.properties) || len(n.children) != len(o.children) {
		return false
	}
	for k, v := range n.properties {
		ov, ok := o.properties[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	for i := range n.children {
		if !n.children[i].IsEquivalentTo(o.children[i]) {
			return false
		}
	}
	return true
}
