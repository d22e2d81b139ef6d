// Package delta defines the typed, opaque state fragments revisions are made of.
//
// A Delta never knows how to interpret its payload: the diff logic registered
// for the owning item kind does. The description exists for display only and
// takes no part in equality or diffing.
package delta

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// NodeType is the serialized node type of a delta.
const NodeType = "delta"

const (
	propName   = "name"
	propCount  = "count"
	propParam  = "param"
	propTypeID = "typeId"
)

// ErrNoType is returned when a serialized delta carries neither a payload nor a type id.
var ErrNoType = errors.New("delta: cannot infer delta type")

// Description is the human-readable label of a delta, e.g. "{n} notes changed".
type Description struct {
	Text  string
	Count int64
	Param string
}

// NewDescription creates a description with a count placeholder value.
func NewDescription(text string, count int64) Description {
	return Description{Text: text, Count: count}
}

// String renders the description, substituting {n} with the count and {s} with the parameter.
func (d Description) String() string {
	s := strings.ReplaceAll(d.Text, "{n}", strconv.FormatInt(d.Count, 10))
	return strings.ReplaceAll(s, "{s}", d.Param)
}

// Delta is a named, typed fragment of tracked state.
type Delta struct {
	typ         string
	description Description
	payload     *serial.Node
}

// New creates a delta. The payload is owned by the delta from now on; a
// payload attached to another tree is cloned instead.
func New(typ string, description Description, payload *serial.Node) *Delta {
	if payload != nil && payload.Parent() != nil {
		payload = payload.Clone()
	}
	return &Delta{typ: typ, description: description, payload: payload}
}

func (d *Delta) Type() string { return d.typ }
func (d *Delta) Description() Description { return d.description }

// Payload returns the state fragment. Callers must not mutate it; use Copy
// when a mutable fragment is needed.
func (d *Delta) Payload() *serial.Node { return d.payload }

// Copy returns a value-equivalent, independently owned delta.
func (d *Delta) Copy() *Delta {
	return &Delta{typ: d.typ, description: d.description, payload: d.payload.Clone()}
}

// Equivalent compares type and payload; descriptions are ignored.
func (d *Delta) Equivalent(o *Delta) bool {
	if d == nil || o == nil {
		return d == nil && o == nil
	}
	return d.typ == o.typ && d.payload.IsEquivalentTo(o.payload)
}

// Fingerprint returns the content hash of the payload.
func (d *Delta) Fingerprint() cas.Hash {
	if d.payload == nil {
		return cas.SumB3([]byte(d.typ))
	}
	return cas.SumB3(append([]byte(d.typ+"\x00"), d.payload.Bytes()...))
}

// Serialize writes the delta. The payload is the sole child and its node type
// is the delta type, so the type is only written explicitly when there is no payload.
func (d *Delta) Serialize() *serial.Node {
	n := serial.New(NodeType)
	n.SetString(propName, d.description.Text)
	if d.description.Count != 0 {
		n.SetInt(propCount, d.description.Count)
	}
	if d.description.Param != "" {
		n.SetString(propParam, d.description.Param)
	}
	if d.payload == nil {
		n.SetString(propTypeID, d.typ)
		return n
	}
	n.MustAppend(d.payload.Clone())
	return n
}

// Deserialize reads a delta written by Serialize.
func Deserialize(n *serial.Node) (*Delta, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("delta: unexpected node %q", n.Type())
	}
	d := &Delta{
		description: Description{
			Text:  n.GetString(propName, ""),
			Count: n.GetInt(propCount, 0),
			Param: n.GetString(propParam, ""),
		},
	}
	switch n.NumChildren() {
	case 0:
		d.typ = n.GetString(propTypeID, "")
		if d.typ == "" {
			return nil, ErrNoType
		}
	case 1:
		d.payload = n.Child(0).Clone()
		d.typ = d.payload.Type()
	default:
		return nil, fmt.Errorf("delta: expected one payload child, got %d", n.NumChildren())
	}
	return d, nil
}
