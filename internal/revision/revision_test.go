package revision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/serial"
)

func pathItem(ct ChangeType, id, name string) *Item {
	p := serial.New("path").SetString("name", name)
	return NewItem(ct, id, "PianoTrack", delta.New("path", delta.NewDescription("path {s}", 0), p))
}

// concatFolder returns the history unchanged.
type concatFolder struct{}

func (concatFolder) Fold(items []*Item) ([]*Item, error) { return items, nil }

func TestChangeTypeInverse(t *testing.T) {
	assert.Equal(t, Removed, Added.Inverse())
	assert.Equal(t, Added, Removed.Inverse())
	assert.Equal(t, Changed, Changed.Inverse())

	for _, ct := range []ChangeType{Added, Removed, Changed} {
		got, err := ParseChangeType(ct.String())
		require.NoError(t, err)
		assert.Equal(t, ct, got)
	}
	_, err := ParseChangeType("moved")
	assert.Error(t, err)
}

func TestItemRoundTrip(t *testing.T) {
	it := pathItem(Added, "t1", "Lead")
	got, err := DeserializeItem(it.Serialize())
	require.NoError(t, err)
	assert.True(t, got.Equivalent(it))
	assert.Equal(t, "t1/path/added", got.Key())

	_, err = DeserializeItem(serial.New(ItemNodeType).SetString("changeType", "added"))
	assert.Error(t, err)
}

func TestAttachChild(t *testing.T) {
	root := NewRoot()
	child := root.CreateChild("first", "ana")
	require.NoError(t, child.AddItem(pathItem(Added, "t1", "Lead")))
	require.NoError(t, root.AttachChild(child))

	assert.Same(t, root, child.Parent())
	assert.True(t, child.IsCommitted())
	assert.ErrorIs(t, child.AddItem(pathItem(Changed, "t1", "Bass")), ErrFrozen)
	assert.ErrorIs(t, root.AttachChild(child), ErrAlreadyAttached)

	other := New("second", "ana")
	require.NoError(t, child.AttachChild(other))
	assert.Equal(t, 2, other.Depth())
	assert.Equal(t, 2, root.CountDescendants())
	assert.True(t, root.IsAncestorOf(other))
	assert.False(t, other.IsAncestorOf(root))
}

func TestAttachRejectsWrongParentAndCycles(t *testing.T) {
	root := NewRoot()
	a := root.CreateChild("a", "")
	b := New("b", "")
	assert.ErrorIs(t, b.AttachChild(a), ErrWrongParent)

	// A detached subtree cannot be hung below one of its own descendants.
	top := New("top", "")
	mid := top.CreateChild("mid", "")
	require.NoError(t, top.AttachChild(mid))
	assert.ErrorIs(t, mid.AttachChild(top), ErrCycle)
}

func TestFlattenOrder(t *testing.T) {
	root := NewRoot()
	a := root.CreateChild("a", "")
	require.NoError(t, a.AddItem(pathItem(Added, "t1", "one")))
	require.NoError(t, a.AddItem(pathItem(Added, "t2", "two")))
	require.NoError(t, root.AttachChild(a))
	b := a.CreateChild("b", "")
	require.NoError(t, b.AddItem(pathItem(Changed, "t1", "three")))
	require.NoError(t, a.AttachChild(b))

	items, err := b.Flatten(concatFolder{})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "t1", items[0].ItemID())
	assert.Equal(t, "t2", items[1].ItemID())
	assert.Equal(t, Changed, items[2].ChangeType())

	assert.Equal(t, []*Revision{root, a, b}, b.Path())
	assert.Same(t, b, root.Find(b.ID()))
	assert.Nil(t, root.Find("missing"))
}

func TestRevisionRoundTrip(t *testing.T) {
	r := New("add lead", "ana")
	require.NoError(t, r.AddItem(pathItem(Added, "t1", "Lead")))
	require.NoError(t, r.AddItem(pathItem(Changed, "t2", "Bass")))

	data := r.Serialize().Bytes()
	n, err := serial.FromBytes(data)
	require.NoError(t, err)
	got, err := Deserialize(n)
	require.NoError(t, err)

	assert.Equal(t, r.ID(), got.ID())
	assert.Equal(t, r.Message(), got.Message())
	assert.Equal(t, r.Author(), got.Author())
	assert.Equal(t, r.Timestamp().UnixMilli(), got.Timestamp().UnixMilli())
	assert.True(t, EquivalentItems(r.Items(), got.Items()))
	assert.Equal(t, r.Hash(), got.Hash())
	assert.False(t, got.IsCommitted())
}

func TestDeserializeRejectsBadID(t *testing.T) {
	n := serial.New(NodeType).SetString("id", "not-a-uuid")
	_, err := Deserialize(n)
	assert.Error(t, err)
}
