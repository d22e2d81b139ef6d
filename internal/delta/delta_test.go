package delta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/serial"
)

func notesPayload() *serial.Node {
	p := serial.New("notes")
	p.MustAppend(serial.New("note")).SetString("id", "n1").SetInt("key", 60)
	return p
}

func TestDescriptionString(t *testing.T) {
	d := Description{Text: "{n} notes changed in {s}", Count: 12, Param: "Piano"}
	assert.Equal(t, "12 notes changed in Piano", d.String())
	assert.Equal(t, "path changed", NewDescription("path changed", 0).String())
}

func TestSerializeInfersTypeFromPayload(t *testing.T) {
	d := New("notes", NewDescription("{n} notes added", 1), notesPayload())
	n := d.Serialize()
	assert.False(t, n.Has(propTypeID))
	require.Equal(t, 1, n.NumChildren())

	got, err := Deserialize(n)
	require.NoError(t, err)
	assert.Equal(t, "notes", got.Type())
	assert.Equal(t, d.Description(), got.Description())
	assert.True(t, got.Equivalent(d))
}

func TestSerializeWithoutPayload(t *testing.T) {
	d := New("instrument", NewDescription("instrument removed", 0), nil)
	got, err := Deserialize(d.Serialize())
	require.NoError(t, err)
	assert.Equal(t, "instrument", got.Type())
	assert.Nil(t, got.Payload())

	_, err = Deserialize(serial.New(NodeType))
	assert.ErrorIs(t, err, ErrNoType)

	_, err = Deserialize(serial.New("revision"))
	assert.Error(t, err)
}

func TestCopyIsIndependent(t *testing.T) {
	d := New("notes", Description{}, notesPayload())
	c := d.Copy()
	assert.True(t, c.Equivalent(d))
	c.Payload().Child(0).SetInt("key", 61)
	assert.False(t, c.Equivalent(d))
	assert.NotEqual(t, c.Fingerprint(), d.Fingerprint())
}

func TestNewClonesAttachedPayload(t *testing.T) {
	parent := serial.New("holder")
	payload := parent.MustAppend(notesPayload())
	d := New("notes", Description{}, payload)
	assert.Nil(t, d.Payload().Parent())
	assert.Equal(t, 1, parent.NumChildren())
}

func TestDescriptionIgnoredByEquivalence(t *testing.T) {
	a := New("notes", NewDescription("a", 1), notesPayload())
	b := New("notes", NewDescription("b", 2), notesPayload())
	assert.True(t, a.Equivalent(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}
