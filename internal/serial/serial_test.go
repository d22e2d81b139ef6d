package serial

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *Node {
	root := New("project")
	root.SetString("title", "Untitled").SetInt("tempo", 120).SetBool("locked", false)
	track := root.MustAppend(New("pianoTrack"))
	track.SetString("id", "t1").SetFloat("volume", 0.75).SetBlob("state", []byte{0, 1, 2, 255})
	for i := 0; i < 3; i++ {
		note := track.MustAppend(New("note"))
		note.SetInt("key", int64(60+i)).SetFloat("beat", float64(i)*0.5).SetInt("big", math.MaxInt64-int64(i))
	}
	root.MustAppend(New("empty"))
	return root
}

func deepTree(depth int) *Node {
	root := New("level")
	cur := root
	for i := 1; i < depth; i++ {
		next := New("level")
		next.SetInt("depth", int64(i)).SetInt("neg", -int64(i)*1000)
		cur.MustAppend(next)
		cur = next
	}
	return root
}

func TestBinaryRoundTrip(t *testing.T) {
	cases := map[string]*Node{
		"sample": sampleTree(),
		"empty":  New("empty"),
		"deep":   deepTree(8),
	}
	for name, tree := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := tree.WriteTo(&buf)
			require.NoError(t, err)

			got, err := ReadFrom(&buf)
			require.NoError(t, err)
			assert.True(t, got.IsEquivalentTo(tree))
		})
	}
}

func TestDocumentMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDocument(&buf, sampleTree()))
	assert.Equal(t, "Helio2::", buf.String()[:8])

	got, err := ReadDocument(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, got.IsEquivalentTo(sampleTree()))

	corrupt := append([]byte("Helio3::"), buf.Bytes()[8:]...)
	got, err = ReadDocument(bytes.NewReader(corrupt))
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.False(t, got.IsValid())

	_, err = ReadDocument(strings.NewReader("Hel"))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestTruncatedStreamIsInvalid(t *testing.T) {
	data := sampleTree().Bytes()
	for _, cut := range []int{0, 1, len(data) / 2, len(data) - 1} {
		got, err := FromBytes(data[:cut])
		assert.ErrorIs(t, err, ErrCorrupt, "cut at %d", cut)
		assert.False(t, got.IsValid())
	}
}

func TestCompressedInt(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 255, 256, -70000, math.MaxInt64, math.MinInt64} {
		d := &decoder{r: bytes.NewReader(compressedInt(v))}
		assert.Equal(t, v, d.readCompressedInt())
		assert.NoError(t, d.err)
	}
}

func TestEquivalenceIgnoresPropertyOrder(t *testing.T) {
	a := New("x").SetInt("a", 1).SetString("b", "2")
	b := New("x").SetString("b", "2").SetInt("a", 1)
	assert.True(t, a.IsEquivalentTo(b))

	b.SetInt("a", 2)
	assert.False(t, a.IsEquivalentTo(b))

	c := New("x").SetInt("a", 1).SetString("b", "2")
	c.MustAppend(New("child"))
	assert.False(t, a.IsEquivalentTo(c))
}

func TestChildOrderMatters(t *testing.T) {
	a := New("list")
	a.MustAppend(New("one"))
	a.MustAppend(New("two"))
	b := New("list")
	b.MustAppend(New("two"))
	b.MustAppend(New("one"))
	assert.False(t, a.IsEquivalentTo(b))
}

func TestSingleParent(t *testing.T) {
	parent := New("p")
	other := New("o")
	child := New("c")
	require.NoError(t, parent.AppendChild(child))
	assert.ErrorIs(t, other.AppendChild(child), ErrHasParent)

	child.Detach()
	assert.Nil(t, child.Parent())
	assert.Equal(t, 0, parent.NumChildren())
	require.NoError(t, other.AppendChild(child))

	assert.ErrorIs(t, child.AppendChild(other), ErrCycle)
}

func TestCloneIsDetached(t *testing.T) {
	tree := sampleTree()
	track := tree.Child(0)
	clone := track.Clone()
	assert.Nil(t, clone.Parent())
	assert.True(t, clone.IsEquivalentTo(track))

	clone.SetString("id", "t2")
	assert.Equal(t, "t1", track.GetString("id", ""))
	require.NoError(t, tree.AppendChild(clone))
}

func TestXMLRoundTrip(t *testing.T) {
	tree := sampleTree()
	var buf bytes.Buffer
	require.NoError(t, tree.WriteXML(&buf))

	got, err := ReadXML(&buf)
	require.NoError(t, err)
	assert.True(t, got.IsEquivalentTo(tree))

	_, err = ReadXML(strings.NewReader("<node><property kind=\"int\" name=\"a\">x</property></node>"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestTypedGetters(t *testing.T) {
	n := New("n").SetInt("i", 7).SetFloat("f", 1.5).SetBool("b", true)
	assert.Equal(t, int64(7), n.GetInt("i", 0))
	assert.Equal(t, 7.0, n.GetFloat("i", 0))
	assert.Equal(t, 1.5, n.GetFloat("f", 0))
	assert.True(t, n.GetBool("b", false))
	assert.Equal(t, "def", n.GetString("i", "def"))
	assert.Equal(t, int64(3), n.GetInt("missing", 3))
}

func TestXMLRoundTripOfUnsafeStrings(t *testing.T) {
	for name, s := range map[string]string{
		"control":      "a\x01b",
		"invalid utf8": "\xff\xfe",
		"nul":          "x\x00y",
		"carriage":     "line\r\nnext\ttab",
		"plain":        "Grand Piano",
	} {
		t.Run(name, func(t *testing.T) {
			tree := New("n").SetString("s", s)
			var buf bytes.Buffer
			require.NoError(t, tree.WriteXML(&buf))
			got, err := ReadXML(&buf)
			require.NoError(t, err)
			assert.Equal(t, s, got.GetString("s", ""))
			assert.True(t, got.IsEquivalentTo(tree))
		})
	}
	assert.NotContains(t, New("n").SetString("s", "Grand Piano").ToXML(), "encoding=")
}

func TestUnencodableTreesFailOnWrite(t *testing.T) {
	cases := map[string]*Node{
		"nul in property name": New("n").SetInt("a\x00b", 1),
		"nul in node type":     New("a\x00b"),
		"empty node type":      New(""),
		"empty child type":     New("n").MustAppend(New("")).Parent(),
	}
	for name, tree := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			_, err := tree.WriteTo(&buf)
			assert.ErrorIs(t, err, ErrUnencodable)
			assert.ErrorIs(t, WriteDocument(&buf, tree), ErrUnencodable)
			_, err = tree.MarshalBinary()
			assert.ErrorIs(t, err, ErrUnencodable)
			assert.Nil(t, tree.Bytes())
		})
	}

	// a NUL inside a string value is fine: values are length-prefixed
	tree := New("n").SetString("s", "x\x00y")
	got, err := FromBytes(tree.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "x\x00y", got.GetString("s", ""))
}
