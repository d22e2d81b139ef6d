package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/delta"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

func init() { colors.SetColorEnabled(false) }

func pathItem(ct revision.ChangeType, id, path string) *revision.Item {
	payload := serial.New("path").SetString("value", path)
	return revision.NewItem(ct, id, "PianoTrack", delta.New("path", delta.NewDescription("path of {n} track", 1), payload))
}

func TestItemsGroupsById(t *testing.T) {
	var buf bytes.Buffer
	Items(&buf, []*revision.Item{
		pathItem(revision.Added, "t1", "lead"),
		pathItem(revision.Added, "t2", "bass"),
		pathItem(revision.Changed, "t1", "lead 2"),
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "A  PianoTrack t1")
	assert.Contains(t, lines[1], "M  PianoTrack t1")
	assert.Contains(t, lines[2], "t2")
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "no changes", Summary(nil))
	assert.Equal(t, "2 added, 1 removed", Summary([]*revision.Item{
		pathItem(revision.Added, "a", "x"),
		pathItem(revision.Removed, "b", "y"),
		pathItem(revision.Added, "c", "z"),
	}))
}

func TestItemPatch(t *testing.T) {
	added, err := ItemPatch(pathItem(revision.Added, "t1", "lead"), nil)
	require.NoError(t, err)
	assert.Contains(t, added, "--- /dev/null")
	assert.Contains(t, added, "+++ b/t1/path")
	assert.Contains(t, added, `+`)
	assert.Contains(t, added, "lead")

	removed, err := ItemPatch(pathItem(revision.Removed, "t1", "lead"), nil)
	require.NoError(t, err)
	assert.Contains(t, removed, "+++ /dev/null")

	prev := func(*revision.Item) *serial.Node { return serial.New("path").SetString("value", "old") }
	changed, err := ItemPatch(pathItem(revision.Changed, "t1", "new"), prev)
	require.NoError(t, err)
	assert.Contains(t, changed, "--- a/t1/path")
	assert.Contains(t, changed, "old")
	assert.Contains(t, changed, "new")
}

func TestLogMarksHead(t *testing.T) {
	root := revision.NewRoot()
	var buf bytes.Buffer
	Log(&buf, []*revision.Revision{root}, root.ID())
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "*"))
	assert.Contains(t, out, root.ID()[:8])
	assert.Contains(t, out, "(root)")
}
