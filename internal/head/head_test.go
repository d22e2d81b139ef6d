package head

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/difflogic"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
)

func setup(t *testing.T) (*Head, *project.Project, *revision.Revision) {
	t.Helper()
	live := project.New()
	root := revision.NewRoot()
	return New(difflogic.NewRegistry(), live, root), live, root
}

func addTrack(t *testing.T, live *project.Project, id string, notes ...project.Note) {
	t.Helper()
	tr := project.NewPianoTrack(id)
	tr.Path = id
	tr.Notes = notes
	require.NoError(t, live.Add(tr))
}

func TestCleanHeadHasEmptyDiff(t *testing.T) {
	h, _, _ := setup(t)
	diff, err := h.Diff(context.Background())
	require.NoError(t, err)
	assert.Empty(t, diff)
	assert.False(t, h.IsDirty())
}

func TestDiffFollowsLiveChanges(t *testing.T) {
	ctx := context.Background()
	h, live, _ := setup(t)
	addTrack(t, live, "t1", project.Note{ID: "n1", Key: 60})
	assert.True(t, h.IsDirty())

	diff, err := h.Diff(ctx)
	require.NoError(t, err)
	require.Len(t, diff, 3)
	assert.Equal(t, difflogic.DeltaPath, diff[0].DeltaType())
	assert.False(t, h.IsDirty())

	require.NoError(t, live.Remove("t1"))
	diff, err = h.Diff(ctx)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestFingerprintReusesDiff(t *testing.T) {
	ctx := context.Background()
	h, live, _ := setup(t)
	addTrack(t, live, "t1")
	first, err := h.Diff(ctx)
	require.NoError(t, err)

	// A no-op update bumps the version without changing content.
	require.NoError(t, live.Update("t1", func(project.TrackedItem) error { return nil }))
	assert.True(t, h.IsDirty())
	second, err := h.Diff(ctx)
	require.NoError(t, err)
	assert.True(t, revision.EquivalentItems(first, second))
}

func TestCherryPickAndApply(t *testing.T) {
	ctx := context.Background()
	h, live, root := setup(t)
	addTrack(t, live, "t1", project.Note{ID: "n1", Key: 60})
	addTrack(t, live, "t2")

	diff, err := h.Diff(ctx)
	require.NoError(t, err)
	var picked []*revision.Item
	for _, it := range diff {
		if it.ItemID() == "t1" {
			picked = append(picked, it)
		}
	}

	rev, err := h.CherryPickAndApply(ctx, picked, "add t1", "ana")
	require.NoError(t, err)
	assert.Same(t, root, rev.Parent())
	assert.Same(t, rev, h.Revision())
	assert.True(t, rev.IsCommitted())

	after, err := h.Diff(ctx)
	require.NoError(t, err)
	for _, it := range after {
		assert.NotEqual(t, "t1", it.ItemID(), "picked items must leave the diff")
	}
	assert.NotEmpty(t, after)

	state, err := h.HeadState(ctx)
	require.NoError(t, err)
	assert.NotNil(t, state.Find("t1"))
	assert.Nil(t, state.Find("t2"))
}

func TestCherryPickRejectsForeignItems(t *testing.T) {
	ctx := context.Background()
	h, live, root := setup(t)
	addTrack(t, live, "t1")

	_, err := h.CherryPickAndApply(ctx, nil, "empty", "")
	assert.ErrorIs(t, err, ErrNothingToCommit)

	otherLive := project.New()
	addTrack(t, otherLive, "zz")
	other := New(difflogic.NewRegistry(), otherLive, revision.NewRoot())
	foreign, err := other.Diff(ctx)
	require.NoError(t, err)

	_, err = h.CherryPickAndApply(ctx, foreign, "bad", "")
	assert.ErrorIs(t, err, ErrInconsistentItems)
	assert.Same(t, root, h.Revision())
	assert.Empty(t, root.Children())
}

func TestMoveToRecomputes(t *testing.T) {
	ctx := context.Background()
	h, live, root := setup(t)
	addTrack(t, live, "t1")
	diff, err := h.Diff(ctx)
	require.NoError(t, err)
	rev, err := h.CherryPickAndApply(ctx, diff, "t1", "")
	require.NoError(t, err)

	h.MoveTo(root)
	assert.True(t, h.IsDirty())
	diff, err = h.Diff(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, diff)

	h.MoveTo(rev)
	diff, err = h.Diff(ctx)
	require.NoError(t, err)
	assert.Empty(t, diff)
}

func TestDiffCancellation(t *testing.T) {
	h, live, _ := setup(t)
	addTrack(t, live, "t1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Diff(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
