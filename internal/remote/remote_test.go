package remote

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

func chain(t *testing.T, n int) []*revision.Revision {
	t.Helper()
	root := revision.NewRoot()
	revs := []*revision.Revision{root}
	for i := 1; i < n; i++ {
		c := revs[i-1].CreateChild("step", "tester")
		require.NoError(t, revs[i-1].AttachChild(c))
		revs = append(revs, c)
	}
	return revs
}

func metaOf(r *revision.Revision) (RemoteRevision, *serial.Node) {
	payload := r.Serialize()
	meta := RemoteRevision{ID: r.ID(), Timestamp: r.Timestamp(), Hash: PayloadHash(payload)}
	if p := r.Parent(); p != nil {
		meta.ParentID = p.ID()
	}
	return meta, payload
}

func pushAll(t *testing.T, tr Transport, revs []*revision.Revision) {
	t.Helper()
	for _, r := range revs {
		meta, payload := metaOf(r)
		require.NoError(t, tr.Push(context.Background(), meta, payload))
	}
}

func TestSortParentFirst(t *testing.T) {
	base := time.Unix(100, 0)
	revs := []RemoteRevision{
		{ID: "c", ParentID: "b", Timestamp: base},
		{ID: "b", ParentID: "a", Timestamp: base.Add(time.Second)},
		{ID: "a", Timestamp: base.Add(2 * time.Second)},
		{ID: "orphan", ParentID: "missing", Timestamp: base},
	}
	got := SortParentFirst(revs)
	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"orphan", "a", "b", "c"}, ids)
}

func TestMemoryRemotePushAndFetch(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemote(nil)
	revs := chain(t, 3)
	pushAll(t, m, revs)

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, revs[0].ID(), list[0].ID)
	assert.True(t, list[0].IsRoot())

	payload, err := m.Fetch(ctx, revs[2].ID())
	require.NoError(t, err)
	assert.True(t, payload.IsEquivalentTo(revs[2].Serialize()))

	// identical re-push is accepted
	meta, p := metaOf(revs[1])
	assert.NoError(t, m.Push(ctx, meta, p))
}

func TestMemoryRemoteRejects(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRemote(nil)
	revs := chain(t, 2)

	meta, payload := metaOf(revs[1])
	assert.ErrorIs(t, m.Push(ctx, meta, payload), ErrUnknownParent)

	rootMeta, rootPayload := metaOf(revs[0])
	bad := rootMeta
	bad.Hash[0] ^= 0xFF
	assert.ErrorIs(t, m.Push(ctx, bad, rootPayload), ErrHashMismatch)

	require.NoError(t, m.Push(ctx, rootMeta, rootPayload))
	otherRoot, otherPayload := metaOf(revision.NewRoot())
	assert.ErrorIs(t, m.Push(ctx, otherRoot, otherPayload), ErrConflict)

	_, err := m.Fetch(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, m.Len())
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryRemote(nil)
	revs := chain(t, 4)
	pushAll(t, src, revs)

	data, err := src.Export(ctx)
	require.NoError(t, err)

	dst := NewMemoryRemote(nil)
	n, err := dst.Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	for _, r := range revs {
		meta, ok := dst.Lookup(r.ID())
		require.True(t, ok)
		want, _ := src.Lookup(r.ID())
		assert.Equal(t, want, meta)
	}
}

func newHTTP(t *testing.T) (*MemoryRemote, *HTTPTransport) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := NewMemoryRemote(nil)
	srv := httptest.NewServer(NewServer(backend).Handler())
	t.Cleanup(srv.Close)
	return backend, NewHTTPTransport(srv.URL, srv.Client())
}

func TestHTTPTransportRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend, tr := newHTTP(t)
	revs := chain(t, 3)
	pushAll(t, tr, revs)
	assert.Equal(t, 3, backend.Len())

	list, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, r := range list {
		assert.Equal(t, revs[i].ID(), r.ID)
		assert.Equal(t, revs[i].Timestamp().UnixMilli(), r.Timestamp.UnixMilli())
	}

	payload, err := tr.Fetch(ctx, revs[1].ID())
	require.NoError(t, err)
	got, err := revision.Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, revs[1].ID(), got.ID())
	assert.Equal(t, "step", got.Message())

	all, err := tr.FetchAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHTTPTransportErrors(t *testing.T) {
	ctx := context.Background()
	_, tr := newHTTP(t)

	_, err := tr.Fetch(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	revs := chain(t, 2)
	meta, payload := metaOf(revs[1])
	assert.ErrorIs(t, tr.Push(ctx, meta, payload), ErrUnknownParent)

	rootMeta, rootPayload := metaOf(revs[0])
	rootMeta.Hash[3] ^= 1
	assert.ErrorIs(t, tr.Push(ctx, rootMeta, rootPayload), ErrHashMismatch)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(NewMemoryRemote(nil))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
