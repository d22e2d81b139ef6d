package remote

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// MemoryRemote is an in-process revision registry. Metadata lives in a
// concurrent map; payload bytes live in a content-addressed store.
type MemoryRemote struct {
	revisions *xsync.MapOf[string, RemoteRevision]
	blobs     cas.CAS

	// pushMu serializes the parent and root checks of concurrent pushes.
	pushMu sync.Mutex
	root   string
}

// NewMemoryRemote creates an empty registry. A nil store uses a MemoryCAS.
func NewMemoryRemote(blobs cas.CAS) *MemoryRemote {
	if blobs == nil {
		blobs = cas.NewMemoryCAS()
	}
	return &MemoryRemote{
		revisions: xsync.NewMapOf[string, RemoteRevision](),
		blobs:     blobs,
	}
}

func (m *MemoryRemote) List(ctx context.Context) ([]RemoteRevision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []RemoteRevision
	m.revisions.Range(func(_ string, r RemoteRevision) bool {
		out = append(out, r)
		return true
	})
	return SortParentFirst(out), nil
}

func (m *MemoryRemote) Fetch(ctx context.Context, id string) (*serial.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	meta, ok := m.revisions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	data, err := m.blobs.Get(meta.Hash)
	if err != nil {
		return nil, fmt.Errorf("load payload %s: %w", id, err)
	}
	return serial.FromBytes(data)
}

// Lookup returns the metadata of one revision.
func (m *MemoryRemote) Lookup(id string) (RemoteRevision, bool) {
	return m.revisions.Load(id)
}

func (m *MemoryRemote) Len() int { return m.revisions.Size() }

// Push stores a revision after checking its hash, its parent and, for a
// root, that the remote has no other root. Re-pushing an identical revision
// is a no-op.
func (m *MemoryRemote) Push(ctx context.Context, meta RemoteRevision, payload *serial.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := payload.MarshalBinary()
	if err != nil {
		return err
	}
	if meta.Hash.IsZero() {
		meta.Hash = cas.SumB3(data)
	}
	if err := Verify(meta, payload); err != nil {
		return err
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.UnixMilli(payload.GetInt("timestamp", 0))
	}
	meta.Timestamp = time.UnixMilli(meta.Timestamp.UnixMilli()).UTC()

	m.pushMu.Lock()
	defer m.pushMu.Unlock()

	if existing, ok := m.revisions.Load(meta.ID); ok {
		if existing.Hash == meta.Hash && existing.ParentID == meta.ParentID {
			return nil
		}
		return fmt.Errorf("%w: %s already stored with different content", ErrConflict, meta.ID)
	}
	if meta.ParentID == "" {
		if m.root != "" && m.root != meta.ID {
			return fmt.Errorf("%w: remote already has root %s", ErrConflict, m.root)
		}
	} else if _, ok := m.revisions.Load(meta.ParentID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParent, meta.ParentID)
	}

	if err := m.blobs.Put(meta.Hash, data); err != nil {
		return fmt.Errorf("store payload %s: %w", meta.ID, err)
	}
	m.revisions.Store(meta.ID, meta)
	if meta.ParentID == "" {
		m.root = meta.ID
	}
	return nil
}

var _ Transport = (*MemoryRemote)(nil)
