package remote

import (
	"context"
	"fmt"

	"github.com/javanhut/helio-vcs/internal/pack"
	"github.com/javanhut/helio-vcs/internal/serial"
)

const listingObjectID = "listing"

// Export writes the whole registry as a bundle: the listing first, then
// every payload parent-first.
func (m *MemoryRemote) Export(ctx context.Context) ([]byte, error) {
	revs, err := m.List(ctx)
	if err != nil {
		return nil, err
	}
	jobs := []pack.Job{{Type: pack.ObjListing, ID: listingObjectID, Node: encodeListing(revs)}}
	for _, r := range revs {
		payload, err := m.Fetch(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, pack.Job{Type: pack.ObjRevision, ID: r.ID, Node: payload})
	}
	return pack.WriteBundleConcurrent(jobs, 0)
}

// Import pushes every revision of an exported bundle. Revisions already
// present are left untouched.
func (m *MemoryRemote) Import(ctx context.Context, data []byte) (int, error) {
	revs, payloads, err := readExport(data)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range revs {
		payload, ok := payloads[r.ID]
		if !ok {
			return n, fmt.Errorf("%w: bundle lacks payload %s", ErrNotFound, r.ID)
		}
		if err := m.Push(ctx, r, payload); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func readExport(data []byte) ([]RemoteRevision, map[string]*serial.Node, error) {
	objs, err := pack.ReadBundle(data)
	if err != nil {
		return nil, nil, err
	}
	var revs []RemoteRevision
	payloads := make(map[string]*serial.Node, len(objs))
	for _, o := range objs {
		n, err := pack.Decode(o.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("decode %s: %w", o.ID, err)
		}
		switch o.Type {
		case pack.ObjListing:
			if revs, err = decodeListing(n); err != nil {
				return nil, nil, err
			}
		case pack.ObjRevision:
			payloads[o.ID] = n
		}
	}
	return SortParentFirst(revs), payloads, nil
}
