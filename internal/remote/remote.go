// Package remote moves revision payloads between a local tree and a remote
// revision registry. Payloads travel as opaque serialized trees; the remote
// only tracks each revision's parent, timestamp and content hash.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/serial"
)

var (
	ErrNotFound = errors.New("remote: revision not found")
	// ErrHashMismatch is returned when a payload does not match its advertised hash.
	ErrHashMismatch = errors.New("remote: payload hash mismatch")
	// ErrUnknownParent is returned when pushing a revision before its parent.
	ErrUnknownParent = errors.New("remote: parent revision unknown")
	// ErrConflict is returned when a pushed revision contradicts the remote tree.
	ErrConflict = errors.New("remote: conflicting revision")
)

// RemoteRevision describes a revision stored on the remote.
type RemoteRevision struct {
	ID        string
	ParentID  string
	Timestamp time.Time
	Hash      cas.Hash
}

func (r RemoteRevision) IsRoot() bool { return r.ParentID == "" }

// Transport is the narrow interface the version control engine syncs through.
type Transport interface {
	// List returns every revision the remote knows about.
	List(ctx context.Context) ([]RemoteRevision, error)
	// Fetch returns the serialized payload of one revision.
	Fetch(ctx context.Context, id string) (*serial.Node, error)
	// Push uploads one revision. The parent must already be on the remote.
	Push(ctx context.Context, meta RemoteRevision, payload *serial.Node) error
}

// BulkFetcher is implemented by transports that can return many payloads in
// one round trip.
type BulkFetcher interface {
	FetchAll(ctx context.Context) (map[string]*serial.Node, error)
}

// PayloadHash is the content address of a payload.
func PayloadHash(payload *serial.Node) cas.Hash {
	return cas.SumB3(payload.Bytes())
}

// Verify checks that payload matches the advertised hash and revision id.
func Verify(meta RemoteRevision, payload *serial.Node) error {
	if !payload.IsValid() {
		return fmt.Errorf("%w: invalid payload for %s", ErrHashMismatch, meta.ID)
	}
	if got := PayloadHash(payload); got != meta.Hash {
		return fmt.Errorf("%w: %s: want %s, got %s", ErrHashMismatch, meta.ID, meta.Hash.Short(), got.Short())
	}
	if id := payload.GetString("id", ""); id != meta.ID {
		return fmt.Errorf("%w: payload id %q does not match %q", ErrHashMismatch, id, meta.ID)
	}
	return nil
}

// SortParentFirst orders revisions so that every parent precedes its
// children. Revisions whose parent is missing from the list keep their
// relative order after the connected ones.
func SortParentFirst(revs []RemoteRevision) []RemoteRevision {
	out := make([]RemoteRevision, 0, len(revs))
	sorted := append([]RemoteRevision(nil), revs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})

	children := make(map[string][]RemoteRevision)
	ids := make(map[string]bool, len(sorted))
	for _, r := range sorted {
		ids[r.ID] = true
	}
	var roots []RemoteRevision
	for _, r := range sorted {
		if r.ParentID == "" || !ids[r.ParentID] {
			roots = append(roots, r)
			continue
		}
		children[r.ParentID] = append(children[r.ParentID], r)
	}
	queue := roots
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		out = append(out, r)
		queue = append(queue, children[r.ID]...)
	}
	return out
}

const listingNodeType = "revisions"

// encodeListing writes revision metadata as a serialized tree.
func encodeListing(revs []RemoteRevision) *serial.Node {
	n := serial.New(listingNodeType)
	for _, r := range revs {
		c := n.MustAppend(serial.New("remoteRevision")).
			SetString("id", r.ID).
			SetInt("timestamp", r.Timestamp.UnixMilli()).
			SetString("hash", r.Hash.String())
		if r.ParentID != "" {
			c.SetString("parent", r.ParentID)
		}
	}
	return n
}

func decodeListing(n *serial.Node) ([]RemoteRevision, error) {
	if !n.IsValid() || n.Type() != listingNodeType {
		return nil, fmt.Errorf("remote: unexpected listing node %q", n.Type())
	}
	out := make([]RemoteRevision, 0, n.NumChildren())
	for _, c := range n.Children() {
		h, err := cas.ParseHash(c.GetString("hash", ""))
		if err != nil {
			return nil, fmt.Errorf("remote: listing entry %q: %w", c.GetString("id", ""), err)
		}
		out = append(out, RemoteRevision{
			ID:        c.GetString("id", ""),
			ParentID:  c.GetString("parent", ""),
			Timestamp: time.UnixMilli(c.GetInt("timestamp", 0)).UTC(),
			Hash:      h,
		})
	}
	return out, nil
}
