package vcs

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/remotecache"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
	"github.com/javanhut/helio-vcs/internal/stash"
)

// Serialized node types of the history document.
const (
	NodeType     = "vcs"
	treeNodeType = "tree"
	treeNode     = "node"
)

// Serialize writes the revision tree as nested nodes, each holding the
// revision payload first and its children after, plus the head id, the
// stashes and the remote cache.
func (vc *VersionControl) Serialize() *serial.Node {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	n := serial.New(NodeType)
	n.SetString("head", vc.head.Revision().ID())
	n.MustAppend(serial.New(treeNodeType)).MustAppend(serializeTree(vc.root))
	n.MustAppend(vc.stashes.Serialize())
	n.MustAppend(vc.remote.Serialize())
	return n
}

func serializeTree(r *revision.Revision) *serial.Node {
	n := serial.New(treeNode).SetString("id", r.ID())
	n.MustAppend(r.Serialize())
	for _, c := range r.Children() {
		n.MustAppend(serializeTree(c))
	}
	return n
}

// Deserialize rebuilds an instance from a Serialize node. Malformed
// revisions are skipped and logged along with their descendants; a
// malformed root fails the load.
func Deserialize(n *serial.Node, live *project.Project, opts ...Option) (*VersionControl, error) {
	if !n.IsValid() || n.Type() != NodeType {
		return nil, fmt.Errorf("vcs: unexpected node %q", n.Type())
	}
	probe := &VersionControl{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(probe)
	}

	tree := n.ChildOfType(treeNodeType)
	if tree == nil || tree.NumChildren() == 0 {
		return nil, fmt.Errorf("vcs: missing revision tree")
	}
	root, err := decodeTreeNode(tree.Child(0))
	if err != nil {
		return nil, fmt.Errorf("vcs: root revision: %w", err)
	}
	root.Freeze()
	attachChildren(root, tree.Child(0), probe.logger)

	var sopts []stash.Option
	var copts []remotecache.Option
	if probe.now != nil {
		sopts = append(sopts, stash.WithClock(probe.now))
		copts = append(copts, remotecache.WithClock(probe.now))
	}
	var stashes *stash.Repository
	if sn := n.ChildOfType(stash.NodeType); sn != nil {
		if stashes, err = stash.Deserialize(sn, sopts...); err != nil {
			return nil, err
		}
	}
	var cache *remotecache.Cache
	if cn := n.ChildOfType(remotecache.NodeType); cn != nil {
		if cache, err = remotecache.Deserialize(cn, copts...); err != nil {
			return nil, err
		}
	}
	return FromTree(live, root, n.GetString("head", ""), stashes, cache, opts...)
}

func decodeTreeNode(n *serial.Node) (*revision.Revision, error) {
	if n.Type() != treeNode || n.NumChildren() == 0 {
		return nil, fmt.Errorf("malformed tree node %q", n.Type())
	}
	rev, err := revision.Deserialize(n.Child(0))
	if err != nil {
		return nil, err
	}
	if id := n.GetString("id", ""); id != rev.ID() {
		return nil, fmt.Errorf("tree node %q holds revision %q", id, rev.ID())
	}
	return rev, nil
}

func attachChildren(parent *revision.Revision, n *serial.Node, logger *zap.Logger) {
	for i := 1; i < n.NumChildren(); i++ {
		cn := n.Child(i)
		child, err := decodeTreeNode(cn)
		if err == nil {
			err = parent.AttachChild(child)
		}
		if err != nil {
			logger.Warn("skipping stored revision",
				zap.String("id", cn.GetString("id", "")),
				zap.String("parent", parent.ID()),
				zap.Error(err))
			continue
		}
		attachChildren(child, cn, logger)
	}
}

// Save writes the history document.
func (vc *VersionControl) Save(w io.Writer) error {
	return serial.WriteDocument(w, vc.Serialize())
}

// Load reads a history document written by Save.
func Load(r io.Reader, live *project.Project, opts ...Option) (*VersionControl, error) {
	n, err := serial.ReadDocument(r)
	if err != nil {
		return nil, fmt.Errorf("could not open history: %w", err)
	}
	vc, err := Deserialize(n, live, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not open history: %w", err)
	}
	return vc, nil
}
