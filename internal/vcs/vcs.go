// Package vcs is the version control orchestrator. It owns the revision
// tree, the head, the stage, the stashes and the remote cache of one live
// project.
//
// All mutations of the tree, head, stage and stashes are serialized by a
// single reader/writer lock per instance. Diff and flatten run under the
// read lock. Background sync fetches without holding the lock and attaches
// results under the write lock, one whole revision at a time.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/difflogic"
	"github.com/javanhut/helio-vcs/internal/head"
	"github.com/javanhut/helio-vcs/internal/metrics"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/remotecache"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/stash"
)

var (
	ErrNothingToCommit   = head.ErrNothingToCommit
	ErrInconsistentItems = head.ErrInconsistentItems
	ErrRevisionNotFound  = errors.New("revision not found")
	ErrClosed            = errors.New("version control is closed")
)

// State is the phase of the commit workflow.
type State int32

const (
	Idle State = iota
	Staging
	Committing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Staging:
		return "staging"
	case Committing:
		return "committing"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// DefaultFlattenCacheSize bounds the number of flattened revisions kept.
const DefaultFlattenCacheSize = 128

type VersionControl struct {
	mu sync.RWMutex

	live     *project.Project
	registry *difflogic.Registry
	root     *revision.Revision
	head     *head.Head
	index    map[string]*revision.Revision
	staged   []*revision.Item
	state    State
	stashes  *stash.Repository
	remote   *remotecache.Cache

	flattened *lru.Cache[string, []*revision.Item]

	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	author  string

	syncing atomic.Int32
	lifeMu  sync.Mutex
	closed  atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*VersionControl)

func WithLogger(l *zap.Logger) Option {
	return func(vc *VersionControl) { vc.logger = l }
}

// WithRegistry replaces the default registry of all five kinds.
func WithRegistry(r *difflogic.Registry) Option {
	return func(vc *VersionControl) { vc.registry = r }
}

// WithClock sets the time source for revisions, stashes and the remote cache.
func WithClock(now func() time.Time) Option {
	return func(vc *VersionControl) { vc.now = now }
}

// WithAuthor sets the author recorded on commits.
func WithAuthor(author string) Option {
	return func(vc *VersionControl) { vc.author = author }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(vc *VersionControl) { vc.metrics = m }
}

// New starts a fresh history for live. The root revision is empty, so the
// whole current project shows up as working changes.
func New(live *project.Project, opts ...Option) *VersionControl {
	vc, _ := assemble(live, nil, "", nil, nil, opts...)
	return vc
}

// FromTree assembles an instance around an existing tree. The head falls
// back to the root when headID is empty or unknown.
func FromTree(live *project.Project, root *revision.Revision, headID string, stashes *stash.Repository, cache *remotecache.Cache, opts ...Option) (*VersionControl, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: missing root", ErrRevisionNotFound)
	}
	return assemble(live, root, headID, stashes, cache, opts...)
}

func assemble(live *project.Project, root *revision.Revision, headID string, stashes *stash.Repository, cache *remotecache.Cache, opts ...Option) (*VersionControl, error) {
	vc := &VersionControl{
		live:    live,
		root:    root,
		index:   make(map[string]*revision.Revision),
		stashes: stashes,
		remote:  cache,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(vc)
	}
	if vc.root == nil {
		vc.root = revision.NewRootAt(vc.now())
		root = vc.root
	}
	if vc.registry == nil {
		vc.registry = difflogic.NewRegistry(difflogic.WithLogger(vc.logger), difflogic.WithMetrics(vc.metrics))
	}
	if vc.stashes == nil {
		vc.stashes = stash.NewRepository(stash.WithClock(vc.now))
	}
	if vc.remote == nil {
		vc.remote = remotecache.New(remotecache.WithClock(vc.now))
	}
	vc.flattened, _ = lru.New[string, []*revision.Item](DefaultFlattenCacheSize)
	vc.ctx, vc.cancel = context.WithCancel(context.Background())

	root.Walk(func(r *revision.Revision) bool {
		vc.index[r.ID()] = r
		return true
	})
	current := root
	if headID != "" {
		if r, ok := vc.index[headID]; ok {
			current = r
		} else {
			vc.logger.Warn("head revision missing, using root", zap.String("head", headID))
		}
	}
	vc.head = head.New(vc.registry, live, current,
		head.WithLogger(vc.logger),
		head.WithClock(vc.now),
		head.WithFlattener(vc.flatten))
	return vc, nil
}

func (vc *VersionControl) Live() *project.Project { return vc.live }

func (vc *VersionControl) Registry() *difflogic.Registry { return vc.registry }

func (vc *VersionControl) Author() string { return vc.author }

func (vc *VersionControl) State() State {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.state
}

// IsSyncing reports whether a pull or push is in flight.
func (vc *VersionControl) IsSyncing() bool { return vc.syncing.Load() > 0 }

func (vc *VersionControl) Root() *revision.Revision {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.root
}

func (vc *VersionControl) HeadRevision() *revision.Revision {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.head.Revision()
}

func (vc *VersionControl) FindRevision(id string) (*revision.Revision, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.findLocked(id)
}

func (vc *VersionControl) findLocked(id string) (*revision.Revision, error) {
	if r, ok := vc.index[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrRevisionNotFound, id)
}

// Log returns the ancestry of a revision, newest first. An empty id means
// the head.
func (vc *VersionControl) Log(id string) ([]*revision.Revision, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	rev := vc.head.Revision()
	if id != "" {
		var err error
		if rev, err = vc.findLocked(id); err != nil {
			return nil, err
		}
	}
	return rev.Ancestors(), nil
}

// NumRevisions counts the revisions of the tree, root included.
func (vc *VersionControl) NumRevisions() int {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return len(vc.index)
}

// Revisions returns every revision of the tree in pre-order, parents first.
func (vc *VersionControl) Revisions() []*revision.Revision {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	out := make([]*revision.Revision, 0, len(vc.index))
	vc.root.Walk(func(r *revision.Revision) bool {
		out = append(out, r)
		return true
	})
	return out
}

func (vc *VersionControl) Stashes() *stash.Repository { return vc.stashes }

func (vc *VersionControl) RemoteCache() *remotecache.Cache { return vc.remote }

// Flatten returns the full state at a revision as Added items.
func (vc *VersionControl) Flatten(ctx context.Context, id string) ([]*revision.Item, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	rev, err := vc.findLocked(id)
	if err != nil {
		return nil, err
	}
	return vc.flatten(ctx, rev)
}

// flatten folds the history of a committed revision. Results are cached by
// id since committed revisions never change.
func (vc *VersionControl) flatten(ctx context.Context, rev *revision.Revision) ([]*revision.Item, error) {
	if items, ok := vc.flattened.Get(rev.ID()); ok {
		return append([]*revision.Item(nil), items...), nil
	}
	p, err := vc.registry.Materialize(ctx, rev.History())
	if err != nil {
		return nil, err
	}
	items, err := vc.registry.Snapshot(p)
	if err != nil {
		return nil, err
	}
	if rev.IsCommitted() {
		vc.flattened.Add(rev.ID(), items)
	}
	return append([]*revision.Item(nil), items...), nil
}

func (vc *VersionControl) checkOpen() error {
	if vc.closed.Load() {
		return ErrClosed
	}
	return nil
}
