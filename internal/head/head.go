// Package head tracks the checked-out revision and the working changes of the
// live project relative to it.
package head

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/difflogic"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
)

var (
	ErrNothingToCommit = errors.New("nothing to commit")
	// ErrInconsistentItems is returned when a selection references items
	// that are not part of the current diff.
	ErrInconsistentItems = errors.New("selected items are not part of the current diff")
)

// Flattener returns the full state of a revision as Added items.
type Flattener func(ctx context.Context, rev *revision.Revision) ([]*revision.Item, error)

// Head is the checked-out revision plus a lazily computed diff against the
// live project. The diff is cached together with the live project version
// and a fingerprint of its content: a version bump that leaves the content
// unchanged reuses the cached diff.
type Head struct {
	mu       sync.Mutex
	registry *difflogic.Registry
	live     *project.Project
	logger   *zap.Logger
	flatten  Flattener
	now      func() time.Time

	revision *revision.Revision

	diff        []*revision.Item
	diffValid   bool
	diffVersion uint64
	fingerprint uint64

	state    *project.Project
	stateRev *revision.Revision
}

type Option func(*Head)

func WithLogger(l *zap.Logger) Option {
	return func(h *Head) { h.logger = l }
}

// WithClock sets the timestamp source for new revisions.
func WithClock(now func() time.Time) Option {
	return func(h *Head) { h.now = now }
}

// WithFlattener replaces the default flatten, which folds the revision
// history through the registry on every call.
func WithFlattener(f Flattener) Option {
	return func(h *Head) { h.flatten = f }
}

func New(registry *difflogic.Registry, live *project.Project, rev *revision.Revision, opts ...Option) *Head {
	h := &Head{
		registry: registry,
		live:     live,
		revision: rev,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	h.flatten = func(_ context.Context, r *revision.Revision) ([]*revision.Item, error) {
		return r.Flatten(h.registry)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fingerprint hashes the canonical binary form of a project.
func Fingerprint(p *project.Project) uint64 {
	return xxhash.Sum64(p.Serialize().Bytes())
}

func (h *Head) Revision() *revision.Revision {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.revision
}

// MoveTo points the head at rev and drops the cached diff and state.
func (h *Head) MoveTo(rev *revision.Revision) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.revision = rev
	h.invalidateLocked()
}

// Invalidate forces the next Diff to recompute.
func (h *Head) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.diffValid = false
}

func (h *Head) invalidateLocked() {
	h.diffValid = false
	h.diff = nil
	if h.stateRev != h.revision {
		h.state = nil
		h.stateRev = nil
	}
}

// IsDirty reports whether the cached diff may be stale. It does not compute.
func (h *Head) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.diffValid || h.live.Version() != h.diffVersion
}

// Diff returns the working changes: the items turning the head state into
// the live project.
func (h *Head) Diff(ctx context.Context) ([]*revision.Item, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	items, err := h.diffLocked(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*revision.Item(nil), items...), nil
}

func (h *Head) diffLocked(ctx context.Context) ([]*revision.Item, error) {
	snap := h.live.Snapshot()
	if h.diffValid && snap.Version() == h.diffVersion {
		return h.diff, nil
	}
	fp := Fingerprint(snap)
	if h.diffValid && fp == h.fingerprint {
		h.diffVersion = snap.Version()
		return h.diff, nil
	}

	state, err := h.stateLocked(ctx)
	if err != nil {
		return nil, err
	}
	items, err := h.registry.CreateDiff(ctx, state, snap)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diff: %w", err)
	}
	h.diff = items
	h.diffValid = true
	h.diffVersion = snap.Version()
	h.fingerprint = fp
	h.logger.Debug("diff computed",
		zap.String("revision", h.revision.ID()),
		zap.Int("items", len(items)),
		zap.Uint64("version", snap.Version()))
	return items, nil
}

// HeadState returns a copy of the project as it is at the head revision.
func (h *Head) HeadState(ctx context.Context) (*project.Project, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, err := h.stateLocked(ctx)
	if err != nil {
		return nil, err
	}
	return state.Snapshot(), nil
}

func (h *Head) stateLocked(ctx context.Context) (*project.Project, error) {
	if h.state != nil && h.stateRev == h.revision {
		return h.state, nil
	}
	items, err := h.flatten(ctx, h.revision)
	if err != nil {
		return nil, fmt.Errorf("failed to flatten %s: %w", h.revision.ID(), err)
	}
	state, err := h.registry.Materialize(ctx, items)
	if err != nil {
		return nil, err
	}
	h.state = state
	h.stateRev = h.revision
	return state, nil
}

// CherryPickAndApply commits a subset of the current diff as a new child of
// the head revision and advances the head to it. Every selected item must be
// part of the diff; the new revision stores them in diff order.
func (h *Head) CherryPickAndApply(ctx context.Context, items []*revision.Item, message, author string) (*revision.Revision, error) {
	if len(items) == 0 {
		return nil, ErrNothingToCommit
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	diff, err := h.diffLocked(ctx)
	if err != nil {
		return nil, err
	}
	picked, err := selectFrom(diff, items)
	if err != nil {
		return nil, err
	}

	state, err := h.stateLocked(ctx)
	if err != nil {
		return nil, err
	}
	child := h.revision.CreateChild(message, author)
	child.SetTimestamp(h.now())
	for _, it := range picked {
		if err := child.AddItem(it.Copy()); err != nil {
			return nil, err
		}
	}
	next := state.Snapshot()
	report, err := h.registry.Apply(ctx, next, picked)
	if err != nil {
		return nil, err
	}
	if !report.Clean() {
		return nil, fmt.Errorf("%w: %d items do not apply to the head state", ErrInconsistentItems, report.Skipped)
	}
	if err := h.revision.AttachChild(child); err != nil {
		return nil, err
	}

	h.revision = child
	h.state = next
	h.stateRev = child
	h.diffValid = false
	h.diff = nil
	h.logger.Info("revision committed",
		zap.String("revision", child.ID()),
		zap.String("parent", child.Parent().ID()),
		zap.Int("items", len(picked)))
	return child, nil
}

// selectFrom returns the diff items matching the selection, in diff order.
func selectFrom(diff, selection []*revision.Item) ([]*revision.Item, error) {
	wanted := make([]bool, len(diff))
	for _, sel := range selection {
		found := false
		for i, d := range diff {
			if d.Key() == sel.Key() && d.Equivalent(sel) {
				wanted[i] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrInconsistentItems, sel.Key())
		}
	}
	var out []*revision.Item
	for i, d := range diff {
		if wanted[i] {
			out = append(out, d)
		}
	}
	return out, nil
}
