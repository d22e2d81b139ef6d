package vcs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/difflogic"
	"github.com/javanhut/helio-vcs/internal/revision"
)

// Diff returns the working changes relative to the head revision.
func (vc *VersionControl) Diff(ctx context.Context) ([]*revision.Item, error) {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return vc.head.Diff(ctx)
}

// IsDirty reports whether the live project differs from the head revision.
func (vc *VersionControl) IsDirty(ctx context.Context) (bool, error) {
	diff, err := vc.Diff(ctx)
	if err != nil {
		return false, err
	}
	return len(diff) > 0, nil
}

// matchItems returns the items of from that match an item of selection,
// in from's order. Every selected item must match.
func matchItems(from, selection []*revision.Item) ([]*revision.Item, error) {
	wanted := make([]bool, len(from))
	for _, sel := range selection {
		found := false
		for i, it := range from {
			if it.Key() == sel.Key() && it.Equivalent(sel) {
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
	for i, it := range from {
		if wanted[i] {
			out = append(out, it)
		}
	}
	return out, nil
}

func containsItem(items []*revision.Item, it *revision.Item) bool {
	for _, x := range items {
		if x.Key() == it.Key() && x.Equivalent(it) {
			return true
		}
	}
	return false
}

// Stage adds diff items to the commit selection. Items already staged are
// ignored.
func (vc *VersionControl) Stage(ctx context.Context, items []*revision.Item) error {
	if err := vc.checkOpen(); err != nil {
		return err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	diff, err := vc.head.Diff(ctx)
	if err != nil {
		return err
	}
	picked, err := matchItems(diff, items)
	if err != nil {
		return err
	}
	for _, it := range picked {
		if !containsItem(vc.staged, it) {
			vc.staged = append(vc.staged, it)
		}
	}
	if len(vc.staged) > 0 {
		vc.state = Staging
	}
	return nil
}

// Unstage drops items from the selection. Unknown items are ignored.
func (vc *VersionControl) Unstage(items []*revision.Item) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	kept := vc.staged[:0:0]
	for _, it := range vc.staged {
		if !containsItem(items, it) {
			kept = append(kept, it)
		}
	}
	vc.staged = kept
	if len(kept) == 0 {
		vc.state = Idle
	}
}

// Staged returns the current selection in staging order.
func (vc *VersionControl) Staged() []*revision.Item {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	return append([]*revision.Item(nil), vc.staged...)
}

// Commit records the staged selection, or the whole diff when nothing is
// staged, as a child of the head revision.
func (vc *VersionControl) Commit(ctx context.Context, message string) (*revision.Revision, error) {
	if err := vc.checkOpen(); err != nil {
		return nil, err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	selection := vc.staged
	if len(selection) == 0 {
		diff, err := vc.head.Diff(ctx)
		if err != nil {
			return nil, err
		}
		selection = diff
	}
	return vc.commitLocked(ctx, selection, message)
}

// CommitItems commits an explicit selection of diff items, leaving the
// stage untouched apart from the committed items.
func (vc *VersionControl) CommitItems(ctx context.Context, items []*revision.Item, message string) (*revision.Revision, error) {
	if err := vc.checkOpen(); err != nil {
		return nil, err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.commitLocked(ctx, items, message)
}

func (vc *VersionControl) commitLocked(ctx context.Context, selection []*revision.Item, message string) (*revision.Revision, error) {
	if len(selection) == 0 {
		return nil, ErrNothingToCommit
	}
	prev := vc.state
	vc.state = Committing
	rev, err := vc.head.CherryPickAndApply(ctx, selection, message, vc.author)
	if err != nil {
		vc.state = prev
		return nil, fmt.Errorf("commit failed: %w", err)
	}
	vc.index[rev.ID()] = rev

	var kept []*revision.Item
	for _, it := range vc.staged {
		if !containsItem(selection, it) {
			kept = append(kept, it)
		}
	}
	vc.staged = kept
	vc.state = Idle
	if len(kept) > 0 {
		vc.state = Staging
	}
	vc.metrics.IncCommits()
	vc.logger.Info("committed",
		zap.String("revision", rev.ID()),
		zap.String("message", message),
		zap.Int("items", rev.NumItems()))
	return rev, nil
}

// Checkout replaces the live project with the state at a revision and moves
// the head there. Uncommitted changes are discarded and the stage cleared.
func (vc *VersionControl) Checkout(ctx context.Context, id string) error {
	if err := vc.checkOpen(); err != nil {
		return err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	rev, err := vc.findLocked(id)
	if err != nil {
		return err
	}
	items, err := vc.flatten(ctx, rev)
	if err != nil {
		return err
	}
	state, err := vc.registry.Materialize(ctx, items)
	if err != nil {
		return err
	}
	vc.live.Reset(state.Items())
	vc.head.MoveTo(rev)
	vc.staged = nil
	vc.state = Idle
	vc.logger.Info("checked out", zap.String("revision", rev.ID()))
	return nil
}

// ResetChanges reverts diff items on the live project. A nil selection
// reverts every working change. The live project is replaced atomically.
func (vc *VersionControl) ResetChanges(ctx context.Context, items []*revision.Item) (difflogic.ApplyReport, error) {
	if err := vc.checkOpen(); err != nil {
		return difflogic.ApplyReport{}, err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return vc.resetLocked(ctx, items)
}

func (vc *VersionControl) resetLocked(ctx context.Context, items []*revision.Item) (difflogic.ApplyReport, error) {
	var report difflogic.ApplyReport
	diff, err := vc.head.Diff(ctx)
	if err != nil {
		return report, err
	}
	headState, err := vc.head.HeadState(ctx)
	if err != nil {
		return report, err
	}
	if items == nil {
		vc.live.Reset(headState.Items())
		vc.staged = nil
		vc.state = Idle
		report.Applied = len(diff)
		return report, nil
	}
	picked, err := matchItems(diff, items)
	if err != nil {
		return report, err
	}

	current := vc.live.Snapshot()
	inverse, err := vc.registry.CreateDiff(ctx, current, headState)
	if err != nil {
		return report, err
	}
	revert := inverseOf(picked, inverse)
	report, err = vc.registry.Apply(ctx, current, revert)
	if err != nil {
		return report, err
	}
	vc.live.Reset(current.Items())

	var kept []*revision.Item
	for _, it := range vc.staged {
		if !containsItem(picked, it) {
			kept = append(kept, it)
		}
	}
	vc.staged = kept
	if len(kept) == 0 {
		vc.state = Idle
	}
	return report, nil
}

// inverseOf selects the items of the reverse diff that undo picked. An
// item is undone by the reverse item with the same identity, kind and delta
// type and the inverse change type.
func inverseOf(picked, reverse []*revision.Item) []*revision.Item {
	type key struct {
		id, kind, delta string
		ct              revision.ChangeType
	}
	want := make(map[key]bool, len(picked))
	for _, it := range picked {
		want[key{it.ItemID(), it.ItemKind(), it.DeltaType(), it.ChangeType().Inverse()}] = true
	}
	var out []*revision.Item
	for _, it := range reverse {
		if want[key{it.ItemID(), it.ItemKind(), it.DeltaType(), it.ChangeType()}] {
			out = append(out, it)
		}
	}
	return out
}

// CherryPick applies the items of any revision onto the live project
// without committing. keys filters items by Item.Key; nil applies all.
func (vc *VersionControl) CherryPick(ctx context.Context, id string, keys []string) (difflogic.ApplyReport, error) {
	if err := vc.checkOpen(); err != nil {
		return difflogic.ApplyReport{}, err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	rev, err := vc.findLocked(id)
	if err != nil {
		return difflogic.ApplyReport{}, err
	}
	items := rev.Items()
	if keys != nil {
		wanted := make(map[string]bool, len(keys))
		for _, k := range keys {
			wanted[k] = true
		}
		var filtered []*revision.Item
		for _, it := range items {
			if wanted[it.Key()] {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	return vc.applyLocked(ctx, items)
}

// applyLocked replays items onto a copy of the live project and swaps it in
// only when the replay was not cancelled.
func (vc *VersionControl) applyLocked(ctx context.Context, items []*revision.Item) (difflogic.ApplyReport, error) {
	next := vc.live.Snapshot()
	report, err := vc.registry.Apply(ctx, next, items)
	if err != nil {
		return report, err
	}
	vc.live.Reset(next.Items())
	if report.Skipped > 0 {
		vc.logger.Info("items skipped while applying",
			zap.Int("applied", report.Applied),
			zap.Int("skipped", report.Skipped))
	}
	return report, nil
}
