package vcs

import (
	"context"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/difflogic"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/stash"
)

// Stash sets working changes aside under name and reverts them on the live
// project. A nil selection stashes the whole diff; an empty name picks a
// generated one. The chosen name is returned.
func (vc *VersionControl) Stash(ctx context.Context, name, message string, items []*revision.Item) (string, error) {
	if err := vc.checkOpen(); err != nil {
		return "", err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()

	selection, err := vc.selectionLocked(ctx, items)
	if err != nil {
		return "", err
	}
	if name == "" {
		name = vc.stashes.GenerateName()
	}
	if err := vc.stashes.Stash(name, message, selection); err != nil {
		return "", err
	}
	if _, err := vc.resetLocked(ctx, selection); err != nil {
		_, _ = vc.stashes.Pop(name)
		return "", err
	}
	vc.logger.Info("stashed", zap.String("name", name), zap.Int("items", len(selection)))
	return name, nil
}

// ApplyStash replays a named stash onto the live project and drops it.
// The stash is kept when the replay is cancelled.
func (vc *VersionControl) ApplyStash(ctx context.Context, name string) (difflogic.ApplyReport, error) {
	if err := vc.checkOpen(); err != nil {
		return difflogic.ApplyReport{}, err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	s, err := vc.stashes.Peek(name)
	if err != nil {
		return difflogic.ApplyReport{}, err
	}
	report, err := vc.applyLocked(ctx, s.Items)
	if err != nil {
		return report, err
	}
	if name == stash.QuickStashName {
		_, err = vc.stashes.PopQuick()
	} else {
		_, err = vc.stashes.Pop(name)
	}
	return report, err
}

// QuickStash stashes every working change into the quick slot.
func (vc *VersionControl) QuickStash(ctx context.Context) error {
	if err := vc.checkOpen(); err != nil {
		return err
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	selection, err := vc.selectionLocked(ctx, nil)
	if err != nil {
		return err
	}
	if err := vc.stashes.QuickStash(selection); err != nil {
		return err
	}
	if _, err := vc.resetLocked(ctx, selection); err != nil {
		_, _ = vc.stashes.PopQuick()
		return err
	}
	return nil
}

// ApplyQuickStash replays and empties the quick slot.
func (vc *VersionControl) ApplyQuickStash(ctx context.Context) (difflogic.ApplyReport, error) {
	return vc.ApplyStash(ctx, stash.QuickStashName)
}

func (vc *VersionControl) selectionLocked(ctx context.Context, items []*revision.Item) ([]*revision.Item, error) {
	diff, err := vc.head.Diff(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = diff
	} else if items, err = matchItems(diff, items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, stash.ErrNoItems
	}
	return items, nil
}
