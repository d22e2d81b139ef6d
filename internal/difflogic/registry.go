package difflogic

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/metrics"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
)

// Registry is the closed table of diff logics keyed by item kind.
type Registry struct {
	logics  map[string]Logic
	kinds   []string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry registers the logic of every project kind.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{logics: make(map[string]Logic), logger: zap.NewNop()}
	for _, l := range []Logic{
		NewPianoTrackLogic(),
		NewAutomationTrackLogic(),
		NewPatternSetLogic(),
		NewProjectInfoLogic(),
		NewProjectTimelineLogic(),
	} {
		r.logics[l.Kind()] = l
		r.kinds = append(r.kinds, l.Kind())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Lookup(kind string) (Logic, error) {
	l, ok := r.logics[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return l, nil
}

func (r *Registry) Kinds() []string {
	return append([]string(nil), r.kinds...)
}

// CreateDiff returns the items turning initial into target. Items removed
// from the project come first, in initial's order, followed by per-item
// changes, then items added in target's order.
func (r *Registry) CreateDiff(ctx context.Context, initial, target *project.Project) ([]*revision.Item, error) {
	before := initial.Items()
	after := target.Items()
	afterByID := make(map[string]project.TrackedItem, len(after))
	for _, it := range after {
		afterByID[it.ID()] = it
	}
	beforeIDs := make(map[string]bool, len(before))

	var removed, changed, added []*revision.Item
	for _, a := range before {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		beforeIDs[a.ID()] = true
		la, err := r.Lookup(a.Kind())
		if err != nil {
			return nil, err
		}
		b, ok := afterByID[a.ID()]
		if !ok {
			removed = append(removed, removal(la.Snapshot(a))...)
			continue
		}
		if b.Kind() != a.Kind() {
			lb, err := r.Lookup(b.Kind())
			if err != nil {
				return nil, err
			}
			changed = append(changed, removal(la.Snapshot(a))...)
			changed = append(changed, lb.Snapshot(b)...)
			continue
		}
		items, err := la.CreateDiff(a, b)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", a.ID(), err)
		}
		changed = append(changed, items...)
	}
	for _, b := range after {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if beforeIDs[b.ID()] {
			continue
		}
		lb, err := r.Lookup(b.Kind())
		if err != nil {
			return nil, err
		}
		added = append(added, lb.Snapshot(b)...)
	}

	out := make([]*revision.Item, 0, len(removed)+len(changed)+len(added))
	out = append(out, removed...)
	out = append(out, changed...)
	return append(out, added...), nil
}

// ApplyReport summarizes a replay.
type ApplyReport struct {
	Applied int
	Skipped int
	// Errors holds one entry per skipped item, in item order.
	Errors []error
}

func (r ApplyReport) Clean() bool { return r.Skipped == 0 }

// Validate checks that every item names a registered kind and a delta type
// that kind's logic applies. It reports the first offending item.
func (r *Registry) Validate(items []*revision.Item) error {
	for _, it := range items {
		logic, err := r.Lookup(it.ItemKind())
		if err != nil {
			return fmt.Errorf("item %s: %w", it.ItemID(), err)
		}
		if !slices.Contains(logic.DeltaTypes(), it.DeltaType()) {
			return fmt.Errorf("item %s: %w: %q for %s", it.ItemID(), ErrUnknownDelta, it.DeltaType(), logic.Kind())
		}
	}
	return nil
}

// ApplyItem applies a single item to the live project. An Added item on a
// missing entity creates it; Changed and Removed on a missing entity fail
// with ErrItemNotFound.
func (r *Registry) ApplyItem(live *project.Project, item *revision.Item) error {
	logic, err := r.Lookup(item.ItemKind())
	if err != nil {
		return err
	}
	return live.Modify(item.ItemID(), func(cur project.TrackedItem) (project.TrackedItem, error) {
		if cur == nil {
			if item.ChangeType() != revision.Added {
				return nil, fmt.Errorf("%w: %s %s", ErrItemNotFound, item.ItemKind(), item.ItemID())
			}
			cur = logic.NewItem(item.ItemID())
		} else if cur.Kind() != logic.Kind() {
			return nil, mismatch(logic.Kind(), cur)
		}
		remove, err := logic.Apply(cur, item)
		if err != nil {
			return nil, err
		}
		if remove {
			return nil, nil
		}
		return cur, nil
	})
}

// Apply replays items in order onto the live project. Items that cannot be
// applied are logged and skipped; only cancellation aborts the replay.
func (r *Registry) Apply(ctx context.Context, live *project.Project, items []*revision.Item) (ApplyReport, error) {
	var report ApplyReport
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := r.ApplyItem(live, it); err != nil {
			r.logger.Warn("skipping revision item",
				zap.String("item", it.Key()),
				zap.String("kind", it.ItemKind()),
				zap.Error(err))
			report.Skipped++
			report.Errors = append(report.Errors, err)
			continue
		}
		report.Applied++
	}
	r.metrics.AddApplySkipped(report.Skipped)
	return report, nil
}

// Materialize replays items into a fresh project.
func (r *Registry) Materialize(ctx context.Context, items []*revision.Item) (*project.Project, error) {
	p := project.New()
	if _, err := r.Apply(ctx, p, items); err != nil {
		return nil, err
	}
	return p, nil
}

// Snapshot expresses a whole project as Added items in project order.
func (r *Registry) Snapshot(p *project.Project) ([]*revision.Item, error) {
	var out []*revision.Item
	for _, it := range p.Items() {
		l, err := r.Lookup(it.Kind())
		if err != nil {
			return nil, err
		}
		out = append(out, l.Snapshot(it)...)
	}
	return out, nil
}

// Fold implements revision.Folder: it reduces a history to the Added items
// describing the state it produces.
func (r *Registry) Fold(items []*revision.Item) ([]*revision.Item, error) {
	p, err := r.Materialize(context.Background(), items)
	if err != nil {
		return nil, err
	}
	return r.Snapshot(p)
}

var _ revision.Folder = (*Registry)(nil)
