package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/metrics"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/remote"
	"github.com/javanhut/helio-vcs/internal/remotecache"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// ErrForeignHistory is returned when the remote tree has a different root.
var ErrForeignHistory = errors.New("remote history has a different root")

// SyncReport summarizes one pull, push or both.
type SyncReport struct {
	Listed   int
	Fetched  int
	Attached int
	Pushed   int
	Skipped  int
	// Errors holds one entry per skipped revision.
	Errors []error
}

func (r *SyncReport) skip(err error) {
	r.Skipped++
	r.Errors = append(r.Errors, err)
}

func (r *SyncReport) merge(o *SyncReport) {
	if o == nil {
		return
	}
	r.Listed = max(r.Listed, o.Listed)
	r.Fetched += o.Fetched
	r.Attached += o.Attached
	r.Pushed += o.Pushed
	r.Skipped += o.Skipped
	r.Errors = append(r.Errors, o.Errors...)
}

// bind derives a context that is also cancelled by Close.
func (vc *VersionControl) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(vc.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func cacheEntries(listing []remote.RemoteRevision) []remotecache.Entry {
	out := make([]remotecache.Entry, len(listing))
	for i, r := range listing {
		out[i] = remotecache.Entry{ID: r.ID, Timestamp: r.Timestamp}
	}
	return out
}

func (vc *VersionControl) checkRoot(listing []remote.RemoteRevision) error {
	for _, r := range listing {
		if r.IsRoot() && r.ID != vc.Root().ID() {
			return fmt.Errorf("%w: remote root %s", ErrForeignHistory, r.ID)
		}
	}
	return nil
}

type candidate struct {
	meta remote.RemoteRevision
	rev  *revision.Revision
}

// Pull fetches the revisions the local tree lacks and attaches them parent
// first. A revision is attached whole or not at all: malformed payloads,
// hash mismatches and missing parents skip that revision and the sync goes
// on. The remote cache is replaced by the listing.
func (vc *VersionControl) Pull(ctx context.Context, t remote.Transport) (*SyncReport, error) {
	if err := vc.checkOpen(); err != nil {
		return nil, err
	}
	vc.syncing.Add(1)
	defer vc.syncing.Add(-1)
	ctx, stop := vc.bind(ctx)
	defer stop()

	listing, err := t.List(ctx)
	if err != nil {
		vc.metrics.ObserveSync(metrics.DirectionPull, metrics.ResultFailed, 1)
		return nil, fmt.Errorf("list remote: %w", err)
	}
	if err := vc.checkRoot(listing); err != nil {
		return nil, err
	}
	report := &SyncReport{Listed: len(listing)}

	vc.mu.RLock()
	var missing []remote.RemoteRevision
	for _, r := range remote.SortParentFirst(listing) {
		if _, ok := vc.index[r.ID]; !ok {
			missing = append(missing, r)
		}
	}
	vc.mu.RUnlock()

	candidates := vc.fetchCandidates(ctx, t, missing, report)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	vc.mu.Lock()
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if _, ok := vc.index[c.meta.ID]; ok {
			continue
		}
		parent, ok := vc.index[c.meta.ParentID]
		if !ok {
			vc.skipPull(report, c.meta.ID, fmt.Errorf("%w: parent %s of %s", ErrRevisionNotFound, c.meta.ParentID, c.meta.ID))
			continue
		}
		if err := parent.AttachChild(c.rev); err != nil {
			vc.skipPull(report, c.meta.ID, err)
			continue
		}
		vc.index[c.rev.ID()] = c.rev
		report.Attached++
	}
	vc.mu.Unlock()

	vc.remote.UpdateForRemoteRevisions(cacheEntries(listing))
	vc.metrics.ObserveSync(metrics.DirectionPull, metrics.ResultOK, report.Attached)
	vc.logger.Info("pull finished",
		zap.Int("listed", report.Listed),
		zap.Int("attached", report.Attached),
		zap.Int("skipped", report.Skipped))
	return report, ctx.Err()
}

func (vc *VersionControl) skipPull(report *SyncReport, id string, err error) {
	vc.logger.Warn("skipping remote revision", zap.String("revision", id), zap.Error(err))
	vc.metrics.ObserveSync(metrics.DirectionPull, metrics.ResultSkipped, 1)
	report.skip(err)
}

// fetchCandidates downloads and validates payloads without holding the tree
// lock. Transports that support it fetch everything in one round trip.
func (vc *VersionControl) fetchCandidates(ctx context.Context, t remote.Transport, missing []remote.RemoteRevision, report *SyncReport) []candidate {
	var bulk map[string]*serial.Node
	if bf, ok := t.(remote.BulkFetcher); ok && len(missing) > 1 {
		var err error
		if bulk, err = bf.FetchAll(ctx); err != nil {
			vc.logger.Warn("bulk fetch failed, fetching one by one", zap.Error(err))
			bulk = nil
		}
	}

	var out []candidate
	for _, meta := range missing {
		if ctx.Err() != nil {
			return out
		}
		payload, ok := bulk[meta.ID]
		if !ok {
			var err error
			if payload, err = t.Fetch(ctx, meta.ID); err != nil {
				vc.skipPull(report, meta.ID, err)
				continue
			}
		}
		report.Fetched++
		if err := remote.Verify(meta, payload); err != nil {
			vc.skipPull(report, meta.ID, err)
			continue
		}
		rev, err := revision.Deserialize(payload)
		if err != nil {
			vc.skipPull(report, meta.ID, err)
			continue
		}
		if err := vc.registry.Validate(rev.Items()); err != nil {
			vc.skipPull(report, meta.ID, fmt.Errorf("revision %s: %w", meta.ID, err))
			continue
		}
		out = append(out, candidate{meta: meta, rev: rev})
	}
	return out
}

// Push uploads local revisions the remote lacks, parent first. The remote
// cache only learns about revisions whose upload was confirmed; descendants
// of a failed upload are not attempted.
func (vc *VersionControl) Push(ctx context.Context, t remote.Transport) (*SyncReport, error) {
	if err := vc.checkOpen(); err != nil {
		return nil, err
	}
	vc.syncing.Add(1)
	defer vc.syncing.Add(-1)
	ctx, stop := vc.bind(ctx)
	defer stop()

	listing, err := t.List(ctx)
	if err != nil {
		vc.metrics.ObserveSync(metrics.DirectionPush, metrics.ResultFailed, 1)
		return nil, fmt.Errorf("list remote: %w", err)
	}
	if err := vc.checkRoot(listing); err != nil {
		return nil, err
	}
	vc.remote.UpdateForRemoteRevisions(cacheEntries(listing))
	known := make(map[string]bool, len(listing))
	for _, r := range listing {
		known[r.ID] = true
	}

	type upload struct {
		rev     *revision.Revision
		meta    remote.RemoteRevision
		payload *serial.Node
	}
	var uploads []upload
	vc.mu.RLock()
	vc.root.Walk(func(r *revision.Revision) bool {
		if known[r.ID()] {
			return true
		}
		payload := r.Serialize()
		meta := remote.RemoteRevision{ID: r.ID(), Timestamp: r.Timestamp(), Hash: remote.PayloadHash(payload)}
		if p := r.Parent(); p != nil {
			meta.ParentID = p.ID()
		}
		uploads = append(uploads, upload{rev: r, meta: meta, payload: payload})
		return true
	})
	vc.mu.RUnlock()

	report := &SyncReport{Listed: len(listing)}
	failed := make(map[string]bool)
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if failed[u.meta.ParentID] {
			failed[u.meta.ID] = true
			report.skip(fmt.Errorf("parent %s of %s was not pushed", u.meta.ParentID, u.meta.ID))
			continue
		}
		if err := t.Push(ctx, u.meta, u.payload); err != nil {
			failed[u.meta.ID] = true
			vc.logger.Warn("push failed", zap.String("revision", u.meta.ID), zap.Error(err))
			vc.metrics.ObserveSync(metrics.DirectionPush, metrics.ResultFailed, 1)
			report.skip(err)
			continue
		}
		vc.remote.UpdateForLocalRevision(u.rev)
		report.Pushed++
	}
	vc.metrics.ObserveSync(metrics.DirectionPush, metrics.ResultOK, report.Pushed)
	vc.logger.Info("push finished", zap.Int("pushed", report.Pushed), zap.Int("skipped", report.Skipped))
	return report, nil
}

// Sync pulls then pushes.
func (vc *VersionControl) Sync(ctx context.Context, t remote.Transport) (*SyncReport, error) {
	report, err := vc.Pull(ctx, t)
	if err != nil {
		return report, err
	}
	pushed, err := vc.Push(ctx, t)
	report.merge(pushed)
	return report, err
}

// SyncInBackground runs Sync on a worker goroutine and reports through done.
// Close cancels the worker and waits for it.
func (vc *VersionControl) SyncInBackground(ctx context.Context, t remote.Transport, done func(*SyncReport, error)) error {
	vc.lifeMu.Lock()
	defer vc.lifeMu.Unlock()
	if err := vc.checkOpen(); err != nil {
		return err
	}
	vc.wg.Add(1)
	go func() {
		defer vc.wg.Done()
		report, err := vc.Sync(ctx, t)
		if err != nil && !errors.Is(err, context.Canceled) {
			vc.logger.Warn("background sync failed", zap.Error(err))
		}
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

// LocalOnly returns committed revisions the remote cache does not know,
// parent first.
func (vc *VersionControl) LocalOnly() []*revision.Revision {
	vc.mu.RLock()
	defer vc.mu.RUnlock()
	var out []*revision.Revision
	vc.root.Walk(func(r *revision.Revision) bool {
		if !vc.remote.HasRevisionTracked(r.ID()) {
			out = append(out, r)
		}
		return true
	})
	return out
}

// NeedsSync reports whether a background sync is warranted: the remote
// cache was never filled or is outdated, or local revisions are unpushed.
func (vc *VersionControl) NeedsSync() bool {
	if vc.remote.LastSyncTime().IsZero() || vc.remote.IsOutdated() {
		return true
	}
	return len(vc.LocalOnly()) > 0
}

// StartAutoSync checks NeedsSync every interval and syncs when it holds.
func (vc *VersionControl) StartAutoSync(t remote.Transport, interval time.Duration, done func(*SyncReport, error)) error {
	vc.lifeMu.Lock()
	defer vc.lifeMu.Unlock()
	if err := vc.checkOpen(); err != nil {
		return err
	}
	vc.wg.Add(1)
	go func() {
		defer vc.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-vc.ctx.Done():
				return
			case <-ticker.C:
				if !vc.NeedsSync() {
					continue
				}
				report, err := vc.Sync(vc.ctx, t)
				if done != nil {
					done(report, err)
				}
			}
		}
	}()
	return nil
}

// Close cancels in-flight syncs and waits for background workers. Further
// mutations fail with ErrClosed.
func (vc *VersionControl) Close() error {
	vc.lifeMu.Lock()
	if vc.closed.Swap(true) {
		vc.lifeMu.Unlock()
		return nil
	}
	vc.lifeMu.Unlock()
	vc.cancel()
	vc.wg.Wait()
	return nil
}

// newestRevision picks the revision with the latest timestamp. Timestamps
// have millisecond resolution, so ties go to the deeper revision, then to
// the larger id.
func newestRevision(listing []remote.RemoteRevision) string {
	parents := make(map[string]string, len(listing))
	for _, r := range listing {
		parents[r.ID] = r.ParentID
	}
	depth := func(id string) int {
		d := 0
		for seen := 0; seen <= len(parents); seen++ {
			p, ok := parents[id]
			if !ok || p == "" {
				break
			}
			id = p
			d++
		}
		return d
	}

	best, bestDepth := -1, 0
	for i, r := range listing {
		d := depth(r.ID)
		if best >= 0 {
			b := listing[best]
			switch {
			case r.Timestamp.Before(b.Timestamp):
				continue
			case r.Timestamp.Equal(b.Timestamp):
				if d < bestDepth || (d == bestDepth && r.ID < b.ID) {
					continue
				}
			}
		}
		best, bestDepth = i, d
	}
	if best < 0 {
		return ""
	}
	return listing[best].ID
}

// Clone builds a local history from a remote: it adopts the remote root,
// pulls everything and checks out the most recent revision.
func Clone(ctx context.Context, live *project.Project, t remote.Transport, opts ...Option) (*VersionControl, *SyncReport, error) {
	listing, err := t.List(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list remote: %w", err)
	}
	var rootMeta *remote.RemoteRevision
	for i, r := range listing {
		if r.IsRoot() {
			rootMeta = &listing[i]
		}
	}
	latest := newestRevision(listing)
	if rootMeta == nil {
		return nil, nil, fmt.Errorf("%w: remote has no root", ErrRevisionNotFound)
	}
	payload, err := t.Fetch(ctx, rootMeta.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := remote.Verify(*rootMeta, payload); err != nil {
		return nil, nil, err
	}
	root, err := revision.Deserialize(payload)
	if err != nil {
		return nil, nil, err
	}
	root.Freeze()

	vc, err := FromTree(live, root, "", nil, nil, opts...)
	if err != nil {
		return nil, nil, err
	}
	report, err := vc.Pull(ctx, t)
	if err == nil {
		if _, ferr := vc.FindRevision(latest); ferr == nil {
			err = vc.Checkout(ctx, latest)
		}
	}
	if err != nil {
		_ = vc.Close()
		return nil, report, err
	}
	return vc, report, nil
}
