// Package store persists a version control history in a bbolt database.
//
// Revisions are immutable, so each one is written once under its id. The
// tree shape, the head and the side documents are rewritten on every save
// inside the same transaction, which keeps a crash from leaving a head that
// points at an unsaved revision.
package store

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/remotecache"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/stash"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

// ErrNoHistory is returned by Load on a database that was never saved to.
var ErrNoHistory = errors.New("store: no history saved")

type Repository struct {
	db     *DB
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Repository)

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

// WithClock sets the clock handed to restored stashes and remote caches.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

func NewRepository(db *DB, opts ...Option) *Repository {
	r := &Repository{db: db, logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveResult counts what one Save wrote.
type SaveResult struct {
	Written int
	Total   int
}

// Save writes vc in one transaction. Revisions already stored are left
// alone.
func (r *Repository) Save(vc *vcs.VersionControl) (SaveResult, error) {
	var res SaveResult
	revs := vc.Revisions()
	headID := vc.HeadRevision().ID()
	stashes := vc.Stashes().Serialize()
	cache := vc.RemoteCache().Serialize()

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketRevisions)
		entries := make([]treeEntry, 0, len(revs))
		for _, rev := range revs {
			e := treeEntry{id: rev.ID()}
			if p := rev.Parent(); p != nil {
				e.parent = p.ID()
			}
			entries = append(entries, e)
			if b.Get([]byte(rev.ID())) != nil {
				continue
			}
			if err := putDoc(tx, BucketRevisions, rev.ID(), rev.Serialize()); err != nil {
				return fmt.Errorf("store revision %s: %w", rev.ID(), err)
			}
			res.Written++
		}
		res.Total = len(entries)
		if err := writeTree(tx, entries); err != nil {
			return err
		}
		meta := tx.Bucket(BucketMeta)
		if err := meta.Put([]byte(MetaRoot), []byte(revs[0].ID())); err != nil {
			return err
		}
		if err := meta.Put([]byte(MetaHead), []byte(headID)); err != nil {
			return err
		}
		if err := meta.Put([]byte(MetaFormat), []byte(FormatVersion)); err != nil {
			return err
		}
		if err := putDoc(tx, BucketDocs, DocStashes, stashes); err != nil {
			return err
		}
		return putDoc(tx, BucketDocs, DocRemote, cache)
	})
	if err != nil {
		return SaveResult{}, fmt.Errorf("save history: %w", err)
	}
	r.logger.Debug("history saved", zap.Int("written", res.Written), zap.Int("total", res.Total))
	return res, nil
}

// Load rebuilds a history for live. Unreadable revisions are skipped along
// with their descendants; an unreadable root fails the load. Unreadable
// stash or remote documents are replaced by empty ones.
func (r *Repository) Load(live *project.Project, opts ...vcs.Option) (*vcs.VersionControl, error) {
	var (
		root    *revision.Revision
		headID  string
		stashes *stash.Repository
		cache   *remotecache.Cache
	)
	err := r.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(BucketMeta)
		rootID := string(meta.Get([]byte(MetaRoot)))
		if rootID == "" {
			return ErrNoHistory
		}
		if f := string(meta.Get([]byte(MetaFormat))); f != FormatVersion {
			return fmt.Errorf("unsupported format %q", f)
		}
		headID = string(meta.Get([]byte(MetaHead)))

		entries, err := readTree(tx)
		if err != nil {
			return err
		}
		if len(entries) == 0 || entries[0].id != rootID || entries[0].parent != "" {
			return fmt.Errorf("%w: tree does not start at root %s", ErrCorrupt, rootID)
		}
		if root, err = r.loadRevision(tx, rootID); err != nil {
			return fmt.Errorf("root revision: %w", err)
		}
		root.Freeze()

		byID := map[string]*revision.Revision{rootID: root}
		for _, e := range entries[1:] {
			parent, ok := byID[e.parent]
			if !ok {
				r.logger.Warn("skipping stored revision without parent",
					zap.String("id", e.id), zap.String("parent", e.parent))
				continue
			}
			rev, err := r.loadRevision(tx, e.id)
			if err == nil {
				err = parent.AttachChild(rev)
			}
			if err != nil {
				r.logger.Warn("skipping stored revision", zap.String("id", e.id), zap.Error(err))
				continue
			}
			byID[e.id] = rev
		}

		stashes = r.loadStashes(tx)
		cache = r.loadRemoteCache(tx)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not open history: %w", err)
	}
	return vcs.FromTree(live, root, headID, stashes, cache, opts...)
}

func (r *Repository) loadRevision(tx *bbolt.Tx, id string) (*revision.Revision, error) {
	n, err := getDoc(tx, BucketRevisions, id)
	if err != nil {
		return nil, err
	}
	rev, err := revision.Deserialize(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rev.ID() != id {
		return nil, fmt.Errorf("%w: record %s holds revision %s", ErrCorrupt, id, rev.ID())
	}
	return rev, nil
}

func (r *Repository) loadStashes(tx *bbolt.Tx) *stash.Repository {
	n, err := getDoc(tx, BucketDocs, DocStashes)
	if err == nil {
		var s *stash.Repository
		if s, err = stash.Deserialize(n, stash.WithClock(r.now)); err == nil {
			return s
		}
	}
	if !errors.Is(err, ErrNotFound) {
		r.logger.Warn("dropping unreadable stashes", zap.Error(err))
	}
	return stash.NewRepository(stash.WithClock(r.now))
}

func (r *Repository) loadRemoteCache(tx *bbolt.Tx) *remotecache.Cache {
	n, err := getDoc(tx, BucketDocs, DocRemote)
	if err == nil {
		var c *remotecache.Cache
		if c, err = remotecache.Deserialize(n, remotecache.WithClock(r.now)); err == nil {
			return c
		}
	}
	if !errors.Is(err, ErrNotFound) {
		r.logger.Warn("dropping unreadable remote cache", zap.Error(err))
	}
	return remotecache.New(remotecache.WithClock(r.now))
}
