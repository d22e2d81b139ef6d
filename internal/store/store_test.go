package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func commitTrack(t *testing.T, vc *vcs.VersionControl, id string) *revision.Revision {
	t.Helper()
	tr := project.NewPianoTrack(id)
	tr.Path = id
	tr.Notes = []project.Note{{ID: id + "-n", Key: 60}}
	if err := vc.Live().Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rev, err := vc.Commit(context.Background(), "add "+id)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return rev
}

func newHistory(t *testing.T) *vcs.VersionControl {
	t.Helper()
	vc := vcs.New(project.New(), vcs.WithAuthor("ana"))
	t.Cleanup(func() { _ = vc.Close() })
	return vc
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTemp(t)
	repo := NewRepository(db)

	vc := newHistory(t)
	a := commitTrack(t, vc, "t1")
	b := commitTrack(t, vc, "t2")
	if err := vc.Checkout(ctx, a.ID()); err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	scratch := project.NewPianoTrack("scratch")
	scratch.Path = "scratch"
	if err := vc.Live().Add(scratch); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := vc.Stash(ctx, "wip", "scratch track", nil); err != nil {
		t.Fatalf("Stash: %v", err)
	}

	if _, err := repo.Save(vc); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Load(vc.Live().Snapshot())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer got.Close()

	if got.Root().ID() != vc.Root().ID() {
		t.Errorf("root = %s, want %s", got.Root().ID(), vc.Root().ID())
	}
	if got.HeadRevision().ID() != a.ID() {
		t.Errorf("head = %s, want %s", got.HeadRevision().ID(), a.ID())
	}
	if got.NumRevisions() != 3 {
		t.Errorf("NumRevisions = %d, want 3", got.NumRevisions())
	}
	loadedB, err := got.FindRevision(b.ID())
	if err != nil {
		t.Fatalf("FindRevision: %v", err)
	}
	if !revision.EquivalentItems(b.Items(), loadedB.Items()) {
		t.Error("revision items changed across save/load")
	}
	if !got.Stashes().Has("wip") {
		t.Error("stash lost")
	}
	if dirty, _ := got.IsDirty(ctx); dirty {
		t.Error("loaded history should match its live project")
	}
}

func TestSaveIsIncremental(t *testing.T) {
	repo := NewRepository(openTemp(t))
	vc := newHistory(t)
	commitTrack(t, vc, "t1")

	res, err := repo.Save(vc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Written != 2 || res.Total != 2 {
		t.Fatalf("first save = %+v", res)
	}

	commitTrack(t, vc, "t2")
	res, err = repo.Save(vc)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Written != 1 || res.Total != 3 {
		t.Fatalf("second save = %+v", res)
	}
}

func corrupt(t *testing.T, db *DB, id string) {
	t.Helper()
	err := db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketRevisions).Put([]byte(id), []byte("garbage that fails its checksum"))
	})
	if err != nil {
		t.Fatalf("corrupt: %v", err)
	}
}

func TestLoadSkipsCorruptRevision(t *testing.T) {
	db := openTemp(t)
	repo := NewRepository(db)
	vc := newHistory(t)
	a := commitTrack(t, vc, "t1")
	commitTrack(t, vc, "t2")
	if _, err := repo.Save(vc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupt(t, db, a.ID())

	got, err := repo.Load(project.New())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer got.Close()
	if got.NumRevisions() != 1 {
		t.Errorf("NumRevisions = %d, want 1 (a and its child dropped)", got.NumRevisions())
	}
	if got.HeadRevision() != got.Root() {
		t.Error("head should fall back to root")
	}
}

func TestLoadFailsOnCorruptRoot(t *testing.T) {
	db := openTemp(t)
	repo := NewRepository(db)
	vc := newHistory(t)
	if _, err := repo.Save(vc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	corrupt(t, db, vc.Root().ID())

	if _, err := repo.Load(project.New()); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load err = %v, want ErrCorrupt", err)
	}
}

func TestLoadEmptyDatabase(t *testing.T) {
	repo := NewRepository(openTemp(t))
	if _, err := repo.Load(project.New()); !errors.Is(err, ErrNoHistory) {
		t.Fatalf("Load err = %v, want ErrNoHistory", err)
	}
}

func TestMeta(t *testing.T) {
	db := openTemp(t)
	if _, err := db.GetMeta("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMeta err = %v", err)
	}
	if err := db.PutMeta("k", "v"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("k"); err != nil || v != "v" {
		t.Fatalf("GetMeta = %q, %v", v, err)
	}
}

func TestOpenSharedRefCounts(t *testing.T) {
	dir := t.TempDir()
	first, err := OpenShared(dir)
	if err != nil {
		t.Fatalf("OpenShared: %v", err)
	}
	second, err := OpenShared(dir)
	if err != nil {
		t.Fatalf("OpenShared: %v", err)
	}
	if first.DB != second.DB {
		t.Fatal("handles on the same directory should share a connection")
	}

	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	// closing twice must not release the other handle
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	if err := second.PutMeta("k", "v"); err != nil {
		t.Fatalf("second handle unusable after first closed: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatal(err)
	}

	third, err := OpenShared(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer third.Close()
	if v, err := third.GetMeta("k"); err != nil || v != "v" {
		t.Fatalf("GetMeta after reopen = %q, %v", v, err)
	}
}
