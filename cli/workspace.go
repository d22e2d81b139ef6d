package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/config"
	"github.com/javanhut/helio-vcs/internal/metrics"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/revision"
	"github.com/javanhut/helio-vcs/internal/seals"
	"github.com/javanhut/helio-vcs/internal/store"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

// ProjectFile is the live project document edited by the sequencer.
const ProjectFile = "project.helio"

var errNotInitialized = errors.New("not an hvcs project (run: hvcs init)")

// workspace is one opened project directory: its config, live project and
// history database.
type workspace struct {
	dir     string
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	db      *store.SharedDB
	repo    *store.Repository
	live    *project.Project
	vc      *vcs.VersionControl
}

func historyDir(dir string) string { return filepath.Join(dir, config.DirName) }

func projectPath(dir string) string { return filepath.Join(dir, ProjectFile) }

func loadProject(dir string) (*project.Project, error) {
	data, err := os.ReadFile(projectPath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return project.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read project: %w", err)
	}
	p, err := project.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return p, nil
}

func saveProject(dir string, p *project.Project) error {
	var buf bytes.Buffer
	if err := p.Save(&buf); err != nil {
		return err
	}
	tmp := projectPath(dir) + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write project: %w", err)
	}
	return os.Rename(tmp, projectPath(dir))
}

func vcsOptions(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) []vcs.Option {
	opts := []vcs.Option{vcs.WithLogger(logger), vcs.WithMetrics(m)}
	if author, err := cfg.Author(); err == nil {
		opts = append(opts, vcs.WithAuthor(author))
	}
	return opts
}

// openWorkspace loads the project and history under dir.
func openWorkspace(dir string) (*workspace, error) {
	if _, err := os.Stat(historyDir(dir)); err != nil {
		return nil, errNotInitialized
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	w := &workspace{dir: dir, cfg: cfg, logger: appLogger, metrics: metrics.New()}
	if w.live, err = loadProject(dir); err != nil {
		return nil, err
	}
	if w.db, err = store.OpenShared(historyDir(dir)); err != nil {
		return nil, err
	}
	w.repo = store.NewRepository(w.db.DB, store.WithLogger(w.logger))
	if w.vc, err = w.repo.Load(w.live, vcsOptions(cfg, w.logger, w.metrics)...); err != nil {
		_ = w.db.Close()
		return nil, err
	}
	return w, nil
}

// save writes the live project and the history.
func (w *workspace) save() error {
	if err := saveProject(w.dir, w.live); err != nil {
		return err
	}
	_, err := w.repo.Save(w.vc)
	return err
}

func (w *workspace) close() {
	_ = w.vc.Close()
	_ = w.db.Close()
}

// resolveRevision finds a revision by full id, id prefix, seal name or
// short hash. An empty ref or "HEAD" is the head revision.
func resolveRevision(vc *vcs.VersionControl, ref string) (*revision.Revision, error) {
	if ref == "" || strings.EqualFold(ref, "HEAD") {
		return vc.HeadRevision(), nil
	}
	if r, err := vc.FindRevision(ref); err == nil {
		return r, nil
	}
	var matches []*revision.Revision
	for _, r := range vc.Revisions() {
		if strings.HasPrefix(r.ID(), ref) || seals.Matches(ref, r.Hash()) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", vcs.ErrRevisionNotFound, ref)
	case 1:
		return matches[0], nil
	}
	return nil, fmt.Errorf("revision %q is ambiguous (%d matches)", ref, len(matches))
}

// selectItems picks the diff items of the given item ids. No ids selects
// nil, meaning everything.
func selectItems(diff []*revision.Item, ids []string) ([]*revision.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*revision.Item
	seen := map[string]bool{}
	for _, it := range diff {
		if want[it.ItemID()] {
			out = append(out, it)
			seen[it.ItemID()] = true
		}
	}
	for _, id := range ids {
		if !seen[id] {
			return nil, fmt.Errorf("item %s has no working changes", id)
		}
	}
	return out, nil
}
