package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/config"
	"github.com/javanhut/helio-vcs/internal/metrics"
	"github.com/javanhut/helio-vcs/internal/project"
	"github.com/javanhut/helio-vcs/internal/remote"
	"github.com/javanhut/helio-vcs/internal/store"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an HTTP remote",
	Long: `Serves an in-memory revision registry over HTTP. With --data the
registry is loaded from and written back to a bundle file; with --blobs the
payloads are kept in a content-addressed directory.

Examples:
  hvcs serve --addr :7070 --data remote.hpck`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local revisions to the remote",
	Args:  cobra.NoArgs,
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch remote revisions into the local tree",
	Long: `Fetches the revisions the local tree lacks. Pulling never touches the
live project; use checkout to move to a pulled revision.

With --watch hvcs keeps running and syncs both ways whenever the remote
cache is stale or local revisions are unpushed, every sync.interval.`,
	Args: cobra.NoArgs,
	RunE: runPull,
}

var cloneCmd = &cobra.Command{
	Use:   "clone <url> [dir]",
	Short: "Create a project from a remote",
	Long:  "Pulls the whole history of a remote into dir (the --dir project directory by default) and checks out its newest revision.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runClone,
}

var (
	serveAddr  string
	serveData  string
	serveBlobs string
	remoteURL  string
	pullWatch  bool
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":7070", "Listen address")
	serveCmd.Flags().StringVar(&serveData, "data", "", "Bundle file to load and save the registry")
	serveCmd.Flags().StringVar(&serveBlobs, "blobs", "", "Directory for payload blobs (in memory when empty)")
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().StringVar(&remoteURL, "remote", "", "Remote URL (overrides remote.url)")
	}
	pullCmd.Flags().BoolVar(&pullWatch, "watch", false, "Keep syncing in the background")
}

func newTransport(url string) *remote.HTTPTransport {
	return remote.NewHTTPTransport(url, &http.Client{Timeout: 30 * time.Second})
}

func (w *workspace) transport() (*remote.HTTPTransport, error) {
	url := remoteURL
	if url == "" {
		url = w.cfg.Remote.URL
	}
	if url == "" {
		return nil, errors.New("no remote configured (run: hvcs config remote.url <url>)")
	}
	return newTransport(url), nil
}

func printReport(verb string, r *vcs.SyncReport, count int) {
	if r == nil {
		return
	}
	fmt.Printf("%s %d revision(s)\n", colors.Success(verb), count)
	if r.Skipped > 0 {
		fmt.Printf("%s %d revision(s)\n", colors.Warning("Skipped"), r.Skipped)
		for _, err := range r.Errors {
			fmt.Printf("  %s\n", colors.Dim(err.Error()))
		}
	}
}

func runPush(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		t, err := w.transport()
		if err != nil {
			return err
		}
		report, err := w.vc.Push(cmd.Context(), t)
		if err != nil {
			return err
		}
		printReport("Pushed", report, report.Pushed)
		return nil
	})
}

func runPull(cmd *cobra.Command, args []string) error {
	return withWorkspace(true, func(w *workspace) error {
		ctx := cmd.Context()
		t, err := w.transport()
		if err != nil {
			return err
		}
		report, err := w.vc.Pull(ctx, t)
		if err != nil {
			return err
		}
		printReport("Pulled", report, report.Attached)
		if !pullWatch {
			return nil
		}

		type result struct {
			report *vcs.SyncReport
			err    error
		}
		results := make(chan result, 1)
		interval := w.cfg.Sync.Interval
		if err := w.vc.StartAutoSync(t, interval, func(r *vcs.SyncReport, err error) {
			select {
			case results <- result{r, err}:
			case <-ctx.Done():
			}
		}); err != nil {
			return err
		}
		fmt.Printf("%s every %s, press Ctrl-C to stop\n", colors.Info("Watching"), interval)
		for {
			select {
			case <-ctx.Done():
				return nil
			case res := <-results:
				if res.err != nil {
					w.logger.Warn("sync failed", zap.Error(res.err))
					continue
				}
				printReport("Synced", res.report, res.report.Attached+res.report.Pushed)
				if err := w.save(); err != nil {
					return err
				}
			}
		}
	})
}

func runClone(cmd *cobra.Command, args []string) error {
	dir := workDir
	if len(args) == 2 {
		dir = args[1]
	}
	if _, err := os.Stat(historyDir(dir)); err == nil {
		return fmt.Errorf("%s already holds an hvcs project", dir)
	}
	if err := os.MkdirAll(historyDir(dir), 0755); err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	live := project.New()
	vc, report, err := vcs.Clone(cmd.Context(), live, newTransport(args[0]), vcsOptions(cfg, appLogger, nil)...)
	if err != nil {
		return err
	}
	defer vc.Close()

	db, err := store.OpenShared(historyDir(dir))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := saveProject(dir, live); err != nil {
		return err
	}
	if _, err := store.NewRepository(db.DB, store.WithLogger(appLogger)).Save(vc); err != nil {
		return err
	}
	if err := config.SetValue(dir, "remote.url", args[0], false); err != nil {
		return err
	}
	printReport("Cloned", report, vc.NumRevisions())
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	var blobs cas.CAS
	if serveBlobs != "" {
		fc, err := cas.NewFileCAS(serveBlobs)
		if err != nil {
			return err
		}
		blobs = fc
	}
	backend := remote.NewMemoryRemote(blobs)
	if serveData != "" {
		data, err := os.ReadFile(serveData)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return err
		default:
			n, err := backend.Import(ctx, data)
			if err != nil {
				return fmt.Errorf("load %s: %w", serveData, err)
			}
			appLogger.Info("registry loaded", zap.String("file", serveData), zap.Int("revisions", n))
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.New().Register(reg); err != nil {
		return err
	}
	srv := remote.NewServer(backend, remote.WithServerLogger(appLogger), remote.WithMetricsGatherer(reg))
	fmt.Printf("%s on %s\n", colors.Info("Serving"), serveAddr)
	if err := srv.Run(ctx, serveAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	if serveData == "" {
		return nil
	}
	exportCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	data, err := backend.Export(exportCtx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(serveData, data, 0644); err != nil {
		return err
	}
	appLogger.Info("registry saved", zap.String("file", serveData), zap.Int("revisions", backend.Len()))
	return nil
}
