package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/config"
	"github.com/javanhut/helio-vcs/internal/logging"
	"github.com/javanhut/helio-vcs/internal/store"
	"github.com/javanhut/helio-vcs/internal/vcs"
)

var rootCmd = &cobra.Command{
	Use:   "hvcs",
	Short: "hvcs is version control for Helio projects",
	Long: `hvcs records the history of a Helio sequencer project: tracks, notes,
automation and patterns. Changes are committed as revisions, can be stashed,
checked out and synchronized with an HTTP remote.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var initialCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize",
	Long:  "Initializes version control for the project in the working directory",
	Args:  cobra.NoArgs,
	RunE:  initCommand,
}

var (
	workDir  string
	logLevel string
	jsonLogs bool
	noColor  bool

	appLogger = zap.NewNop()
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides log.level)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "Log as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Core commands
	rootCmd.AddCommand(initialCmd, statusCmd, commitCmd, logCmd, showCmd, checkoutCmd, resetCmd)
	rootCmd.AddCommand(stashCmd)
	stashCmd.AddCommand(stashPushCmd, stashPopCmd, stashListCmd, stashShowCmd)

	// MIDI
	rootCmd.AddCommand(importMidiCmd, exportMidiCmd)

	// Remote commands
	rootCmd.AddCommand(serveCmd, pushCmd, pullCmd, cloneCmd)

	rootCmd.AddCommand(configCmd)
}

// setup configures colors and logging from config and flags.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(workDir)
	if err != nil {
		return err
	}
	if noColor || !cfg.Color.UI {
		colors.SetColorEnabled(false)
	}
	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if appLogger, err = logging.New(level, jsonLogs); err != nil {
		return err
	}
	return nil
}

func initCommand(cmd *cobra.Command, args []string) error {
	dir, err := filepath.Abs(workDir)
	if err != nil {
		return err
	}
	if _, err := os.Stat(historyDir(dir)); err == nil {
		return fmt.Errorf("project already initialized in %s", dir)
	}
	if err := os.MkdirAll(historyDir(dir), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", config.DirName, err)
	}

	live, err := loadProject(dir)
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	vc := vcs.New(live, vcsOptions(cfg, appLogger, nil)...)
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

	fmt.Printf("%s hvcs project in %s\n", colors.Success("Initialized"), dir)
	if n := live.Len(); n > 2 {
		fmt.Println(colors.Dim("Existing tracks show up as working changes; run: hvcs commit -m \"initial\""))
	}
	return nil
}

// withWorkspace opens the workspace, runs fn and closes it again. When save
// is set the project and history are written back after fn succeeds.
func withWorkspace(save bool, fn func(w *workspace) error) error {
	w, err := openWorkspace(workDir)
	if err != nil {
		return err
	}
	defer w.close()
	if err := fn(w); err != nil {
		return err
	}
	if save {
		return w.save()
	}
	return nil
}
