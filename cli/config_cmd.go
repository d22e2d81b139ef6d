package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/javanhut/helio-vcs/internal/colors"
	"github.com/javanhut/helio-vcs/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get and set configuration options",
	Long: `Get and set hvcs configuration options.

Configuration can be set at two levels:
- Global (~/.hvcsconfig) - applies to all projects
- Project (.hvcs/config) - applies to the current project only

Examples:
  hvcs config user.name "Your Name"
  hvcs config --global user.email "you@example.com"
  hvcs config remote.url http://localhost:7070
  hvcs config --list
  hvcs config sync.interval`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var (
	configGlobal bool
	configList   bool
)

func init() {
	configCmd.Flags().BoolVar(&configGlobal, "global", false, "Use global config file")
	configCmd.Flags().BoolVar(&configList, "list", false, "List all configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	switch {
	case configList || len(args) == 0:
		return listConfig()
	case len(args) == 1:
		v, err := config.GetValue(workDir, args[0])
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	default:
		if err := config.SetValue(workDir, args[0], args[1], configGlobal); err != nil {
			return err
		}
		scope := "project"
		if configGlobal {
			scope = "global"
		}
		fmt.Printf("%s %s = %s (%s)\n", colors.Success("Set"), args[0], colors.Info(args[1]), scope)
		return nil
	}
}

func listConfig() error {
	keys := make([]string, 0, len(config.Keys))
	for k := range config.Keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println(colors.SectionHeader("Configuration:"))
	for _, k := range keys {
		v, err := config.GetValue(workDir, k)
		if err != nil {
			return err
		}
		shown := colors.Info(v)
		if v == "" {
			shown = colors.Dim("(not set)")
		}
		fmt.Printf("  %s = %s  %s\n", k, shown, colors.Dim("# "+config.Keys[k]))
	}
	return nil
}
