package cmd

import (
	"os"
	"slices"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/internal/utils"
	"github.com/bastiangx/morphserve/pkg/engine"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const gh = "https://github.com/bastiangx/morphserve"

var showRuntime bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show current version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := logger.NewWithConfig(os.Stderr, "", log.InfoLevel, false, false, log.TextFormatter)

		styles := log.DefaultStyles()
		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
			Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		out.SetStyles(styles)

		out.Print("")
		out.Print("[ morphserve ] Morphological analysis for agglutinative text")
		out.Print("", "version", engine.Version)
		out.Print("")
		out.Print("use -h or --help to see available commands")
		out.Print("Github Repo", "gh", gh)

		if !showRuntime {
			return nil
		}
		pr, err := utils.NewPathResolver()
		if err != nil {
			return err
		}
		info := pr.GetRuntimeInfo()
		keys := make([]string, 0, len(info))
		for k := range info {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		out.Print("")
		for _, k := range keys {
			out.Print(k, "value", info[k])
		}
		out.Print("models", "dir", pr.GetModelDir(""))
		out.Print("config", "dir", pr.GetConfigDir())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&showRuntime, "runtime", false, "Also print paths and platform details")
	rootCmd.AddCommand(versionCmd)
}
