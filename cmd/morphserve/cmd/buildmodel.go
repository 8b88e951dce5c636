package cmd

import (
	"os"

	"github.com/bastiangx/morphserve/pkg/dictionary"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var buildModelCmd = &cobra.Command{
	Use:   "build-model <dictionary>",
	Short: "Compile a text or YAML dictionary into a binary model",
	Long: `Read a dictionary (form<TAB>tag[<TAB>score] lines or YAML) and an optional
tag transition table (from<TAB>to<TAB>weight lines, "^" as from for the first
token) and write morph.bin into the output directory.

Example:
  morphserve build-model base.dict --transitions tags.tsv -o models`,
	Args: cobra.ExactArgs(1),
	RunE: runBuildModel,
}

func init() {
	rootCmd.AddCommand(buildModelCmd)
	buildModelCmd.Flags().StringP("output", "o", "models", "Output model directory")
	buildModelCmd.Flags().String("transitions", "", "Tag transition table")
}

func runBuildModel(cmd *cobra.Command, args []string) error {
	entries, err := dictionary.LoadUserDictionary(args[0])
	if err != nil {
		return err
	}

	var transitions []dictionary.TransitionRecord
	if path, _ := cmd.Flags().GetString("transitions"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		if transitions, err = dictionary.ParseTransitions(f, path); err != nil {
			return err
		}
	}

	dir, _ := cmd.Flags().GetString("output")
	out, err := dictionary.WriteModel(dir, entries, transitions)
	if err != nil {
		return err
	}
	log.Infof("Wrote %s: %d entries, %d transitions", out, len(entries), len(transitions))
	return nil
}
