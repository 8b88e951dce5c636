package cmd

import (
	"context"
	"os"

	"github.com/bastiangx/morphserve/pkg/config"
	"github.com/bastiangx/morphserve/pkg/dictionary"
	"github.com/bastiangx/morphserve/pkg/extract"
	"github.com/bastiangx/morphserve/pkg/store"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract [corpus]",
	Short: "Discover new words in a corpus",
	Long: `Scan a corpus (one document per line, stdin when omitted) and list
substrings that behave like words but are not in the lexicon.

Examples:
  morphserve extract corpus.txt
  morphserve extract corpus.txt --filter --pos-score -2
  morphserve extract corpus.txt --store out.db --dict-out found.dict`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addExtractFlags(extractCmd)
	extractCmd.Flags().Bool("filter", false, "Drop candidates below --pos-score")
	extractCmd.Flags().String("store", "", "Save candidates to this SQLite database")
	extractCmd.Flags().String("dict-out", "", "Write candidates as a user dictionary")
}

func addExtractFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Extract
	cmd.Flags().Int("min-count", def.MinCount, "Minimum occurrences of a candidate")
	cmd.Flags().Int("max-word-len", def.MaxWordLen, "Maximum candidate length in characters")
	cmd.Flags().Float64("min-score", def.MinScore, "Minimum cohesion/entropy score")
	cmd.Flags().Float64("pos-score", def.POSScore, "Minimum best tag affinity")
}

// extractSettings applies extraction flags that were set on top of cfg.
func extractSettings(cmd *cobra.Command, cfg *config.Config) (extract.Params, float64) {
	f := cmd.Flags()
	if f.Changed("min-count") {
		cfg.Extract.MinCount, _ = f.GetInt("min-count")
	}
	if f.Changed("max-word-len") {
		cfg.Extract.MaxWordLen, _ = f.GetInt("max-word-len")
	}
	if f.Changed("min-score") {
		cfg.Extract.MinScore, _ = f.GetFloat64("min-score")
	}
	if f.Changed("pos-score") {
		cfg.Extract.POSScore, _ = f.GetFloat64("pos-score")
	}
	return cfg.ExtractParams(), cfg.Extract.POSScore
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	params, posScore := extractSettings(cmd, cfg)
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	reader, closeFn, err := openCorpus(path)
	if err != nil {
		return err
	}
	defer closeFn()

	cands, err := e.ExtractWords(reader, params)
	if err != nil {
		return err
	}
	if filter, _ := cmd.Flags().GetBool("filter"); filter {
		cands = e.FilterExtractedWords(cands, posScore)
	}
	log.Debugf("Found %d candidates", len(cands))

	if dbPath, _ := cmd.Flags().GetString("store"); dbPath != "" {
		st, err := store.Open(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveCandidates(context.Background(), cands); err != nil {
			return err
		}
	}
	if dictPath, _ := cmd.Flags().GetString("dict-out"); dictPath != "" {
		f, err := os.Create(dictPath)
		if err != nil {
			return err
		}
		defer f.Close()
		if err := dictionary.WriteText(f, extract.Entries(cands)); err != nil {
			return err
		}
	}
	return printCandidates(os.Stdout, cands)
}
