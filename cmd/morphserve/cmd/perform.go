package cmd

import (
	"context"
	"os"

	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/bastiangx/morphserve/pkg/store"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var performCmd = &cobra.Command{
	Use:   "perform [corpus]",
	Short: "Extract new words, add them, then analyze the same corpus",
	Long: `Run word extraction over a corpus, add the accepted words to the lexicon,
prepare it and analyze every document of the same corpus. The corpus is read
once.

Examples:
  morphserve perform corpus.txt -n 2
  morphserve perform corpus.txt --store out.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPerform,
}

func init() {
	rootCmd.AddCommand(performCmd)
	addExtractFlags(performCmd)
	performCmd.Flags().IntP("top", "n", 1, "Number of results per document")
	performCmd.Flags().String("store", "", "Save candidates and results to this SQLite database")
}

func runPerform(cmd *cobra.Command, args []string) error {
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

	topN, _ := cmd.Flags().GetInt("top")
	ctx := context.Background()

	var recv morph.Receiver
	var st *store.Store
	out := newResultWriter(os.Stdout, nil)
	if dbPath, _ := cmd.Flags().GetString("store"); dbPath != "" {
		if st, err = store.Open(dbPath); err != nil {
			return err
		}
		defer st.Close()
		recv = st.Receiver(ctx)
	} else {
		recv = out
	}

	accepted, n, err := e.Perform(ctx, topN, reader, recv, params, posScore)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}
	if st != nil {
		if err := st.SaveCandidates(ctx, accepted); err != nil {
			return err
		}
	}
	log.Infof("Added %d words, analyzed %d documents", len(accepted), n)
	return nil
}
