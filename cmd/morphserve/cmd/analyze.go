package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bastiangx/morphserve/internal/cli"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/bastiangx/morphserve/pkg/stopwords"
	"github.com/bastiangx/morphserve/pkg/store"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [text...]",
	Short: "Analyze text into tagged morphemes",
	Long: `Analyze each argument, or every line of stdin when no argument is given.

Output is one line per result: document id, rank, score and the tokens.

Examples:
  morphserve analyze "깜짝 놀랐다"
  morphserve analyze -n 3 < corpus.txt
  morphserve analyze --store out.db < corpus.txt
  morphserve analyze -i`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().IntP("top", "n", 1, "Number of results per text")
	analyzeCmd.Flags().BoolP("interactive", "i", false, "Read lines interactively")
	analyzeCmd.Flags().Bool("stopwords", false, "Hide bundled stopwords in the output")
	analyzeCmd.Flags().String("store", "", "Save results to this SQLite database instead of printing")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if _, err := e.Prepare(); err != nil {
		return err
	}

	topN, _ := cmd.Flags().GetInt("top")
	var stop *stopwords.Set
	if on, _ := cmd.Flags().GetBool("stopwords"); on {
		stop = stopwords.Default()
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); interactive {
		var filter cli.TokenFilter
		if stop != nil {
			filter = stop
		}
		return cli.NewInputHandler(e, topN, cfg.Server.MaxTextLen, filter).Start(os.Stdin, os.Stdout)
	}

	var reader morph.Reader
	if len(args) > 0 {
		reader = morph.SliceReader(args)
	} else {
		lr, closeFn, err := openCorpus("-")
		if err != nil {
			return err
		}
		defer closeFn()
		reader = lr
	}

	ctx := context.Background()
	if path, _ := cmd.Flags().GetString("store"); path != "" {
		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()

		// Analysis keeps running while a single writer saves finished documents.
		ch := make(chan morph.Document, 64)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer close(ch)
			_, err := e.AnalyzeStream(gctx, topN, reader, morph.ChanReceiver(gctx, ch))
			return err
		})
		var saved int
		g.Go(func() error {
			var err error
			saved, err = st.Drain(gctx, ch)
			return err
		})
		err = g.Wait()
		log.Debugf("Stored %d documents in %s", saved, path)
		return err
	}

	out := newResultWriter(os.Stdout, stop)
	n, err := e.AnalyzeStream(ctx, topN, reader, out)
	if flushErr := out.Flush(); err == nil {
		err = flushErr
	}
	if err != nil {
		return fmt.Errorf("analyzed %d documents: %w", n, err)
	}
	log.Debugf("Analyzed %d documents", n)
	return nil
}
