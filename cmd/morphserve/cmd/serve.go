package cmd

import (
	"os"

	"github.com/bastiangx/morphserve/pkg/server"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve msgpack analysis requests over stdin/stdout",
	Long: `Start the msgpack IPC server. Requests are read from stdin and responses
written to stdout; logs go to stderr. See pkg/server for the protocol.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	if e.Stats()["entries"] > 0 {
		if _, err := e.Prepare(); err != nil {
			return err
		}
	} else {
		log.Warn("Empty lexicon, running until words are added and prepared...")
	}

	log.Debugf("Serving with engine %s, pid %d", e.Version(), os.Getpid())
	limits := server.Limits{MaxTopN: cfg.Server.MaxTopN, MaxTextLen: cfg.Server.MaxTextLen}
	return server.NewServer(e, limits, os.Stdin, os.Stdout).Start()
}
