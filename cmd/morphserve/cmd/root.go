// Package cmd contains all CLI commands for morphserve.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bastiangx/morphserve/internal/logger"
	"github.com/bastiangx/morphserve/internal/utils"
	"github.com/bastiangx/morphserve/pkg/config"
	"github.com/bastiangx/morphserve/pkg/engine"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "morphserve",
	Short: "Morphological analysis for agglutinative text",
	Long: `morphserve segments raw text into morphemes, tags each one with a part of
speech and ranks competing segmentations.

It also discovers new vocabulary in unlabeled corpora and merges it, or
user dictionaries, back into its lexicon.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Setup(viper.GetBool("debug"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	sigHandler()
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		return err
	}
	return nil
}

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/morphserve/morphserve.toml)")
	pf.BoolP("debug", "d", false, "Toggle debug mode")
	pf.String("model", "", "Directory containing morph.bin or base.dict")
	pf.Int("workers", 0, "Streaming workers (0 = number of CPUs)")
	pf.Float64("cutoff", 0, "Decode pruning threshold in [0, 1]")
	pf.Bool("unordered", false, "Deliver streamed results in completion order")
	pf.StringSlice("user-dict", nil, "User dictionary files to load (text, YAML or binary)")

	viper.BindPFlag("debug", pf.Lookup("debug"))
	viper.BindPFlag("engine.model_path", pf.Lookup("model"))
	viper.BindPFlag("engine.workers", pf.Lookup("workers"))
	viper.BindPFlag("engine.cutoff_threshold", pf.Lookup("cutoff"))
	viper.BindPFlag("engine.unordered", pf.Lookup("unordered"))
	viper.BindPFlag("engine.user_dicts", pf.Lookup("user-dict"))
}

// initConfig reads ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("MORPHSERVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// loadConfig reads the TOML file, then applies env and flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, path, err := config.LoadConfigWithPriority(cfgFile)
	if err != nil {
		return nil, err
	}
	log.Debugf("Using config: %s", config.GetActiveConfigPath(path))

	if overridden(cmd, "model", "ENGINE_MODEL_PATH") {
		cfg.Engine.ModelPath = viper.GetString("engine.model_path")
	}
	if overridden(cmd, "workers", "ENGINE_WORKERS") {
		cfg.Engine.Workers = viper.GetInt("engine.workers")
	}
	if overridden(cmd, "cutoff", "ENGINE_CUTOFF_THRESHOLD") {
		cfg.Engine.CutoffThreshold = viper.GetFloat64("engine.cutoff_threshold")
	}
	if overridden(cmd, "unordered", "ENGINE_UNORDERED") {
		cfg.Engine.Ordered = !viper.GetBool("engine.unordered")
	}
	return cfg, nil
}

// overridden reports whether a flag was set or its MORPHSERVE_ variable exists.
func overridden(cmd *cobra.Command, flag, env string) bool {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		return true
	}
	_, ok := os.LookupEnv("MORPHSERVE_" + env)
	return ok
}

// newEngine builds an engine from cfg and loads --user-dict files. It
// does not prepare.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}
	if opts.ModelPath != "" && !utils.IsModelDir(opts.ModelPath) {
		if pr, err := utils.NewPathResolver(); err == nil {
			opts.ModelPath = pr.GetModelDir(opts.ModelPath)
		}
	}
	log.Debug("Engine options:",
		"model", opts.ModelPath,
		"workers", opts.Workers,
		"order", opts.Order,
		"cutoff", opts.CutoffThreshold)

	e, err := engine.New(opts)
	if err != nil {
		return nil, err
	}
	for _, path := range viper.GetStringSlice("engine.user_dicts") {
		n, err := e.LoadUserDictionary(path)
		if err != nil {
			return nil, fmt.Errorf("loading user dictionary %s: %w", path, err)
		}
		log.Debugf("Loaded %d entries from %s", n, path)
	}
	return e, nil
}
