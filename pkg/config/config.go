/*
Package config manages TOML config for morphserve engines, the server and the CLI.
*/
package config

import (
	"os"
	"path/filepath"

	"github.com/bastiangx/morphserve/internal/utils"
	"github.com/bastiangx/morphserve/pkg/analyzer"
	"github.com/bastiangx/morphserve/pkg/engine"
	"github.com/bastiangx/morphserve/pkg/extract"
	"github.com/bastiangx/morphserve/pkg/pipeline"
	"github.com/charmbracelet/log"
)

// FileName is the config file looked up inside the config directory.
const FileName = "morphserve.toml"

// Config holds the entire config structure
type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Extract ExtractConfig `toml:"extract"`
	Decode  DecodeConfig  `toml:"decode"`
	Server  ServerConfig  `toml:"server"`
}

// EngineConfig has engine construction options.
type EngineConfig struct {
	Workers         int      `toml:"workers"`
	ModelPath       string   `toml:"model_path"`
	Options         []string `toml:"options"`
	CutoffThreshold float64  `toml:"cutoff_threshold"`
	Ordered         bool     `toml:"ordered"`
	CacheSize       int      `toml:"cache_size"`
}

// ExtractConfig holds word extraction defaults.
type ExtractConfig struct {
	MinCount   int     `toml:"min_count"`
	MaxWordLen int     `toml:"max_word_len"`
	MinScore   float64 `toml:"min_score"`
	POSScore   float64 `toml:"pos_score"`
}

// DecodeConfig holds out-of-vocabulary penalties.
type DecodeConfig struct {
	OOVPenalty     float64 `toml:"oov_penalty"`
	OOVCharPenalty float64 `toml:"oov_char_penalty"`
	ClassPenalty   float64 `toml:"class_penalty"`
}

// ServerConfig has server request limits.
type ServerConfig struct {
	MaxTopN    int `toml:"max_top_n"`
	MaxTextLen int `toml:"max_text_len"`
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		execDir, execErr := utils.GetExecutableDir()
		if execErr != nil {
			return "", execErr
		}
		return execDir, nil
	}
	primaryPath := filepath.Join(homeDir, ".config", "morphserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "morphserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for morphserve.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, FileName), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/morphserve/morphserve.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	dec := analyzer.DefaultOptions()
	return &Config{
		Engine: EngineConfig{
			Workers:         0,
			ModelPath:       "",
			Options:         []string{"mmap"},
			CutoffThreshold: 0,
			Ordered:         true,
			CacheSize:       analyzer.DefaultCacheSize,
		},
		Extract: ExtractConfig{
			MinCount:   extract.DefaultMinCount,
			MaxWordLen: extract.DefaultMaxWordLen,
			MinScore:   extract.DefaultMinScore,
			POSScore:   extract.DefaultPOSScore,
		},
		Decode: DecodeConfig{
			OOVPenalty:     dec.OOVPenalty,
			OOVCharPenalty: dec.OOVCharPenalty,
			ClassPenalty:   dec.ClassPenalty,
		},
		Server: ServerConfig{
			MaxTopN:    16,
			MaxTextLen: 4096,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every well-typed value of a file that failed strict decoding
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "engine"); ok {
		extractEngineConfig(section, &config.Engine)
	}
	if section, ok := utils.ExtractSection(tempConfig, "extract"); ok {
		extractExtractConfig(section, &config.Extract)
	}
	if section, ok := utils.ExtractSection(tempConfig, "decode"); ok {
		extractDecodeConfig(section, &config.Decode)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	return config, nil
}

func extractEngineConfig(data map[string]any, eng *EngineConfig) {
	if val, ok := utils.ExtractInt64(data, "workers"); ok {
		eng.Workers = val
	}
	if val, ok := utils.ExtractString(data, "model_path"); ok {
		eng.ModelPath = val
	}
	if val, ok := utils.ExtractStrings(data, "options"); ok {
		eng.Options = val
	}
	if val, ok := utils.ExtractFloat(data, "cutoff_threshold"); ok {
		eng.CutoffThreshold = val
	}
	if val, ok := utils.ExtractBool(data, "ordered"); ok {
		eng.Ordered = val
	}
	if val, ok := utils.ExtractInt64(data, "cache_size"); ok {
		eng.CacheSize = val
	}
}

func extractExtractConfig(data map[string]any, ext *ExtractConfig) {
	if val, ok := utils.ExtractInt64(data, "min_count"); ok {
		ext.MinCount = val
	}
	if val, ok := utils.ExtractInt64(data, "max_word_len"); ok {
		ext.MaxWordLen = val
	}
	if val, ok := utils.ExtractFloat(data, "min_score"); ok {
		ext.MinScore = val
	}
	if val, ok := utils.ExtractFloat(data, "pos_score"); ok {
		ext.POSScore = val
	}
}

func extractDecodeConfig(data map[string]any, dec *DecodeConfig) {
	if val, ok := utils.ExtractFloat(data, "oov_penalty"); ok {
		dec.OOVPenalty = val
	}
	if val, ok := utils.ExtractFloat(data, "oov_char_penalty"); ok {
		dec.OOVCharPenalty = val
	}
	if val, ok := utils.ExtractFloat(data, "class_penalty"); ok {
		dec.ClassPenalty = val
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_top_n"); ok {
		server.MaxTopN = val
	}
	if val, ok := utils.ExtractInt64(data, "max_text_len"); ok {
		server.MaxTextLen = val
	}
}

// RebuildConfigFile force creates a new morphserve.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	configDir := filepath.Dir(defaultPath)
	if err := utils.EnsureDir(configDir); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// EngineOptions converts the engine and decode sections into engine options.
func (c *Config) EngineOptions() (engine.Options, error) {
	flags, err := engine.ParseFlags(c.Engine.Options)
	if err != nil {
		return engine.Options{}, err
	}
	order := pipeline.Unordered
	if c.Engine.Ordered {
		order = pipeline.Ordered
	}
	return engine.Options{
		Workers:         c.Engine.Workers,
		ModelPath:       c.Engine.ModelPath,
		Flags:           flags,
		Order:           order,
		CacheSize:       c.Engine.CacheSize,
		CutoffThreshold: c.Engine.CutoffThreshold,
		Decode: analyzer.Options{
			OOVPenalty:     c.Decode.OOVPenalty,
			OOVCharPenalty: c.Decode.OOVCharPenalty,
			ClassPenalty:   c.Decode.ClassPenalty,
		},
	}, nil
}

// ExtractParams returns the extraction thresholds.
func (c *Config) ExtractParams() extract.Params {
	return extract.Params{
		MinCount:   c.Extract.MinCount,
		MaxWordLen: c.Extract.MaxWordLen,
		MinScore:   c.Extract.MinScore,
	}
}
