package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bastiangx/morphserve/pkg/engine"
	"github.com/bastiangx/morphserve/pkg/morph"
	"github.com/bastiangx/morphserve/pkg/pipeline"
)

func TestInitConfigCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file was not created: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Engine.CacheSize != cfg.Engine.CacheSize || !loaded.Engine.Ordered || loaded.Extract.MinCount != cfg.Extract.MinCount {
		t.Errorf("reloaded config %+v differs from defaults %+v", loaded, cfg)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	tests := []struct {
		description string
		content     string
		check       func(t *testing.T, c *Config)
	}{
		{
			"valid file",
			"[engine]\nworkers = 3\noptions = [\"mmap\", \"no_transitions\"]\n[extract]\nmin_score = 0.5\n",
			func(t *testing.T, c *Config) {
				if c.Engine.Workers != 3 || len(c.Engine.Options) != 2 || c.Extract.MinScore != 0.5 {
					t.Errorf("unexpected config %+v", c)
				}
			},
		},
		{
			"wrong type keeps default",
			"[engine]\nworkers = \"many\"\ncache_size = 10\n[decode]\noov_penalty = 4\n",
			func(t *testing.T, c *Config) {
				if c.Engine.Workers != 0 {
					t.Errorf("workers = %d, want default 0", c.Engine.Workers)
				}
				if c.Engine.CacheSize != 10 {
					t.Errorf("cache_size = %d, want 10", c.Engine.CacheSize)
				}
				if c.Decode.OOVPenalty != 4 {
					t.Errorf("oov_penalty = %v, want 4", c.Decode.OOVPenalty)
				}
			},
		},
		{
			"broken syntax falls back",
			"[engine\nworkers = = 2\n",
			func(t *testing.T, c *Config) {
				if c.Engine.CacheSize != DefaultConfig().Engine.CacheSize {
					t.Errorf("expected defaults, got %+v", c)
				}
			},
		},
	}

	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(test.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := LoadConfig(path)
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			test.check(t, cfg)
		})
	}
}

func TestLoadConfigWithPriority(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.toml")
	os.WriteFile(path, []byte("[server]\nmax_top_n = 3\n"), 0644)

	cfg, used, err := LoadConfigWithPriority(path)
	if err != nil {
		t.Fatal(err)
	}
	if used != path || cfg.Server.MaxTopN != 3 {
		t.Errorf("LoadConfigWithPriority = %+v from %s", cfg.Server, used)
	}
}

func TestEngineOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.ModelPath = "/models"
	cfg.Engine.Ordered = false
	cfg.Engine.Options = []string{"mmap", "default_stopwords"}
	cfg.Decode.ClassPenalty = 3

	opts, err := cfg.EngineOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.ModelPath != "/models" || opts.Order != pipeline.Unordered || opts.Decode.ClassPenalty != 3 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.Flags != engine.OptionMmap|engine.OptionLoadDefaultStopwords {
		t.Errorf("flags = %v", opts.Flags)
	}

	cfg.Engine.Options = []string{"warp"}
	if _, err := cfg.EngineOptions(); !errors.Is(err, morph.ErrInvalidArgument) {
		t.Errorf("unknown option error = %v", err)
	}

	params := DefaultConfig().ExtractParams()
	if err := params.Validate(); err != nil {
		t.Errorf("default extract params invalid: %v", err)
	}
}

func TestRebuildConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".config", "morphserve", FileName)

	os.MkdirAll(filepath.Dir(path), 0755)
	os.WriteFile(path, []byte("[engine]\nworkers = 7\n"), 0644)

	if err := RebuildConfigFile(); err != nil {
		t.Fatalf("RebuildConfigFile: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Engine.Workers != DefaultConfig().Engine.Workers {
		t.Errorf("workers = %d after rebuild, want default", cfg.Engine.Workers)
	}
}
