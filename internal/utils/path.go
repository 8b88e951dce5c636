package utils

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/charmbracelet/log"
)

// Names that mark a directory as a model directory.
var modelFiles = []string{"morph.bin", "base.dict"}

// PathResolver locates model directories relative to the binary, the working
// directory and the config directory.
type PathResolver struct {
	executablePath string
	executableDir  string
	homeDir        string
	configDir      string
}

// NewPathResolver creates a new path resolver that determines the executable location
func NewPathResolver() (*PathResolver, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks to get the actual binary location
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Could not determine home directory: %v", err)
		homeDir = os.TempDir()
	}

	pr := &PathResolver{
		executablePath: execPath,
		executableDir:  filepath.Dir(execPath),
		homeDir:        homeDir,
		configDir:      getConfigDir(homeDir),
	}
	log.Debugf("PathResolver initialized: exec=%s, configDir=%s", execPath, pr.configDir)
	return pr, nil
}

// getConfigDir returns the appropriate config directory for the platform
func getConfigDir(homeDir string) string {
	switch runtime.GOOS {
	case "linux":
		if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
			return filepath.Join(configHome, "morphserve")
		}
		return filepath.Join(homeDir, ".config", "morphserve")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "morphserve")
		}
		return filepath.Join(homeDir, "AppData", "Roaming", "morphserve")
	default:
		return filepath.Join(homeDir, ".config", "morphserve")
	}
}

// GetModelDir resolves the directory holding the base model. It tries, in order:
// 1. User-specified path (if absolute)
// 2. Relative to current working directory
// 3. Relative to executable directory
// 4. models/ next to the executable, its parent and the config dir
// Without a match the user path is returned unchanged so the loader reports it.
func (pr *PathResolver) GetModelDir(userSpecifiedPath string) string {
	for _, path := range pr.modelDirCandidates(userSpecifiedPath) {
		if IsModelDir(path) {
			log.Debugf("Found model directory: %s", path)
			return path
		}
		log.Debugf("Model directory candidate not valid: %s", path)
	}
	return userSpecifiedPath
}

// IsModelDir reports whether path contains a base model file.
func IsModelDir(path string) bool {
	if !DirExists(path) {
		return false
	}
	for _, name := range modelFiles {
		if FileExists(filepath.Join(path, name)) {
			return true
		}
	}
	return false
}

func (pr *PathResolver) modelDirCandidates(userSpecifiedPath string) []string {
	var candidates []string
	if userSpecifiedPath != "" {
		if filepath.IsAbs(userSpecifiedPath) {
			return []string{userSpecifiedPath}
		}
		if cwd, err := os.Getwd(); err == nil {
			candidates = append(candidates, filepath.Join(cwd, userSpecifiedPath))
		}
		candidates = append(candidates, filepath.Join(pr.executableDir, userSpecifiedPath))
	}
	return append(candidates,
		filepath.Join(pr.executableDir, "models"),
		filepath.Join(filepath.Dir(pr.executableDir), "models"),
		filepath.Join(pr.configDir, "models"),
	)
}

// GetConfigDir returns the config directory
func (pr *PathResolver) GetConfigDir() string {
	return pr.configDir
}

// GetRuntimeInfo returns debug information about the current runtime environment
func (pr *PathResolver) GetRuntimeInfo() map[string]string {
	cwd, _ := os.Getwd()
	info := map[string]string{
		"executable_path": pr.executablePath,
		"executable_dir":  pr.executableDir,
		"current_dir":     cwd,
		"home_dir":        pr.homeDir,
		"config_dir":      pr.configDir,
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
	}
	for _, envVar := range []string{"HOME", "XDG_CONFIG_HOME", "APPDATA"} {
		if value := os.Getenv(envVar); value != "" {
			info["env_"+strings.ToLower(envVar)] = value
		}
	}
	return info
}
