package conventions

import (
	"path/filepath"
	"runtime"
)

const (
	// DefaultDataDir is the default devsbx data directory name (relative to home).
	DefaultDataDir = ".devsbx"
	// SandboxesDir is the subdirectory where module versions are installed.
	SandboxesDir = "sandboxes"
	// StagingDir is the subdirectory for staged temporary files (firmware images...).
	StagingDir = "staging"
	// DBFile is the batch history database filename.
	DBFile = "devsbx.db"
	// ConfigFile is the app config filename.
	ConfigFile = "config.yaml"

	// BinDir is the install root subdirectory with the module executables.
	BinDir = "bin"
)

// SandboxesPath returns the base directory where module versions are installed.
func SandboxesPath(dataDir string) string {
	return filepath.Join(dataDir, SandboxesDir)
}

// StagingPath returns the directory for staged temporary files.
func StagingPath(dataDir string) string {
	return filepath.Join(dataDir, StagingDir)
}

// InstallRoot returns the install root of a module version.
func InstallRoot(baseDir, module, version string) string {
	return filepath.Join(baseDir, module, version)
}

// ExecutablePath returns the path of a module executable inside an install root.
func ExecutablePath(installRoot, module string) string {
	name := module
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(installRoot, BinDir, name)
}
