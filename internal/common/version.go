package common

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Set at build time via -ldflags "-X github.com/lfmartins/carteira/internal/common.version=...".
var (
	version   = "dev"
	gitCommit = "unknown"
)

// GetVersion returns the build version.
func GetVersion() string {
	return version
}

// GetGitCommit returns the git commit the binary was built from.
func GetGitCommit() string {
	return gitCommit
}

// LoadVersionFromFile loads version info from a .version file next to the
// binary. File values are fallbacks for when ldflags weren't provided.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	f, err := os.Open(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "version":
			if version == "dev" {
				version = strings.TrimSpace(val)
			}
		case "commit":
			if gitCommit == "unknown" {
				gitCommit = strings.TrimSpace(val)
			}
		}
	}
}
