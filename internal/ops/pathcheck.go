package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/hpungsan/noteboard/internal/config"
	"github.com/hpungsan/noteboard/internal/errors"
)

// ValidateExportDir checks a directory that notes are about to be written into:
//  1. no ".." components;
//  2. the directory is the default exports dir or one of allowed_paths, unless
//     allow_unsafe_paths is set;
//  3. the directory itself is not a symlink.
//
// Files are written directly into the directory and opened without following a
// symlink in the final component, so a swapped subdirectory cannot redirect a write.
func ValidateExportDir(fs afero.Fs, dir, defaultDir string, cfg *config.Config) (string, error) {
	if dir == "" {
		return "", errors.NewInvalidRequest("directory is required")
	}
	if containsTraversal(dir) {
		return "", errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	abs, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return "", errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if cfg == nil || !cfg.AllowUnsafePaths {
		allowed, err := allowedDirs(defaultDir, cfg)
		if err != nil {
			return "", err
		}
		if !isAllowedDir(abs, allowed) {
			return "", errors.NewInvalidRequest(fmt.Sprintf("directory is not allowed; allowed: %v", allowed))
		}
	}

	if isSymlink(fs, abs) {
		return "", errors.NewInvalidRequest("directory must not be a symlink")
	}
	return abs, nil
}

// allowedDirs returns the default dir plus absolute allowed_paths entries, cleaned.
func allowedDirs(defaultDir string, cfg *config.Config) ([]string, error) {
	dirs := []string{defaultDir}
	if cfg != nil {
		for _, p := range cfg.AllowedPaths {
			if filepath.IsAbs(p) {
				dirs = append(dirs, p)
			}
		}
	}

	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		abs, err := filepath.Abs(filepath.Clean(d))
		if err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid allowed path: %v", err))
		}
		// A symlinked allowed path is matched by its target.
		if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(abs)
			if err != nil {
				return nil, errors.NewInvalidRequest(fmt.Sprintf("cannot resolve symlink in allowed path: %v", err))
			}
			abs = resolved
		}
		out = append(out, abs)
	}
	return out, nil
}

func isAllowedDir(dir string, allowed []string) bool {
	for _, a := range allowed {
		if filepath.Clean(dir) == filepath.Clean(a) {
			return true
		}
	}
	return false
}

func isSymlink(fs afero.Fs, path string) bool {
	l, ok := fs.(afero.Lstater)
	if !ok {
		return false
	}
	info, _, err := l.LstatIfPossible(path)
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// containsTraversal checks if path contains a ".." component.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
