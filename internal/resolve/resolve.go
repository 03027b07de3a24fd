// Package resolve finds the executable to run for a command name.
package resolve

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound   = errors.New("command not found")
	ErrNoSuchFile = errors.New("No such file or directory")
)

// DefaultDirs are searched, in order, when no directories are configured.
var DefaultDirs = []string{"/bin", "/usr/bin"}

// Resolver resolves command names against a list of directories.
type Resolver struct {
	Dirs []string
}

// New creates a Resolver searching dirs, or DefaultDirs if dirs is empty.
func New(dirs []string) *Resolver {
	if len(dirs) == 0 {
		dirs = DefaultDirs
	}

	return &Resolver{Dirs: dirs}
}

// Resolve returns the path to execute for name. A name starting with `.` or
// `/` is used as-is and must be an executable file, otherwise ErrNoSuchFile
// is returned. Any other name is looked up in each directory in turn and
// ErrNotFound is returned if none has it.
func (r *Resolver) Resolve(name string) (string, error) {
	if IsPath(name) {
		if !isExecutable(name) {
			return "", ErrNoSuchFile
		}

		return name, nil
	}

	for _, dir := range r.Dirs {
		path := filepath.Join(dir, name)
		if isExecutable(path) {
			return path, nil
		}
	}

	return "", ErrNotFound
}

// IsPath reports whether name is a relative or absolute file path rather
// than a bare command name.
func IsPath(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/")
}

// isExecutable reports whether path is a non-directory the owner can
// execute.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o100 != 0
}
