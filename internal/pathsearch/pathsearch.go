// Package pathsearch finds the real program behind an alias. When loggy is
// installed as a symlink named after the program it wraps, a plain PATH
// lookup would find loggy itself; LookPathExcluding skips it.
package pathsearch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when no executable candidate exists.
var ErrNotFound = errors.New("command not found")

// LookPathExcluding searches dirs (a PATH-style list) for an executable
// named like the base name of name whose canonical path is not self. A name
// containing a slash is used as is when it is an executable other than self;
// a path to an alias of self falls back to the search by base name.
func LookPathExcluding(name, pathList, self string) (string, error) {
	if name == "" {
		return "", ErrNotFound
	}

	if strings.ContainsRune(name, filepath.Separator) {
		ok, err := isExecutable(name, self)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
		if !isSelf(name, self) {
			return "", fmt.Errorf("%s: %w", name, ErrNotFound)
		}
	}

	base := filepath.Base(name)
	for _, dir := range filepath.SplitList(pathList) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, base)
		ok, err := isExecutable(candidate, self)
		if err != nil {
			return "", err
		}
		if ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, ErrNotFound)
}

// Self returns the canonical path of the running executable.
func Self() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get current executable path: %w", err)
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize current executable path: %w", err)
	}
	return exe, nil
}

func isSelf(path, self string) bool {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	return resolved == self
}

func isExecutable(path, self string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return false, nil
		}
		return false, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	if resolved == self {
		return false, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return false, nil
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0, nil
}
