// Package fsutil holds small filesystem helpers shared by the capture
// providers and the CLI.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ReadFileScoped reads a file by opening a root at the file's directory,
// so a crafted base name cannot escape it.
func ReadFileScoped(path string) ([]byte, error) {
	dir, base, err := split(path)
	if err != nil {
		return nil, err
	}

	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	defer root.Close()

	file, err := root.Open(base)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(file)
}

// EnsureWritable creates dir if needed and checks that a file can be
// created in it. The check file is removed again.
func EnsureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".clouddiag-writecheck-")
	if err != nil {
		return err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}

// WriteFileAtomic replaces path with data so that readers never observe a
// partial file. Missing parent directories are created. An existing file
// keeps its permission bits; new files get perm.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if _, _, err := split(path); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if info, err := os.Stat(path); err == nil {
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", path)
		}
		perm = info.Mode().Perm()
	}
	return writeAtomic(path, data, perm)
}

func split(path string) (string, string, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", "", fmt.Errorf("invalid file path: %q", path)
	}
	return filepath.Dir(cleaned), base, nil
}
