package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// MoveResult describes a completed move.
type MoveResult struct {
	// Path is the artifact's final location.
	Path string
	// Copied is true when a cross-device rename forced a copy.
	Copied bool
	// SourceRemoveErr is set when the artifact was copied but the source
	// could not be removed afterwards. The move still counts as done.
	SourceRemoveErr error
}

// MoveFile moves src into dir, keeping its base name. When src and dir live
// on different filesystems the file is copied atomically into dir and the
// source is removed afterwards.
func MoveFile(src, dir string) (MoveResult, error) {
	dst := filepath.Join(dir, filepath.Base(src))

	err := os.Rename(src, dst)
	if err == nil {
		return MoveResult{Path: dst}, nil
	}
	if !isCrossDevice(err) {
		return MoveResult{}, fmt.Errorf("renaming %s: %w", src, err)
	}

	if err := copyAtomic(src, dst); err != nil {
		return MoveResult{}, fmt.Errorf("copying %s across devices: %w", src, err)
	}

	res := MoveResult{Path: dst, Copied: true}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		res.SourceRemoveErr = err
	}
	return res, nil
}
