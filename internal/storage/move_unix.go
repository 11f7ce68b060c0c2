//go:build !windows

package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/renameio/v2"
)

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// copyAtomic copies src to dst so that dst either does not exist or holds
// the complete content.
func copyAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	pending, err := renameio.TempFile(filepath.Dir(dst), dst)
	if err != nil {
		return err
	}
	defer func() { _ = pending.Cleanup() }()

	if _, err := io.Copy(pending, in); err != nil {
		return err
	}
	if err := pending.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
