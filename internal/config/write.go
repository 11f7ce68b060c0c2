package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hugo-lorenzo-mato/clouddiag/internal/fsutil"
)

// WriteFile renders cfg in the format implied by path's extension and
// writes it atomically. An existing file is only replaced when force is
// set.
func WriteFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	format := strings.TrimPrefix(filepath.Ext(path), ".")
	data, err := Render(cfg, format)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
