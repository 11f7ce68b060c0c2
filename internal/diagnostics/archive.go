package diagnostics

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// ManifestName is the name of the manifest entry in a core archive.
const ManifestName = "manifest.json"

// Manifest describes the contents of a core archive.
type Manifest struct {
	CreatedAt  time.Time `json:"created_at"`
	ProcessID  int       `json:"process_id"`
	Executable string    `json:"executable,omitempty"`
	GoVersion  string    `json:"go_version"`
	GOOS       string    `json:"goos"`
	GOARCH     string    `json:"goarch"`
	Tool       string    `json:"tool"`
	Trigger    string    `json:"trigger,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Core       string    `json:"core"`
	Libraries  []string  `json:"libraries,omitempty"`
	// Files that were mapped but could not be read
	Skipped []string `json:"skipped,omitempty"`
}

// ArchiveEntry maps a file on disk to its name inside the archive.
type ArchiveEntry struct {
	Name string
	Path string
}

// WriteArchive writes manifest and entries to a gzip-compressed tarball at
// path. The file appears under its final name only when complete.
func WriteArchive(path string, manifest Manifest, entries []ArchiveEntry) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.partial")
	if err != nil {
		return fmt.Errorf("creating archive: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	gz, err := gzip.NewWriterLevel(tmp, gzip.BestSpeed)
	if err != nil {
		return fmt.Errorf("creating gzip writer: %w", err)
	}
	gz.Name = filepath.Base(path)
	gz.ModTime = manifest.CreatedAt

	tw := tar.NewWriter(gz)

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    ManifestName,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: manifest.CreatedAt,
	}); err != nil {
		return fmt.Errorf("writing manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	for _, e := range entries {
		if err := addFile(tw, e); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("closing gzip stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming archive: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, e ArchiveEntry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", e.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", e.Path, err)
	}

	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", e.Path, err)
	}
	hdr.Name = filepath.ToSlash(e.Name)

	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", e.Name, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("writing %s: %w", e.Name, err)
	}
	return nil
}

// ReadManifest extracts the manifest from a core archive.
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s not found in %s", ManifestName, path)
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Name != ManifestName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("parsing manifest: %w", err)
		}
		return &m, nil
	}
}

// ArchiveEntries lists the entry names of a core archive.
func ArchiveEntries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading gzip stream: %w", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading archive: %w", err)
		}
		names = append(names, hdr.Name)
	}
}
