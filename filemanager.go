package camelshdf5

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/scigolib/hdf5"
)

// FileManager owns the output files of one or more runs: it derives
// exclusive file names below the output directory, opens HDF5 handles,
// records the produced artifacts and guarantees every handle is closed.
//
// By default names are exclusive: an existing file is never overwritten,
// a numbered suffix is picked instead. With newFileEach disabled an
// existing file is reopened and the next numbered entry is appended.
type FileManager struct {
	directory   string
	newFileEach bool

	reserved  map[string]bool
	artifacts map[string][]string
	open      map[string]*hdf5.FileWriter
}

// NewFileManager creates a manager placing files inside directory.
// An empty directory means the current working directory.
func NewFileManager(directory string, newFileEach bool) *FileManager {
	return &FileManager{
		directory:   directory,
		newFileEach: newFileEach,
		reserved:    make(map[string]bool),
		artifacts:   make(map[string][]string),
		open:        make(map[string]*hdf5.FileWriter),
	}
}

// Artifacts maps entry names to the file paths produced for them.
func (m *FileManager) Artifacts() map[string][]string {
	out := make(map[string][]string, len(m.artifacts))
	for k, v := range m.artifacts {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Open opens the HDF5 file for one run and returns the handle together
// with the 1-based entry number the run should write under.
func (m *FileManager) Open(entryName, relPath string) (*hdf5.FileWriter, int, error) {
	if filepath.IsAbs(relPath) {
		return nil, 0, fmt.Errorf("file name %q must be a relative path", relPath)
	}
	absPath := filepath.Join(m.directory, relPath)
	if dir := filepath.Dir(absPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, 0, wrapErr("create output directory", err)
		}
	}

	_, statErr := os.Stat(absPath)
	exists := statErr == nil

	if exists && !m.newFileEach {
		entries, err := countEntries(absPath)
		if err != nil {
			return nil, 0, wrapErr("inspect existing file "+absPath, err)
		}
		fw, err := hdf5.OpenForWrite(absPath, hdf5.OpenReadWrite)
		if err != nil {
			return nil, 0, wrapErr("reopen "+absPath, err)
		}
		m.track(entryName, absPath, fw)
		return fw, entries + 1, nil
	}

	absPath = m.exclusiveName(absPath, exists)
	fw, err := hdf5.CreateForWrite(absPath, hdf5.CreateTruncate)
	if err != nil {
		return nil, 0, wrapErr("create "+absPath, err)
	}
	m.track(entryName, absPath, fw)
	return fw, 1, nil
}

// exclusiveName appends a numbered suffix until the name is neither
// reserved by this manager nor present on disk.
func (m *FileManager) exclusiveName(absPath string, exists bool) string {
	if !m.reserved[absPath] && !exists {
		return absPath
	}
	ext := filepath.Ext(absPath)
	stem := strings.TrimSuffix(absPath, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if m.reserved[candidate] {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			continue
		}
		return candidate
	}
}

func (m *FileManager) track(entryName, absPath string, fw *hdf5.FileWriter) {
	m.reserved[absPath] = true
	m.artifacts[entryName] = append(m.artifacts[entryName], absPath)
	m.open[absPath] = fw
}

// Release detaches an already-closed handle from the manager.
func (m *FileManager) Release(fw *hdf5.FileWriter) {
	for path, open := range m.open {
		if open == fw {
			delete(m.open, path)
			return
		}
	}
}

// Close closes every file handle still owned by the manager.
func (m *FileManager) Close() error {
	var firstErr error
	for path, fw := range m.open {
		if err := fw.Close(); err != nil && firstErr == nil {
			firstErr = wrapErr("close "+path, err)
		}
		delete(m.open, path)
	}
	return firstErr
}

// countEntries counts the numbered entry groups at the root of an
// existing output file.
func countEntries(path string) (int, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	count := 0
	for _, child := range f.Root().Children() {
		if g, ok := child.(*hdf5.Group); ok && strings.HasPrefix(g.Name(), "entry_") {
			count++
		}
	}
	return count, nil
}
