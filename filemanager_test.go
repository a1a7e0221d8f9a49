package camelshdf5

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileManagerExclusiveNames(t *testing.T) {
	dir := t.TempDir()
	m := NewFileManager(dir, true)
	defer func() { _ = m.Close() }()

	fw1, entry1, err := m.Open("run-1", "run.nxs")
	require.NoError(t, err)
	require.Equal(t, 1, entry1)
	require.NoError(t, fw1.Close())
	m.Release(fw1)

	fw2, entry2, err := m.Open("run-2", "run.nxs")
	require.NoError(t, err)
	require.Equal(t, 1, entry2)
	require.NoError(t, fw2.Close())
	m.Release(fw2)

	artifacts := m.Artifacts()
	require.Equal(t, filepath.Join(dir, "run.nxs"), artifacts["run-1"][0])
	require.Equal(t, filepath.Join(dir, "run_2.nxs"), artifacts["run-2"][0])

	for _, paths := range artifacts {
		for _, p := range paths {
			_, err := os.Stat(p)
			require.NoError(t, err)
		}
	}
}

func TestFileManagerRejectsAbsolutePath(t *testing.T) {
	m := NewFileManager(t.TempDir(), true)
	defer func() { _ = m.Close() }()

	_, _, err := m.Open("run", "/etc/run.nxs")
	require.Error(t, err)
}

func TestFileManagerCreatesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	m := NewFileManager(dir, true)
	defer func() { _ = m.Close() }()

	fw, _, err := m.Open("run", filepath.Join("session", "run.nxs"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	m.Release(fw)

	_, err = os.Stat(filepath.Join(dir, "session", "run.nxs"))
	require.NoError(t, err)
}

func TestFileManagerCloseSweepsOpenHandles(t *testing.T) {
	m := NewFileManager(t.TempDir(), true)

	_, _, err := m.Open("run-1", "a.nxs")
	require.NoError(t, err)
	_, _, err = m.Open("run-2", "b.nxs")
	require.NoError(t, err)

	require.NoError(t, m.Close())
	// Second close has nothing left to do.
	require.NoError(t, m.Close())
}

func TestFileManagerArtifactsAreCopies(t *testing.T) {
	m := NewFileManager(t.TempDir(), true)
	defer func() { _ = m.Close() }()

	fw, _, err := m.Open("run", "c.nxs")
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	m.Release(fw)

	first := m.Artifacts()
	first["run"][0] = "clobbered"
	second := m.Artifacts()
	require.NotEqual(t, "clobbered", second["run"][0])
}
