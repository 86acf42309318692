package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirectorySourceListsNumericArchives(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"20220602075.zip", "20220602074.ZIP", "alice.zip", "123.tar.gz", "notes.txt", "12a.zip", ".zip"} {
		writeFile(t, filepath.Join(dir, name), "x")
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "999.zip"), 0o755))

	submissions, err := NewDirectorySource().List(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, []Submission{
		{StudentID: "20220602074", ArchivePath: filepath.Join(dir, "20220602074.ZIP")},
		{StudentID: "20220602075", ArchivePath: filepath.Join(dir, "20220602075.zip")},
	}, submissions)
}

func TestDirectorySourceUnavailableLocation(t *testing.T) {
	_, err := NewDirectorySource().List(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.True(t, errors.Is(err, ErrSubmissionsUnavailable))

	_, err = NewDirectorySource().List(context.Background(), " ")
	require.True(t, errors.Is(err, ErrSubmissionsUnavailable))
}
