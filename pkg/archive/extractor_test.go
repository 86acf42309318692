package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func writeZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	require.NoError(t, err)

	writer := zip.NewWriter(file)
	for entry, content := range entries {
		w, err := writer.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, file.Close())
	return path
}

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return NewExtractor(Config{Root: filepath.Join(t.TempDir(), "scratch"), Logger: zerolog.Nop()})
}

func TestExtractListsFilesAndSkipsMacMetadata(t *testing.T) {
	src := t.TempDir()
	archivePath := writeZip(t, src, "20220602074.zip", map[string]string{
		"main.c":            "int main(void) { return 0; }",
		"lib/util.h":        "#pragma once",
		"__MACOSX/._main.c": "junk",
		"src/._hidden":      "junk",
		"docs/readme.txt":   "hello",
	})

	extractor := newTestExtractor(t)
	extraction, err := extractor.Extract(context.Background(), archivePath, "20220602074")
	require.NoError(t, err)

	require.Equal(t, []string{"docs/readme.txt", "lib/util.h", "main.c"}, extraction.Files)
	content, err := os.ReadFile(filepath.Join(extraction.Dir, "main.c"))
	require.NoError(t, err)
	require.Contains(t, string(content), "int main")

	extractor.Cleanup(extraction)
	_, err = os.Stat(extraction.Dir)
	require.True(t, os.IsNotExist(err))
}

func TestExtractUsesUniqueDirectories(t *testing.T) {
	src := t.TempDir()
	archivePath := writeZip(t, src, "1001.zip", map[string]string{"main.py": "print('hi')"})

	extractor := newTestExtractor(t)
	first, err := extractor.Extract(context.Background(), archivePath, "1001")
	require.NoError(t, err)
	second, err := extractor.Extract(context.Background(), archivePath, "1001")
	require.NoError(t, err)

	require.NotEqual(t, first.Dir, second.Dir)
}

func TestExtractRejectsNonArchives(t *testing.T) {
	src := t.TempDir()
	textPath := filepath.Join(src, "1002.zip")
	require.NoError(t, os.WriteFile(textPath, []byte("this is not a zip file at all"), 0o644))

	truncatedPath := filepath.Join(src, "1003.zip")
	require.NoError(t, os.WriteFile(truncatedPath, []byte("PK\x03\x04garbage-without-central-directory"), 0o644))

	emptyPath := filepath.Join(src, "1004.zip")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o644))

	extractor := newTestExtractor(t)
	for _, path := range []string{textPath, truncatedPath, emptyPath, filepath.Join(src, "missing.zip")} {
		_, err := extractor.Extract(context.Background(), path, "x")
		require.ErrorIs(t, err, ErrInvalidArchive, path)
	}
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	src := t.TempDir()
	archivePath := writeZip(t, src, "1005.zip", map[string]string{
		"main.c":        "int main(void) { return 0; }",
		"../escape.txt": "owned",
	})

	extractor := newTestExtractor(t)
	_, err := extractor.Extract(context.Background(), archivePath, "1005")
	require.ErrorIs(t, err, ErrInvalidArchive)

	_, statErr := os.Stat(filepath.Join(extractor.root, "escape.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestExtractEnforcesUncompressedLimit(t *testing.T) {
	src := t.TempDir()
	big := make([]byte, 4096)
	archivePath := writeZip(t, src, "1006.zip", map[string]string{"main.py": string(big)})

	extractor := NewExtractor(Config{Root: t.TempDir(), MaxTotalBytes: 1024, Logger: zerolog.Nop()})
	_, err := extractor.Extract(context.Background(), archivePath, "1006")
	require.ErrorIs(t, err, ErrInvalidArchive)
}
