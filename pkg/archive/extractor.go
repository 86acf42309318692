// Package archive unpacks student submission bundles into isolated scratch directories.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidArchive indicates the input is not a readable zip bundle.
	ErrInvalidArchive = errors.New("invalid archive")
	// ErrExtractionIO indicates the scratch area could not be written.
	ErrExtractionIO = errors.New("extraction io error")
)

// Config groups extractor configuration values.
type Config struct {
	Root          string
	MaxTotalBytes int64
	Logger        zerolog.Logger
}

// Extraction describes one unpacked archive.
type Extraction struct {
	Dir   string
	Files []string
}

// Extractor unpacks archives below a scratch root.
type Extractor struct {
	root     string
	maxTotal int64
	logger   zerolog.Logger
}

// NewExtractor constructs an extractor rooted at cfg.Root.
func NewExtractor(cfg Config) *Extractor {
	root := cfg.Root
	if root == "" {
		root = filepath.Join(os.TempDir(), "gema-grader")
	}
	maxTotal := cfg.MaxTotalBytes
	if maxTotal <= 0 {
		maxTotal = 50 * 1024 * 1024
	}
	return &Extractor{
		root:     root,
		maxTotal: maxTotal,
		logger:   cfg.Logger.With().Str("component", "archive_extractor").Logger(),
	}
}

// Extract unpacks archivePath into a fresh directory named after key.
func (e *Extractor) Extract(ctx context.Context, archivePath, key string) (Extraction, error) {
	if err := detectZip(archivePath); err != nil {
		return Extraction{}, err
	}

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	defer reader.Close()

	var total uint64
	for _, f := range reader.File {
		total += f.UncompressedSize64
		if total > uint64(e.maxTotal) {
			return Extraction{}, fmt.Errorf("%w: uncompressed size exceeds %d bytes", ErrInvalidArchive, e.maxTotal)
		}
	}

	if err := os.MkdirAll(e.root, 0o755); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}

	dir := filepath.Join(e.root, sanitizeKey(key)+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return Extraction{}, fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}

	files := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		if err := ctx.Err(); err != nil {
			_ = os.RemoveAll(dir)
			return Extraction{}, err
		}

		if unsafeEntry(f.Name) {
			_ = os.RemoveAll(dir)
			return Extraction{}, fmt.Errorf("%w: entry %q escapes extraction directory", ErrInvalidArchive, f.Name)
		}

		name, ok := entryName(f.Name)
		if !ok {
			continue
		}

		target := filepath.Join(dir, filepath.FromSlash(name))
		if !withinDir(dir, target) {
			_ = os.RemoveAll(dir)
			return Extraction{}, fmt.Errorf("%w: entry %q escapes extraction directory", ErrInvalidArchive, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				_ = os.RemoveAll(dir)
				return Extraction{}, fmt.Errorf("%w: %v", ErrExtractionIO, err)
			}
			continue
		}

		if !f.Mode().IsRegular() {
			e.logger.Debug().Str("entry", f.Name).Msg("skipping non-regular archive entry")
			continue
		}

		if err := writeEntry(f, target); err != nil {
			_ = os.RemoveAll(dir)
			return Extraction{}, err
		}
		files = append(files, name)
	}

	sort.Strings(files)

	e.logger.Debug().
		Str("archive", archivePath).
		Str("dir", dir).
		Int("files", len(files)).
		Msg("archive extracted")

	return Extraction{Dir: dir, Files: files}, nil
}

// Cleanup removes an extraction directory.
func (e *Extractor) Cleanup(extraction Extraction) {
	if extraction.Dir == "" || !withinDir(e.root, extraction.Dir) {
		return
	}
	if err := os.RemoveAll(extraction.Dir); err != nil {
		e.logger.Warn().Err(err).Str("dir", extraction.Dir).Msg("failed to remove extraction directory")
	}
}

func detectZip(archivePath string) error {
	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %v", ErrInvalidArchive, err)
		}
		return fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("%w: %s is not an archive file", ErrInvalidArchive, archivePath)
	}

	mime, err := mimetype.DetectFile(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}
	if !isZipMime(mime) {
		return fmt.Errorf("%w: detected %s", ErrInvalidArchive, mime.String())
	}
	return nil
}

// Office documents and jars are zip containers too; they are accepted as archives.
func isZipMime(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func unsafeEntry(raw string) bool {
	name := strings.ReplaceAll(raw, "\\", "/")
	if strings.HasPrefix(name, "/") || (len(name) > 1 && name[1] == ':') {
		return true
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return true
		}
	}
	return false
}

func entryName(raw string) (string, bool) {
	name := strings.ReplaceAll(raw, "\\", "/")
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return "", false
	}
	if strings.HasPrefix(name, "__MACOSX/") || name == "__MACOSX" {
		return "", false
	}
	if strings.HasPrefix(path.Base(name), "._") {
		return "", false
	}
	return name, true
}

func writeEntry(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrInvalidArchive, f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExtractionIO, err)
	}

	limit := int64(f.UncompressedSize64) + 1
	written, copyErr := io.Copy(dst, io.LimitReader(src, limit))
	closeErr := dst.Close()

	switch {
	case copyErr != nil && errors.Is(copyErr, zip.ErrChecksum):
		return fmt.Errorf("%w: %s: %v", ErrInvalidArchive, f.Name, copyErr)
	case copyErr != nil:
		var pathErr *os.PathError
		if errors.As(copyErr, &pathErr) {
			return fmt.Errorf("%w: %v", ErrExtractionIO, copyErr)
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalidArchive, f.Name, copyErr)
	case written > int64(f.UncompressedSize64):
		return fmt.Errorf("%w: %s is larger than declared", ErrInvalidArchive, f.Name)
	case closeErr != nil:
		return fmt.Errorf("%w: %v", ErrExtractionIO, closeErr)
	}
	return nil
}

func withinDir(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sanitizeKey(key string) string {
	key = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, key)
	key = strings.Trim(key, "-")
	if key == "" {
		return "submission"
	}
	return key
}
