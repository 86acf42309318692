package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Submission is one student's archive awaiting evaluation.
type Submission struct {
	StudentID   string
	ArchivePath string
}

// SubmissionSource enumerates the submissions stored at a location.
type SubmissionSource interface {
	List(ctx context.Context, location string) ([]Submission, error)
}

type directorySource struct{}

// NewDirectorySource lists <student-id>.zip files in a flat directory.
func NewDirectorySource() SubmissionSource {
	return directorySource{}
}

// List returns submissions sorted by file name. Files whose stem is not a
// numeric student ID are ignored.
func (directorySource) List(ctx context.Context, location string) ([]Submission, error) {
	if strings.TrimSpace(location) == "" {
		return nil, fmt.Errorf("%w: no location configured", ErrSubmissionsUnavailable)
	}

	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSubmissionsUnavailable, err)
	}

	submissions := make([]Submission, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !strings.EqualFold(ext, ".zip") {
			continue
		}
		stem := strings.TrimSuffix(name, ext)
		if !isStudentID(stem) {
			continue
		}
		submissions = append(submissions, Submission{
			StudentID:   stem,
			ArchivePath: filepath.Join(location, name),
		})
	}

	return submissions, nil
}

func isStudentID(stem string) bool {
	if stem == "" {
		return false
	}
	for _, r := range stem {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
