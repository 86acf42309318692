package dto

// ReferenceRunRequest optionally overrides the assignment's reference archive.
type ReferenceRunRequest struct {
	ArchivePath string          `json:"archive_path" validate:"omitempty,max=1024"`
	Selections  map[string]uint `json:"selections"`
}

// ReferenceRunResponse is the output of running the instructor's solution.
type ReferenceRunResponse struct {
	AssignmentID uint   `json:"assignment_id"`
	Status       string `json:"status"`
	FailedStage  string `json:"failed_stage,omitempty"`
	Language     string `json:"language,omitempty"`
	EntryPoint   string `json:"entry_point,omitempty"`
	Output       string `json:"output"`
	Stderr       string `json:"stderr,omitempty"`
	Detail       string `json:"detail,omitempty"`
	ExitCode     int    `json:"exit_code"`
	DurationMs   int64  `json:"duration_ms"`
}

// ExpectedOutputRequest stores an accepted reference output.
type ExpectedOutputRequest struct {
	Output string `json:"output" validate:"required"`
}
