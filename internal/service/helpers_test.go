package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grader/internal/database"
	"github.com/noah-isme/gema-grader/internal/models"
	"github.com/noah-isme/gema-grader/internal/repository"
	"github.com/noah-isme/gema-grader/pkg/archive"
	"github.com/noah-isme/gema-grader/pkg/sandbox"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeSubmission zips files into dir/<name>.zip and returns the archive path.
func writeSubmission(t *testing.T, dir, name string, files map[string]string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	archivePath := filepath.Join(dir, name+".zip")

	out, err := os.Create(archivePath)
	require.NoError(t, err)
	writer := zip.NewWriter(out)
	for entry, content := range files {
		w, err := writer.Create(entry)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	require.NoError(t, out.Close())
	return archivePath
}

func isValidationFailure(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// fakeExecutor interprets the entry point file as a script: the file content
// becomes stdout, TIMEOUT simulates a killed program and BLOCK waits for
// cancellation.
type fakeExecutor struct {
	mu      sync.Mutex
	calls   int
	blocked chan struct{}
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{blocked: make(chan struct{}, 16)}
}

func (f *fakeExecutor) Run(ctx context.Context, req sandbox.ExecutionRequest) (sandbox.ExecutionResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if strings.Contains(req.Cmd[0], "missing") {
		return sandbox.ExecutionResult{}, fmt.Errorf("%w: %s not found", sandbox.ErrSpawn, req.Cmd[0])
	}
	if len(req.Cmd) < 2 || req.Cmd[1] == "-cp" {
		return sandbox.ExecutionResult{Stdout: "compiled binary output"}, nil
	}

	content, err := os.ReadFile(filepath.Join(req.Dir, req.Cmd[1]))
	if err != nil {
		return sandbox.ExecutionResult{}, fmt.Errorf("%w: %v", sandbox.ErrSpawn, err)
	}

	switch strings.TrimSpace(string(content)) {
	case "TIMEOUT":
		return sandbox.ExecutionResult{Stdout: "partial", TimedOut: true, ExitCode: -1}, fmt.Errorf("%w after 10s", sandbox.ErrTimeout)
	case "BLOCK":
		f.blocked <- struct{}{}
		<-ctx.Done()
		return sandbox.ExecutionResult{ExitCode: -1}, ctx.Err()
	case "COMPILE_ERROR":
		return sandbox.ExecutionResult{Stderr: "main.c:1:1: error: unknown type name 'COMPILE_ERROR'", ExitCode: 1}, nil
	}

	stdout := string(content)
	if len(req.Cmd) > 2 {
		stdout += " " + strings.Join(req.Cmd[2:], " ")
	}
	if req.Stdin != "" {
		stdout += " " + req.Stdin
	}
	return sandbox.ExecutionResult{Stdout: stdout, ExitCode: 0}, nil
}

func (f *fakeExecutor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type testEnv struct {
	db             *gorm.DB
	assignments    repository.AssignmentRepository
	configurations repository.ConfigurationRepository
	scores         repository.ScoreRepository
	results        repository.EvaluationResultRepository
	executor       *fakeExecutor
	pipeline       Pipeline
	progress       ProgressTracker
	root           string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupServiceDB(t)
	root := t.TempDir()
	executor := newFakeExecutor()

	return &testEnv{
		db:             db,
		assignments:    repository.NewAssignmentRepository(db),
		configurations: repository.NewConfigurationRepository(db),
		scores:         repository.NewScoreRepository(db),
		results:        repository.NewEvaluationResultRepository(db),
		executor:       executor,
		pipeline: Pipeline{
			Extractor: archive.NewExtractor(archive.Config{Root: filepath.Join(root, "scratch"), Logger: zerolog.Nop()}),
			Runner:    NewBuildRunner(executor, BuildRunnerConfig{}, zerolog.Nop()),
		},
		progress: NewProgressTracker(nil, nil, "", 0, zerolog.Nop()),
		root:     root,
	}
}

func (e *testEnv) evaluationService(cfg EvaluationConfig) EvaluationService {
	return NewEvaluationService(e.assignments, e.configurations, e.scores, e.results, NewDirectorySource(), e.pipeline, e.progress, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop(), cfg)
}

func (e *testEnv) addConfiguration(t *testing.T, language, path string) models.Configuration {
	t.Helper()
	configuration := models.Configuration{Language: language, Path: path}
	require.NoError(t, e.configurations.Create(context.Background(), &configuration))
	return configuration
}

func (e *testEnv) addAssignment(t *testing.T, assignment models.Assignment) models.Assignment {
	t.Helper()
	require.NoError(t, e.assignments.Create(context.Background(), &assignment))
	return assignment
}

func (e *testEnv) scratchEntries(t *testing.T) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(e.root, "scratch"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return entries
}
