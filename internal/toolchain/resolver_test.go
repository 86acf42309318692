package toolchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/models"
)

type stubLister struct {
	configurations []models.Configuration
	err            error
}

func (s stubLister) List(ctx context.Context) ([]models.Configuration, error) {
	return s.configurations, s.err
}

func TestResolverOutcomes(t *testing.T) {
	catalog := NewCatalog([]models.Configuration{
		{ID: 1, Language: "python", Path: "/usr/bin/python3"},
		{ID: 2, Language: "c", Path: "/usr/bin/gcc"},
		{ID: 3, Language: "C", Path: "/opt/gcc-13/bin/gcc"},
	})

	resolver := NewResolver(catalog, nil)

	resolution, err := resolver.Resolve([]string{"main.py"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSelected, resolution.Outcome)
	require.Equal(t, uint(1), resolution.Configuration.ID)
	require.Equal(t, "main.py", resolution.EntryPoint)
	require.Equal(t, LanguagePython, resolution.Language)

	resolution, err = resolver.Resolve([]string{"main.c"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAmbiguous, resolution.Outcome)
	require.Nil(t, resolution.Configuration)
	require.Len(t, resolution.Candidates, 2)

	resolution, err = resolver.Resolve([]string{"Main.java"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUnconfigured, resolution.Outcome)
	require.Equal(t, LanguageJava, resolution.Language)
	require.Empty(t, resolution.Candidates)
}

func TestResolverHonoursSelections(t *testing.T) {
	catalog := NewCatalog([]models.Configuration{
		{ID: 2, Language: "c", Path: "/usr/bin/gcc"},
		{ID: 3, Language: "c", Path: "/opt/gcc-13/bin/gcc"},
	})

	resolution, err := NewResolver(catalog, map[string]uint{"C": 3}).Resolve([]string{"main.c"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSelected, resolution.Outcome)
	require.Equal(t, "/opt/gcc-13/bin/gcc", resolution.Configuration.Path)

	resolution, err = NewResolver(catalog, map[string]uint{"c": 99}).Resolve([]string{"main.c"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAmbiguous, resolution.Outcome)
}

func TestResolverPropagatesDetectionErrors(t *testing.T) {
	resolver := NewResolver(NewCatalog(nil), nil)

	_, err := resolver.Resolve([]string{"readme.txt"})
	require.True(t, errors.Is(err, ErrNoEntryPointFound))
}

func TestLoadCatalog(t *testing.T) {
	catalog, err := LoadCatalog(context.Background(), stubLister{configurations: []models.Configuration{{ID: 7, Language: "go", Path: "/usr/local/go/bin/go"}}})
	require.NoError(t, err)
	require.Len(t, catalog.Candidates("go"), 1)

	_, err = LoadCatalog(context.Background(), stubLister{err: errors.New("db down")})
	require.Error(t, err)
}

func TestCatalogCandidatesAreCopied(t *testing.T) {
	catalog := NewCatalog([]models.Configuration{{ID: 1, Language: "python", Path: "python3"}})
	candidates := catalog.Candidates("python")
	candidates[0].Path = "changed"
	require.Equal(t, "python3", catalog.Candidates("python")[0].Path)
}

func TestSuggestUsesConventionalBinaries(t *testing.T) {
	original := lookPath
	t.Cleanup(func() { lookPath = original })

	lookPath = func(file string) (string, error) {
		if file == "python" {
			return "/usr/bin/python", nil
		}
		return "", errors.New("not found")
	}

	found, err := Suggest("Python")
	require.NoError(t, err)
	require.Equal(t, "/usr/bin/python", found)

	_, err = Suggest("go")
	require.True(t, errors.Is(err, ErrToolchainNotFound))

	_, err = Suggest("cobol")
	require.True(t, errors.Is(err, ErrUnsupportedLanguage))
}
