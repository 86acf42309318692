package toolchain

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/noah-isme/gema-grader/internal/models"
)

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeSelected     Outcome = "selected"
	OutcomeAmbiguous    Outcome = "ambiguous"
	OutcomeUnconfigured Outcome = "unconfigured"
)

// Resolution is the entry point, language and toolchain chosen for a submission.
// Configuration is set only when Outcome is OutcomeSelected.
type Resolution struct {
	Outcome       Outcome
	EntryPoint    string
	Language      string
	Configuration *models.Configuration
	Candidates    []models.Configuration
}

// ConfigurationLister loads registered configurations.
type ConfigurationLister interface {
	List(ctx context.Context) ([]models.Configuration, error)
}

// Catalog is an immutable snapshot of configurations grouped by language.
type Catalog struct {
	byLanguage map[string][]models.Configuration
}

// NewCatalog groups configurations by normalized language, preserving order.
func NewCatalog(configurations []models.Configuration) *Catalog {
	byLanguage := make(map[string][]models.Configuration)
	for _, configuration := range configurations {
		language := NormalizeLanguage(configuration.Language)
		byLanguage[language] = append(byLanguage[language], configuration)
	}
	return &Catalog{byLanguage: byLanguage}
}

// LoadCatalog snapshots the configuration store.
func LoadCatalog(ctx context.Context, lister ConfigurationLister) (*Catalog, error) {
	configurations, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load configurations: %w", err)
	}
	return NewCatalog(configurations), nil
}

// Candidates returns the configurations registered for a language.
func (c *Catalog) Candidates(language string) []models.Configuration {
	if c == nil {
		return nil
	}
	candidates := c.byLanguage[NormalizeLanguage(language)]
	return append([]models.Configuration(nil), candidates...)
}

// Resolver maps a submission's files to a toolchain.
type Resolver struct {
	catalog    *Catalog
	selections map[string]uint
}

// NewResolver builds a resolver over a catalog. selections maps a language to
// the configuration ID to use when the language has several candidates.
func NewResolver(catalog *Catalog, selections map[string]uint) *Resolver {
	normalized := make(map[string]uint, len(selections))
	for language, id := range selections {
		normalized[NormalizeLanguage(language)] = id
	}
	return &Resolver{catalog: catalog, selections: normalized}
}

// Resolve detects the entry point and language and picks a configuration.
// Unconfigured and ambiguous languages are reported through Outcome.
func (r *Resolver) Resolve(files []string) (Resolution, error) {
	entryPoint, err := DetectEntryPoint(files)
	if err != nil {
		return Resolution{}, err
	}

	language, err := DetectLanguage(entryPoint)
	if err != nil {
		return Resolution{EntryPoint: entryPoint}, err
	}

	resolution := Resolution{
		EntryPoint: entryPoint,
		Language:   language,
		Candidates: r.catalog.Candidates(language),
	}

	switch len(resolution.Candidates) {
	case 0:
		resolution.Outcome = OutcomeUnconfigured
	case 1:
		resolution.Outcome = OutcomeSelected
		resolution.Configuration = &resolution.Candidates[0]
	default:
		resolution.Outcome = OutcomeAmbiguous
		if id, ok := r.selections[language]; ok {
			for i := range resolution.Candidates {
				if resolution.Candidates[i].ID == id {
					resolution.Outcome = OutcomeSelected
					resolution.Configuration = &resolution.Candidates[i]
					break
				}
			}
		}
	}

	return resolution, nil
}

var lookPath = exec.LookPath

// Suggest returns the first conventional binary for language found on PATH.
func Suggest(language string) (string, error) {
	spec, err := Lookup(language)
	if err != nil {
		return "", err
	}
	for _, binary := range spec.Binaries {
		if found, err := lookPath(binary); err == nil {
			return found, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrToolchainNotFound, spec.Language)
}
