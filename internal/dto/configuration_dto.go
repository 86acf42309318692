package dto

import (
	"time"

	"github.com/noah-isme/gema-grader/internal/models"
)

// ConfigurationRequest registers a toolchain for a language.
type ConfigurationRequest struct {
	Language string `json:"language" validate:"required,oneof=c cpp python java javascript go"`
	Path     string `json:"path" validate:"required,max=1024"`
}

// ConfigurationResponse represents a registered toolchain.
type ConfigurationResponse struct {
	ID        uint      `json:"id"`
	Language  string    `json:"language"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ConfigurationSuggestion is a toolchain path found on the host.
type ConfigurationSuggestion struct {
	Language string `json:"language"`
	Path     string `json:"path"`
}

// LanguageSupport describes a supported language and the toolchains
// registered for it. Ambiguous is set when more than one is registered, in
// which case evaluation needs an explicit selection.
type LanguageSupport struct {
	Language       string                  `json:"language"`
	Compiled       bool                    `json:"compiled"`
	Binaries       []string                `json:"binaries"`
	Configurations []ConfigurationResponse `json:"configurations"`
	Ambiguous      bool                    `json:"ambiguous"`
}

// ConfigurationEntry is one exported toolchain binding.
type ConfigurationEntry struct {
	Language string `json:"language"`
	Path     string `json:"path"`
}

// ConfigurationExport is the portable configuration document.
type ConfigurationExport struct {
	Version        int                  `json:"version"`
	ExportedAt     time.Time            `json:"exported_at"`
	Configurations []ConfigurationEntry `json:"configurations"`
}

// ConfigurationImportResult reports what an import changed.
type ConfigurationImportResult struct {
	Created        int                     `json:"created"`
	Existing       int                     `json:"existing"`
	Configurations []ConfigurationResponse `json:"configurations"`
}

// NewConfigurationResponse converts a configuration model into a DTO.
func NewConfigurationResponse(configuration models.Configuration) ConfigurationResponse {
	return ConfigurationResponse{
		ID:        configuration.ID,
		Language:  configuration.Language,
		Path:      configuration.Path,
		CreatedAt: configuration.CreatedAt,
	}
}

// NewConfigurationResponses converts a slice of configuration models.
func NewConfigurationResponses(configurations []models.Configuration) []ConfigurationResponse {
	responses := make([]ConfigurationResponse, 0, len(configurations))
	for _, configuration := range configurations {
		responses = append(responses, NewConfigurationResponse(configuration))
	}
	return responses
}
