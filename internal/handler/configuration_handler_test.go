package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/router"
)

func setupConfigurationApp(t *testing.T) *fiber.App {
	t.Helper()
	return setupApp(t, router.Dependencies{ConfigurationHandler: newConfigurationHandler(t)})
}

func TestConfigurationHandlerRegisterIsIdempotent(t *testing.T) {
	app := setupConfigurationApp(t)
	request := dto.ConfigurationRequest{Language: "CPP", Path: "/usr/bin/g++"}

	resp, payload := doRequest(t, app, http.MethodPost, "/api/v1/configurations", request)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var created dto.ConfigurationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &created))
	require.Equal(t, "cpp", created.Language)
	require.NotZero(t, created.ID)

	resp, payload = doRequest(t, app, http.MethodPost, "/api/v1/configurations", request)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var existing dto.ConfigurationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &existing))
	require.Equal(t, created.ID, existing.ID)

	resp, payload = doRequest(t, app, http.MethodGet, "/api/v1/configurations", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var listed []dto.ConfigurationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &listed))
	require.Len(t, listed, 1)
}

func TestConfigurationHandlerRejectsInvalidPayload(t *testing.T) {
	app := setupConfigurationApp(t)

	resp, payload := doRequest(t, app, http.MethodPost, "/api/v1/configurations", dto.ConfigurationRequest{Language: "fortran", Path: "/usr/bin/gfortran"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, payload.Success)

	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/configurations", []byte("{not json"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConfigurationHandlerDelete(t *testing.T) {
	app := setupConfigurationApp(t)

	_, payload := doRequest(t, app, http.MethodPost, "/api/v1/configurations", dto.ConfigurationRequest{Language: "python", Path: "/usr/bin/python3"})
	var created dto.ConfigurationResponse
	require.NoError(t, json.Unmarshal(payload.Data, &created))

	resp, _ := doRequest(t, app, http.MethodDelete, "/api/v1/configurations/"+jsonNumber(created.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/api/v1/configurations/"+jsonNumber(created.ID), nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, http.MethodDelete, "/api/v1/configurations/abc", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConfigurationHandlerSuggestUnsupportedLanguage(t *testing.T) {
	app := setupConfigurationApp(t)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/configurations/suggest/fortran", nil)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestConfigurationHandlerExportImportRoundTrip(t *testing.T) {
	source := setupConfigurationApp(t)
	doRequest(t, source, http.MethodPost, "/api/v1/configurations", dto.ConfigurationRequest{Language: "c", Path: "/usr/bin/gcc"})
	doRequest(t, source, http.MethodPost, "/api/v1/configurations", dto.ConfigurationRequest{Language: "java", Path: "/usr/bin/javac"})

	resp, err := source.Test(httptest.NewRequest(http.MethodGet, "/api/v1/configurations/export", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "grader-configurations.json")

	document, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var export dto.ConfigurationExport
	require.NoError(t, json.Unmarshal(document, &export))
	require.Equal(t, 1, export.Version)
	require.Len(t, export.Configurations, 2)

	target := setupConfigurationApp(t)
	importResp, payload := doRequest(t, target, http.MethodPost, "/api/v1/configurations/import", document)
	require.Equal(t, fiber.StatusOK, importResp.StatusCode)

	var result dto.ConfigurationImportResult
	require.NoError(t, json.Unmarshal(payload.Data, &result))
	require.Equal(t, 2, result.Created)
	require.Zero(t, result.Existing)
}

func TestConfigurationHandlerImportRejectsSchemaViolations(t *testing.T) {
	app := setupConfigurationApp(t)

	body := []byte(`{"configurations":[{"language":"cobol","path":"/usr/bin/cobc"}]}`)
	resp, payload := doRequest(t, app, http.MethodPost, "/api/v1/configurations/import", body)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.False(t, payload.Success)
}

func TestConfigurationHandlerLanguages(t *testing.T) {
	app := setupConfigurationApp(t)
	doRequest(t, app, http.MethodPost, "/api/v1/configurations", dto.ConfigurationRequest{Language: "java", Path: "/usr/bin/javac"})

	resp, payload := doRequest(t, app, http.MethodGet, "/api/v1/configurations/languages", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var languages []dto.LanguageSupport
	require.NoError(t, json.Unmarshal(payload.Data, &languages))
	require.NotEmpty(t, languages)
	for _, language := range languages {
		if language.Language == "java" {
			require.Len(t, language.Configurations, 1)
			require.False(t, language.Ambiguous)
			return
		}
	}
	t.Fatal("java missing from supported languages")
}

func jsonNumber(id uint) string {
	encoded, _ := json.Marshal(id)
	return string(encoded)
}
