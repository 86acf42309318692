package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Executor backends understood by the sandbox layer.
const (
	SandboxBackendProcess = "process"
	SandboxBackendDocker  = "docker"
)

// Config holds runtime configuration values for the grader.
type Config struct {
	AppName  string
	AppEnv   string
	AppPort  string
	LogLevel string

	CORSOrigins string
	AccessLog   bool

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	ProgressSubject string
	ProgressTTL     time.Duration

	WorkspaceRoot    string
	KeepWorkspaces   bool
	MaxArchiveMB     int
	CompileTimeout   time.Duration
	ExecutionTimeout time.Duration
	MaxOutputKB      int
	Workers          int
	SandboxBackend   string
	DockerHost       string
	CodeRunMemoryMB  int
	CodeRunCPUShares int
	SandboxImages    map[string]string
	ShutdownTimeout  time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Containerized reports whether toolchains run inside docker containers.
func (c Config) Containerized() bool {
	return c.SandboxBackend == SandboxBackendDocker
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8090")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.origins", "*")
	v.SetDefault("http.access_log", false)
	v.SetDefault("database.url", "grader.db")
	v.SetDefault("progress.subject", "grader.evaluations")
	v.SetDefault("progress.ttl", "24h")
	v.SetDefault("workspace.root", filepath.Join(os.TempDir(), "gema-grader"))
	v.SetDefault("workspace.keep", false)
	v.SetDefault("archive.max_mb", 50)
	v.SetDefault("compile_timeout_ms", 30000)
	v.SetDefault("execution_timeout_ms", 10000)
	v.SetDefault("max_output_kb", 1024)
	v.SetDefault("workers", 1)
	v.SetDefault("sandbox.backend", SandboxBackendProcess)
	v.SetDefault("code_run_memory_mb", 256)
	v.SetDefault("code_run_cpu_shares", 512)
	v.SetDefault("sandbox.image.c", "gcc:13")
	v.SetDefault("sandbox.image.cpp", "gcc:13")
	v.SetDefault("sandbox.image.java", "eclipse-temurin:21-jdk")
	v.SetDefault("sandbox.image.python", "python:3.11-alpine")
	v.SetDefault("sandbox.image.javascript", "node:20-alpine")
	v.SetDefault("sandbox.image.go", "golang:1.22-alpine")
	v.SetDefault("shutdown_timeout", "5s")

	progressTTL, err := parseDuration(v.GetString("progress.ttl"), 24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress ttl: %w", err)
	}

	shutdownTimeout, err := parseDuration(v.GetString("shutdown_timeout"), 5*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	compileMs := v.GetInt("compile_timeout_ms")
	if compileMs <= 0 {
		compileMs = 30000
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		LogLevel:         strings.ToLower(v.GetString("log.level")),
		CORSOrigins:      strings.TrimSpace(v.GetString("cors.origins")),
		AccessLog:        v.GetBool("http.access_log"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		ProgressSubject:  v.GetString("progress.subject"),
		ProgressTTL:      progressTTL,
		WorkspaceRoot:    v.GetString("workspace.root"),
		KeepWorkspaces:   v.GetBool("workspace.keep"),
		MaxArchiveMB:     v.GetInt("archive.max_mb"),
		CompileTimeout:   time.Duration(compileMs) * time.Millisecond,
		ExecutionTimeout: time.Duration(timeoutMs) * time.Millisecond,
		MaxOutputKB:      v.GetInt("max_output_kb"),
		Workers:          v.GetInt("workers"),
		SandboxBackend:   strings.ToLower(strings.TrimSpace(v.GetString("sandbox.backend"))),
		DockerHost:       v.GetString("docker_host"),
		CodeRunMemoryMB:  v.GetInt("code_run_memory_mb"),
		CodeRunCPUShares: v.GetInt("code_run_cpu_shares"),
		SandboxImages: map[string]string{
			"c":          v.GetString("sandbox.image.c"),
			"cpp":        v.GetString("sandbox.image.cpp"),
			"java":       v.GetString("sandbox.image.java"),
			"python":     v.GetString("sandbox.image.python"),
			"javascript": v.GetString("sandbox.image.javascript"),
			"go":         v.GetString("sandbox.image.go"),
		},
		ShutdownTimeout: shutdownTimeout,
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.SandboxBackend {
	case SandboxBackendProcess, SandboxBackendDocker:
	default:
		return Config{}, fmt.Errorf("unknown sandbox backend %q", cfg.SandboxBackend)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	if cfg.MaxArchiveMB <= 0 {
		cfg.MaxArchiveMB = 50
	}

	if cfg.MaxOutputKB <= 0 {
		cfg.MaxOutputKB = 1024
	}

	if cfg.CodeRunMemoryMB <= 0 {
		cfg.CodeRunMemoryMB = 256
	}

	if cfg.CodeRunCPUShares <= 0 {
		cfg.CodeRunCPUShares = 512
	}

	return cfg, nil
}

func parseDuration(value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
