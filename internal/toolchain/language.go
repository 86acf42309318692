package toolchain

import (
	"errors"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Supported language identifiers, as stored on configurations.
const (
	LanguageC          = "c"
	LanguageCPP        = "cpp"
	LanguagePython     = "python"
	LanguageJava       = "java"
	LanguageJavaScript = "javascript"
	LanguageGo         = "go"
)

// ErrUnsupportedLanguage indicates a file extension or language name with no known toolchain.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrToolchainNotFound indicates no conventional binary for a language is on PATH.
var ErrToolchainNotFound = errors.New("toolchain not found")

var extensions = map[string]string{
	".c":    LanguageC,
	".cpp":  LanguageCPP,
	".cc":   LanguageCPP,
	".cxx":  LanguageCPP,
	".py":   LanguagePython,
	".java": LanguageJava,
	".js":   LanguageJavaScript,
	".go":   LanguageGo,
}

// Spec describes how one language is built and run.
type Spec struct {
	Language string
	Compiled bool
	// Binaries are the conventional executable names, in lookup preference order.
	Binaries []string
}

var specs = map[string]Spec{
	LanguageC:          {Language: LanguageC, Compiled: true, Binaries: []string{"gcc", "cc", "clang"}},
	LanguageCPP:        {Language: LanguageCPP, Compiled: true, Binaries: []string{"g++", "c++", "clang++"}},
	LanguagePython:     {Language: LanguagePython, Binaries: []string{"python3", "python"}},
	LanguageJava:       {Language: LanguageJava, Compiled: true, Binaries: []string{"javac"}},
	LanguageJavaScript: {Language: LanguageJavaScript, Binaries: []string{"node", "nodejs"}},
	LanguageGo:         {Language: LanguageGo, Compiled: true, Binaries: []string{"go"}},
}

// NormalizeLanguage lowercases and trims a language name.
func NormalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

// Lookup returns the build spec for a language.
func Lookup(language string) (Spec, error) {
	spec, ok := specs[NormalizeLanguage(language)]
	if !ok {
		return Spec{}, ErrUnsupportedLanguage
	}
	return spec, nil
}

// Languages lists every supported language, sorted.
func Languages() []string {
	languages := make([]string, 0, len(specs))
	for language := range specs {
		languages = append(languages, language)
	}
	sort.Strings(languages)
	return languages
}

// DetectLanguage maps an entry point's extension to its language.
func DetectLanguage(entryPoint string) (string, error) {
	language, ok := extensions[strings.ToLower(path.Ext(entryPoint))]
	if !ok {
		return "", ErrUnsupportedLanguage
	}
	return language, nil
}

// Step is one command invocation. Path is either a toolchain path or a
// program path relative to the working directory.
type Step struct {
	Path string
	Args []string
}

// Plan is the compile and run sequence for one entry point.
type Plan struct {
	Compile *Step
	Run     Step
}

// Plan builds the commands for entryPoint, a slash-separated path relative
// to the working directory, using the toolchain at toolPath.
func (s Spec) Plan(toolPath, entryPoint string) Plan {
	entry := filepath.FromSlash(entryPoint)
	program := "." + string(filepath.Separator) + executableName("main")

	switch s.Language {
	case LanguageC, LanguageCPP:
		return Plan{
			Compile: &Step{Path: toolPath, Args: []string{entry, "-o", program}},
			Run:     Step{Path: program},
		}
	case LanguageGo:
		return Plan{
			Compile: &Step{Path: toolPath, Args: []string{"build", "-o", program, entry}},
			Run:     Step{Path: program},
		}
	case LanguageJava:
		classDir := filepath.Dir(entry)
		className := strings.TrimSuffix(filepath.Base(entry), filepath.Ext(entry))
		return Plan{
			Compile: &Step{Path: toolPath, Args: []string{entry}},
			Run:     Step{Path: javaRuntime(toolPath), Args: []string{"-cp", classDir, className}},
		}
	default:
		return Plan{Run: Step{Path: toolPath, Args: []string{entry}}}
	}
}

// javaRuntime locates the java launcher installed next to the configured javac.
func javaRuntime(javac string) string {
	dir, file := filepath.Split(javac)
	name := "java"
	if strings.HasSuffix(strings.ToLower(file), ".exe") {
		name += ".exe"
	}
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}
