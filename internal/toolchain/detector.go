package toolchain

import (
	"errors"
	"path"
	"sort"
	"strings"
)

// ErrNoEntryPointFound indicates no file in a submission matches a known entry point name.
var ErrNoEntryPointFound = errors.New("no entry point found")

// entryPointPatterns is the single priority order for entry point names.
var entryPointPatterns = []string{
	"main.c",
	"main.cpp",
	"main.java",
	"Main.java",
	"main.py",
	"main.js",
	"main.go",
	"solution.c",
	"solution.cpp",
	"solution.java",
	"solution.py",
	"solution.js",
	"solution.go",
	"assignment.c",
	"assignment.cpp",
	"assignment.java",
	"assignment.py",
	"assignment.js",
	"assignment.go",
}

// EntryPointPatterns returns a copy of the entry point names in priority order.
func EntryPointPatterns() []string {
	return append([]string(nil), entryPointPatterns...)
}

// DetectEntryPoint picks the entry point among slash-separated relative file
// paths. The earliest matching pattern wins; among files sharing that name
// the shallowest path wins, then the lexically smallest.
func DetectEntryPoint(files []string) (string, error) {
	byName := make(map[string][]string)
	for _, file := range files {
		if ignored(file) {
			continue
		}
		name := path.Base(file)
		byName[name] = append(byName[name], file)
	}

	for _, pattern := range entryPointPatterns {
		matches := byName[pattern]
		if len(matches) == 0 {
			continue
		}
		sort.Slice(matches, func(i, j int) bool {
			di, dj := depth(matches[i]), depth(matches[j])
			if di != dj {
				return di < dj
			}
			return matches[i] < matches[j]
		})
		return matches[0], nil
	}

	return "", ErrNoEntryPointFound
}

func ignored(file string) bool {
	for _, segment := range strings.Split(file, "/") {
		if segment == "__MACOSX" || strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

func depth(file string) int {
	return strings.Count(file, "/")
}
