package sandbox

import "fmt"

// Language maps a sandbox language name to its container image, subprocess
// binary, file extension, and invocation template. The table covers the
// documented minimum: a general-purpose scripting language, an embedded
// scripting language, a shell, and two compiled systems languages.
type Language struct {
	Image      string // container image
	Binary     string // subprocess binary, resolved via PATH
	Extension  string // e.g. ".py"
	Executable bool   // script file needs the executable bit (shell)

	// Command builds the invocation for scriptPath, in either the
	// container (workspace-relative) or subprocess (absolute) case.
	Command func(scriptPath string) []string
}

func defaultLanguages() map[string]Language {
	return map[string]Language{
		"python": {
			Image:     "python:3.12-slim",
			Binary:    "python3",
			Extension: ".py",
			Command:   func(p string) []string { return []string{"python3", p} },
		},
		"javascript": {
			Image:     "node:20-slim",
			Binary:    "node",
			Extension: ".js",
			Command:   func(p string) []string { return []string{"node", p} },
		},
		"shell": {
			Image:      "alpine:3.20",
			Binary:     "sh",
			Extension:  ".sh",
			Executable: true,
			Command:    func(p string) []string { return []string{"sh", p} },
		},
		"go": {
			Image:     "golang:1.22-alpine",
			Binary:    "go",
			Extension: ".go",
			Command:   func(p string) []string { return []string{"go", "run", p} },
		},
		"rust": {
			Image:     "rust:1.78-slim",
			Binary:    "rustc",
			Extension: ".rs",
			Command: func(p string) []string {
				bin := p + ".out"
				return []string{"sh", "-c", fmt.Sprintf("rustc -O -o %s %s && %s", bin, p, bin)}
			},
		},
	}
}
