// Package guard implements the anti-hallucination guard: a post-turn scan
// of the assistant's final text for claims that should have been backed by
// a tool call but weren't. It catches two shapes of unverified claim: a
// reference to a workspace file that was never read or written this run,
// and a shell command narrated in prose instead of executed through exec.
// Detected claims produce a bounded number of nudges per turn that steer
// the model back into the loop to verify before finishing, rather than
// silently letting the turn end on an unchecked assertion.
package guard

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/coreforge/agentrun/internal/tools/files"
)

// Config controls whether the guard runs and how many nudges it may spend
// on a single turn before giving up and letting the turn complete anyway.
type Config struct {
	Enabled          bool
	MaxNudgesPerTurn int
}

// Finding is one unverified claim the guard caught in the assistant's text.
type Finding struct {
	Kind   string // "unverified_file" or "narrated_command"
	Detail string
}

// filePathPattern matches bare path-looking tokens in prose: at least one
// path separator or a recognizable source extension, no surrounding
// whitespace, not a URL.
var filePathPattern = regexp.MustCompile(`(?:^|[\s` + "`" + `(\[])((?:\.{1,2}/|/|[\w.-]+/)[\w./-]+\.\w+|[\w-]+\.(?:go|py|js|ts|tsx|jsx|rs|java|rb|yaml|yml|json|toml|md|sh))(?:$|[\s` + "`" + `)\].,;:!?])`)

// narratedCommandPattern matches a shell invocation embedded in running
// prose rather than a fenced code block or an actual exec tool call -
// lines that open with a shell verb and look like they're being reported
// as already run ("I ran `go test ./...`", "running npm install now").
var narratedCommandPattern = regexp.MustCompile(`(?i)\b(?:ran|running|executed|executing|i'll run|let me run)\s+` + "`" + `([^` + "`" + `]{2,80})` + "`")

var foldCase = cases.Fold(language.Und)

// Detector scans assistant text for unverified claims, cross-referencing
// file references against the set of paths the run actually touched this
// turn (via fs.read/fs.write/fs.edit/fs.patch) before flagging them.
type Detector struct {
	resolver files.Resolver
}

// NewDetector creates a Detector scoped to workspace, used to check whether
// a referenced path exists on disk at all (a reference to a path that
// doesn't exist anywhere is always unverified, touched or not).
func NewDetector(workspace string) *Detector {
	return &Detector{resolver: files.Resolver{Root: workspace}}
}

// Scan returns every unverified claim in text. touchedPaths is the set of
// workspace-relative paths a tool call already read, wrote, or diffed this
// turn; a file reference naming one of them is considered verified.
func (d *Detector) Scan(text string, touchedPaths map[string]bool) []Finding {
	var findings []Finding

	seen := map[string]bool{}
	for _, m := range filePathPattern.FindAllStringSubmatch(text, -1) {
		path := m[1]
		key := foldCase.String(path)
		if seen[key] {
			continue
		}
		seen[key] = true
		if touchedPaths[path] || touchedPaths[foldCase.String(path)] {
			continue
		}
		if d.pathExists(path) {
			continue
		}
		findings = append(findings, Finding{
			Kind:   "unverified_file",
			Detail: fmt.Sprintf("%q was referenced but never read or written this turn, and does not exist in the workspace", path),
		})
	}

	for _, m := range narratedCommandPattern.FindAllStringSubmatch(text, -1) {
		cmd := strings.TrimSpace(m[1])
		if cmd == "" {
			continue
		}
		findings = append(findings, Finding{
			Kind:   "narrated_command",
			Detail: fmt.Sprintf("claims to have run %q in prose instead of via a tool call", cmd),
		})
	}

	return findings
}

func (d *Detector) pathExists(path string) bool {
	resolved, err := d.resolver.Resolve(path)
	if err != nil {
		return false
	}
	return files.Exists(resolved)
}
