// Package expander wraps the opaque album/gallery URL expander
// collaborator (C12, a SPEC_FULL.md addition): a configured external
// program (gallery-dl by convention, matching
// original_source/img_util.py's get_image_urls) that, given a URL,
// prints zero or more child URLs to stdout, one per line.
package expander

import (
	"bufio"
	"context"
	"os/exec"
	"strings"
)

// Expander shells out to an external program to expand an indirect
// URL into its child media URLs.
type Expander struct {
	Command string
	Args    []string
}

// New builds an Expander that invokes command with args appended
// before the target URL (e.g. args=["-g"] for gallery-dl's
// print-urls-only mode).
func New(command string, args []string) *Expander {
	return &Expander{Command: command, Args: args}
}

// Expand runs the configured program against url and returns its
// newline-delimited stdout as a deduplicated URL slice. Per §4.4 point
// 4, callers only treat the source as an Album when this yields >1
// child.
func (e *Expander) Expand(ctx context.Context, url string) ([]string, error) {
	args := append(append([]string{}, e.Args...), url)
	cmd := exec.CommandContext(ctx, e.Command, args...)

	out, err := cmd.Output()
	if err != nil {
		// A nonzero exit (e.g. "unsupported URL") means zero children,
		// not a propagated error — the caller just skips expansion.
		return nil, nil
	}

	seen := make(map[string]struct{})
	var children []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		children = append(children, line)
	}
	return children, nil
}
