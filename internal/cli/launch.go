package cli

import (
	"path/filepath"
	"strings"
)

// flowAliasPrefix marks a multi-call alias: a binary (or symlink) named
// "tickflow-miner" behaves as if -flow miner was passed.
const flowAliasPrefix = "tickflow-"

// FlowFromLaunchName maps the invoked binary name onto a flow type filter.
// The plain names run every profile; anything unrecognized is treated the
// same so a renamed binary still works.
func FlowFromLaunchName(argv0 string) string {
	name := filepath.Base(argv0)
	name = strings.TrimSuffix(name, ".exe")

	switch name {
	case "tickflowgo", "tickflow", "cli":
		return ""
	}
	if flow, ok := strings.CutPrefix(name, flowAliasPrefix); ok && flow != "" {
		return flow
	}
	return ""
}
