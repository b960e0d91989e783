package collectors

import (
	"context"
	"strings"
)

// Optional mlxlink views probed once per run.
const (
	MlxlinkShowCounters = "--show_counters"
	MlxlinkShowEye      = "--show_eye"
	MlxlinkShowFEC      = "--show_fec"
	MlxlinkAmberCollect = "--amber_collect"
)

// MlxlinkFlags is the full probe list for mlxlink.
var MlxlinkFlags = []string{MlxlinkShowCounters, MlxlinkShowEye, MlxlinkShowFEC, MlxlinkAmberCollect}

// CapabilitySet records which optional flags a versioned external tool
// supports, derived once per run from its help text. When the tool is
// absent every flag reads false and gated collectors substitute a marker
// instead of invoking it. Flag detection is a literal substring match
// against the help output: new tool versions that add flags are picked
// up without a version table, at the cost of false negatives if the
// help wording changes.
type CapabilitySet struct {
	Tool    string
	Present bool
	flags   map[string]bool
}

// Supports reports whether the probed help text declared the flag.
func (c CapabilitySet) Supports(flag string) bool {
	return c.flags[flag]
}

// ParseCapabilities derives a CapabilitySet from already-captured help
// text. Split out from Probe so rules can be exercised against literal
// fixture strings.
func ParseCapabilities(tool, helpText string, flags []string) CapabilitySet {
	cs := CapabilitySet{Tool: tool, Present: true, flags: make(map[string]bool, len(flags))}
	for _, f := range flags {
		cs.flags[f] = strings.Contains(helpText, f)
	}
	return cs
}

// absentCapabilities is the all-false set for a missing tool.
func absentCapabilities(tool string, flags []string) CapabilitySet {
	cs := CapabilitySet{Tool: tool, flags: make(map[string]bool, len(flags))}
	for _, f := range flags {
		cs.flags[f] = false
	}
	return cs
}

// Probe runs the tool's help invocation once and derives the capability
// set from whatever it printed. An absent binary short-circuits to the
// all-false set without attempting execution.
func Probe(ctx context.Context, r *Runner, tree Tree, tool string, flags []string) CapabilitySet {
	artifact := tree.Path("nvidia", tool+"_help.txt")
	ex := r.Run(ctx, artifact, tool, "--help")
	if ex.Status == StatusNotFound {
		return absentCapabilities(tool, flags)
	}
	// Some tools print help to stderr and exit non-zero; the merged
	// capture still carries the flag list, so a failed exit is not
	// treated as absence.
	return ParseCapabilities(tool, string(ex.Output), flags)
}
