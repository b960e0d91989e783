package collectors

import (
	"context"
	"time"

	"github.com/go-logr/logr"
)

// Artifact describes one collected file for the run manifest.
type Artifact struct {
	RelativePath string `json:"relative_path"`
	CollectedAt  string `json:"collected_at"`
	SizeBytes    int64  `json:"size_bytes"`
	SHA256       string `json:"sha256"`
}

// RunContext carries everything a collection phase needs: the artifact
// tree, the command runner, discovered targets and the probed capability
// set. Built once per run; collectors treat it as read-only.
type RunContext struct {
	Tree   Tree
	Runner *Runner
	Log    logr.Logger

	Interfaces []Target
	Slots      []Target
	MSTDevices []Target
	RemoteDPU  string

	Caps CapabilitySet

	// JournalHours is the -t lookback window for journalctl.
	JournalHours int

	// Counter sampling cadence for the stats-history artifact. The
	// interval is injectable so tests do not sleep.
	SampleCount    int
	SampleInterval time.Duration

	// Sysfs/procfs roots, overridable in tests.
	SysClassNet string
	HwmonRoot   string
	ProcRoot    string
}

// Collector is one collection phase. Collect failures are soft: the run
// records the error and proceeds to the next phase.
type Collector interface {
	Name() string
	Collect(ctx context.Context, rc RunContext) error
}
