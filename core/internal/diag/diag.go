// Package diag drives one end-to-end diagnostic run: build the
// collection tree, discover targets, run every collection phase, then
// analyze the artifacts and pack the tree into an archive.
package diag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"

	"flaptrace/analyzers/critical"
	"flaptrace/collectors"
	"flaptrace/collectors/linux"
	"flaptrace/evidence"
)

type Options struct {
	CaseID     string
	Output     string
	ArchiveDir string

	Interfaces []string
	Slots      []string
	MSTDevices []string
	RemoteDPU  string

	JournalHours int
	RulesFile    string

	// Overridable roots and cadence for tests.
	SysClassNet    string
	HwmonRoot      string
	ProcRoot       string
	SampleCount    int
	SampleInterval time.Duration

	Log logr.Logger
}

type Result struct {
	CaseID      string
	OutputDir   string
	ArchivePath string
	Verdict     critical.Verdict
}

func (o *Options) applyDefaults() {
	if o.ArchiveDir == "" {
		o.ArchiveDir = "."
	}
	if o.JournalHours <= 0 {
		o.JournalHours = 4
	}
	if o.SysClassNet == "" {
		o.SysClassNet = "/sys/class/net"
	}
	if o.HwmonRoot == "" {
		o.HwmonRoot = "/sys/class/hwmon"
	}
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.SampleCount <= 0 {
		o.SampleCount = 3
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = 2 * time.Second
	}
}

// Run executes the full pipeline. Collection failures are soft; only
// infrastructure failures (output dir, ledger, archive) return an error.
func Run(ctx context.Context, opts Options) (Result, error) {
	opts.applyDefaults()
	log := opts.Log

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return Result{}, fmt.Errorf("create output dir: %w", err)
	}
	tree := collectors.Tree{Root: opts.Output}
	if err := tree.EnsureSkeleton(); err != nil {
		return Result{}, fmt.Errorf("create collection tree: %w", err)
	}

	runner, err := collectors.NewRunner(tree.LedgerPath(), log)
	if err != nil {
		return Result{}, err
	}

	rc := collectors.RunContext{
		Tree:           tree,
		Runner:         runner,
		Log:            log,
		Interfaces:     collectors.DiscoverInterfaces(opts.SysClassNet, opts.Interfaces),
		Slots:          collectors.DiscoverPCISlots(ctx, runner, tree, opts.Slots),
		MSTDevices:     collectors.DiscoverMSTDevices(ctx, runner, tree, opts.MSTDevices),
		RemoteDPU:      opts.RemoteDPU,
		JournalHours:   opts.JournalHours,
		SampleCount:    opts.SampleCount,
		SampleInterval: opts.SampleInterval,
		SysClassNet:    opts.SysClassNet,
		HwmonRoot:      opts.HwmonRoot,
		ProcRoot:       opts.ProcRoot,
	}
	rc.Caps = collectors.Probe(ctx, runner, tree, "mlxlink", collectors.MlxlinkFlags)

	log.Info("collection starting",
		"interfaces", len(rc.Interfaces), "slots", len(rc.Slots), "mst_devices", len(rc.MSTDevices))

	cols := []collectors.Collector{
		linux.NewSystemCollector(),
		linux.NewPCICollector(),
		linux.NewFirmwareCollector(),
		linux.NewInterfaceCollector(),
		linux.NewLogsCollector(),
		linux.NewDPUCollector(),
		linux.NewGPUCollector(),
	}
	for _, c := range cols {
		select {
		case <-ctx.Done():
			runner.Close()
			return Result{}, ctx.Err()
		default:
		}
		if err := c.Collect(ctx, rc); err != nil {
			log.Error(err, "collection phase failed", "collector", c.Name())
		}
	}
	if err := runner.Close(); err != nil {
		log.Error(err, "close audit ledger")
	}

	rs := critical.DefaultRuleset()
	if opts.RulesFile != "" {
		rs, err = critical.LoadRuleset(opts.RulesFile)
		if err != nil {
			return Result{}, err
		}
	}
	verdict := critical.Analyze(opts.Output, rs)
	report := critical.Render(verdict)
	if err := evidence.WriteFileAtomic(
		filepath.Join(opts.Output, "analysis", "critical_issues.txt"), []byte(report), 0o644); err != nil {
		return Result{}, fmt.Errorf("write analysis report: %w", err)
	}

	manifest, err := evidence.BuildManifest(opts.Output, opts.CaseID, map[string]string{
		"issues": fmt.Sprintf("%d", verdict.Issues()),
	})
	if err != nil {
		return Result{}, fmt.Errorf("build manifest: %w", err)
	}
	if err := evidence.WriteManifest(opts.Output, manifest); err != nil {
		return Result{}, fmt.Errorf("write manifest: %w", err)
	}

	archivePath := filepath.Join(opts.ArchiveDir, filepath.Base(filepath.Clean(opts.Output))+".tar.gz")
	if err := tarGzDir(opts.Output, archivePath); err != nil {
		return Result{}, fmt.Errorf("create archive: %w", err)
	}

	log.Info("collection complete",
		"output", opts.Output, "archive", archivePath, "issues", verdict.Issues())

	return Result{
		CaseID:      opts.CaseID,
		OutputDir:   opts.Output,
		ArchivePath: archivePath,
		Verdict:     verdict,
	}, nil
}
