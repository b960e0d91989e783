package linux

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"flaptrace/collectors"
)

// pciDevRoot is where per-slot AER counter files live. Reads are
// best-effort: unprivileged runs usually cannot see them.
const pciDevRoot = "/sys/bus/pci/devices"

// PCICollector captures per-slot configuration and link state, plus the
// dedicated PCIe error artifact scanned by the analyzer.
type PCICollector struct{}

func NewPCICollector() *PCICollector { return &PCICollector{} }

func (c *PCICollector) Name() string { return "pci" }

func (c *PCICollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	for _, slot := range rc.Slots {
		art := rc.Tree.SlotPath(slot, "info.txt")
		rc.Runner.Run(ctx, art, "lspci", "-vvv", "-s", slot.ID)
		c.appendAERCounters(rc, slot, art)
	}

	rc.Runner.RunShell(ctx, rc.Tree.Path("pci", "pcie_errors.txt"),
		"dmesg | grep -iE 'pcie bus error|aer:|bad tlp|bad dllp|link retrain|completion timeout' | tail -n 200")
	return nil
}

// appendAERCounters reads the sysfs AER device counters for the slot.
// Missing files get an explicit fallback line rather than an error: the
// kernel only exposes them on AER-capable ports.
func (c *PCICollector) appendAERCounters(rc collectors.RunContext, slot collectors.Target, artifact string) {
	found := false
	for _, f := range []string{"aer_dev_correctable", "aer_dev_nonfatal", "aer_dev_fatal"} {
		b, err := os.ReadFile(filepath.Join(pciDevRoot, slot.ID, f))
		if err != nil {
			continue
		}
		rc.Runner.WriteMarker(artifact, f+":")
		rc.Runner.WriteMarker(artifact, strings.TrimRight(string(b), "\n"))
		found = true
	}
	if !found {
		rc.Runner.WriteMarker(artifact, "AER counters not available for "+slot.ID)
	}
}
