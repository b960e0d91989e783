package linux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"flaptrace/collectors"
)

// InterfaceCollector produces the per-interface artifact set: counters
// and driver state, interrupt mapping, a short sampled counter history,
// PCIe power management for the backing slot, kernel link history,
// module diagnostics and neighbor state.
type InterfaceCollector struct{}

func NewInterfaceCollector() *InterfaceCollector { return &InterfaceCollector{} }

func (c *InterfaceCollector) Name() string { return "interfaces" }

func (c *InterfaceCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	for _, iface := range rc.Interfaces {
		if err := os.MkdirAll(rc.Tree.InterfaceDir(iface), 0o755); err != nil {
			return err
		}
		c.collectInfo(ctx, rc, iface)
		c.collectInterrupts(ctx, rc, iface)
		c.collectStatsHistory(ctx, rc, iface)
		c.collectPowerManagement(ctx, rc, iface)
		c.collectLinkHistory(ctx, rc, iface)
		c.collectDriverDiagnostics(ctx, rc, iface)
		c.collectNeighborInfo(ctx, rc, iface)
	}
	return nil
}

func (c *InterfaceCollector) collectInfo(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "info.txt")

	cands := []struct {
		name string
		args []string
	}{
		{name: "ethtool", args: []string{iface.ID}},
		{name: "ethtool", args: []string{"-i", iface.ID}},
		{name: "ethtool", args: []string{"-S", iface.ID}},
		{name: "ethtool", args: []string{"-a", iface.ID}},
		{name: "ethtool", args: []string{"-k", iface.ID}},
		{name: "ethtool", args: []string{"-c", iface.ID}},
		{name: "ip", args: []string{"addr", "show", "dev", iface.ID}},
	}
	for _, cand := range cands {
		rc.Runner.Run(ctx, art, cand.name, cand.args...)
	}

	// Sysfs state survives even when ethtool/ip are absent.
	for _, attr := range []string{"operstate", "carrier", "carrier_changes", "speed", "duplex", "mtu"} {
		b, err := os.ReadFile(filepath.Join(rc.SysClassNet, iface.ID, attr))
		if err != nil {
			continue
		}
		rc.Runner.WriteMarker(art, attr+": "+strings.TrimSpace(string(b)))
	}
}

func (c *InterfaceCollector) collectInterrupts(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "interrupts.txt")
	rc.Runner.RunShell(ctx, art, fmt.Sprintf("grep -i %s %s/interrupts", iface.ID, rc.ProcRoot))
}

// collectStatsHistory samples the interface counters a few times with a
// short pause between samples so counter deltas over a few seconds are
// visible. This is the run's only intentional delay.
func (c *InterfaceCollector) collectStatsHistory(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "stats_history.txt")
	samples := rc.SampleCount
	if samples <= 0 {
		samples = 3
	}
	for i := 0; i < samples; i++ {
		rc.Runner.WriteMarker(art, fmt.Sprintf("--- sample %d/%d ---", i+1, samples))
		rc.Runner.Run(ctx, art, "ip", "-s", "link", "show", "dev", iface.ID)
		rc.Runner.Run(ctx, art, "ethtool", "-S", iface.ID)
		if i < samples-1 {
			sleepCtx(ctx, rc.SampleInterval)
		}
	}
}

func (c *InterfaceCollector) collectPowerManagement(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "power_management.txt")
	slot, ok := collectors.SlotForInterface(rc.SysClassNet, iface.ID)
	if !ok {
		rc.Runner.WriteMarker(art, "no PCI slot resolved for "+iface.ID)
		return
	}
	rc.Runner.WriteMarker(art, "pci_slot: "+slot)
	rc.Runner.RunShell(ctx, art, fmt.Sprintf("lspci -vvv -s %s | grep -i -A2 aspm", slot))
	if b, err := os.ReadFile(filepath.Join(rc.SysClassNet, iface.ID, "device", "power", "control")); err == nil {
		rc.Runner.WriteMarker(art, "power/control: "+strings.TrimSpace(string(b)))
	}
}

func (c *InterfaceCollector) collectLinkHistory(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "link_history.txt")
	rc.Runner.RunShell(ctx, art, fmt.Sprintf("dmesg -T | grep -i %s | tail -n 100", iface.ID))
	rc.Runner.RunShell(ctx, art,
		fmt.Sprintf("journalctl -k --no-pager --since '%d hours ago' | grep -i %s | tail -n 100",
			rc.JournalHours, iface.ID))
}

func (c *InterfaceCollector) collectDriverDiagnostics(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "driver_diagnostics.txt")
	rc.Runner.Run(ctx, art, "ethtool", "-m", iface.ID)
	rc.Runner.Run(ctx, art, "devlink", "health", "show")
	rc.Runner.Run(ctx, art, "ethtool", "--show-priv-flags", iface.ID)
}

func (c *InterfaceCollector) collectNeighborInfo(ctx context.Context, rc collectors.RunContext, iface collectors.Target) {
	art := rc.Tree.InterfaceFile(iface, "neighbor_info.txt")
	rc.Runner.Run(ctx, art, "ip", "neigh", "show", "dev", iface.ID)
	rc.Runner.Run(ctx, art, "lldpctl", iface.ID)
}

// sleepCtx pauses between counter samples without outliving the run.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
