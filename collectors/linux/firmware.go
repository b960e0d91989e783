package linux

import (
	"context"

	"flaptrace/collectors"
)

// FirmwareCollector queries NIC firmware and link state per MST device.
// Optional mlxlink views are gated on the probed capability set so an
// older tool never produces a failed invocation where "not supported"
// is the truth.
type FirmwareCollector struct{}

func NewFirmwareCollector() *FirmwareCollector { return &FirmwareCollector{} }

func (c *FirmwareCollector) Name() string { return "firmware" }

// Gated mlxlink view -> artifact label.
var mlxlinkViews = []struct {
	flag  string
	label string
}{
	{flag: collectors.MlxlinkShowCounters, label: "mlxlink_counters.txt"},
	{flag: collectors.MlxlinkShowEye, label: "mlxlink_eye.txt"},
	{flag: collectors.MlxlinkShowFEC, label: "mlxlink_fec.txt"},
}

func (c *FirmwareCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	for _, dev := range rc.MSTDevices {
		rc.Runner.Run(ctx, rc.Tree.DevicePath(dev, "flint_query.txt"), "flint", "-d", dev.ID, "q")
		rc.Runner.Run(ctx, rc.Tree.DevicePath(dev, "mlxconfig.txt"), "mlxconfig", "-d", dev.ID, "q")
		rc.Runner.Run(ctx, rc.Tree.DevicePath(dev, "mlxlink.txt"), "mlxlink", "-d", dev.ID)

		for _, view := range mlxlinkViews {
			art := rc.Tree.DevicePath(dev, view.label)
			if !rc.Caps.Supports(view.flag) {
				rc.Runner.WriteMarker(art, "not supported by installed mlxlink: "+view.flag)
				continue
			}
			rc.Runner.Run(ctx, art, "mlxlink", "-d", dev.ID, view.flag)
		}

		amber := rc.Tree.DevicePath(dev, "amber.csv")
		if !rc.Caps.Supports(collectors.MlxlinkAmberCollect) {
			rc.Runner.WriteMarker(rc.Tree.DevicePath(dev, "amber_collect.txt"),
				"not supported by installed mlxlink: "+collectors.MlxlinkAmberCollect)
			continue
		}
		rc.Runner.Run(ctx, rc.Tree.DevicePath(dev, "amber_collect.txt"),
			"mlxlink", "-d", dev.ID, collectors.MlxlinkAmberCollect, amber)
	}
	return nil
}
