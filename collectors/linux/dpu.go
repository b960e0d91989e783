package linux

import (
	"context"

	"flaptrace/collectors"
)

// DPUCollector captures DPU state: local BlueField tooling output plus,
// when a management IP was given, a single best-effort ssh fan-out to
// the card's own OS. Remote commands are attempted exactly once with no
// retry; a hung remote command stalls the run, which is accepted.
type DPUCollector struct{}

func NewDPUCollector() *DPUCollector { return &DPUCollector{} }

func (c *DPUCollector) Name() string { return "dpu" }

var remoteDPUCommands = []struct {
	label string
	cmd   string
}{
	{label: "remote_uptime.txt", cmd: "uptime"},
	{label: "remote_dmesg.txt", cmd: "dmesg | tail -n 200"},
	{label: "remote_interfaces.txt", cmd: "ip -br link"},
	{label: "remote_services.txt", cmd: "systemctl --failed --no-pager"},
	{label: "remote_temperature.txt", cmd: "cat /sys/class/hwmon/hwmon*/temp*_input 2>/dev/null"},
}

func (c *DPUCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	rc.Runner.Run(ctx, rc.Tree.Path("dpu", "bfb_info.txt"), "bfb-info")
	rc.Runner.Run(ctx, rc.Tree.Path("dpu", "fw_query.txt"), "mlxfwmanager", "--query")

	if rc.RemoteDPU == "" {
		return nil
	}
	for _, rcmd := range remoteDPUCommands {
		rc.Runner.Run(ctx, rc.Tree.Path("dpu", rcmd.label),
			"ssh", "-o", "BatchMode=yes", "-o", "ConnectTimeout=10", rc.RemoteDPU, rcmd.cmd)
	}
	return nil
}
