package linux

import (
	"context"
	"fmt"

	"flaptrace/collectors"
)

// LogsCollector captures the kernel and journal logs the analyzer scans
// for vendor errors and link flap rate.
type LogsCollector struct{}

func NewLogsCollector() *LogsCollector { return &LogsCollector{} }

func (c *LogsCollector) Name() string { return "logs" }

func (c *LogsCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	rc.Runner.Run(ctx, rc.Tree.Path("logs", "dmesg.txt"), "dmesg", "-T")
	rc.Runner.Run(ctx, rc.Tree.Path("logs", "journal_kernel.txt"),
		"journalctl", "-k", "--no-pager", "--since", fmt.Sprintf("%d hours ago", rc.JournalHours))
	rc.Runner.RunShell(ctx, rc.Tree.Path("logs", "link_events.txt"),
		"dmesg -T | grep -iE 'carrier|link (up|down)' | tail -n 200")
	return nil
}
