package linux

import (
	"context"

	"flaptrace/collectors"
)

// GPUCollector captures GPU state on hosts that have one. Everything is
// best-effort; hosts without nvidia-smi just get the not-found marker.
type GPUCollector struct{}

func NewGPUCollector() *GPUCollector { return &GPUCollector{} }

func (c *GPUCollector) Name() string { return "gpu" }

func (c *GPUCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	rc.Runner.Run(ctx, rc.Tree.Path("gpu", "nvidia_smi.txt"), "nvidia-smi")
	rc.Runner.Run(ctx, rc.Tree.Path("gpu", "nvidia_smi_query.txt"), "nvidia-smi", "-q")
	rc.Runner.RunShell(ctx, rc.Tree.Path("gpu", "gpu_kernel_messages.txt"),
		"dmesg -T | grep -iE 'nvrm|nvidia|gpu' | tail -n 200")
	return nil
}
