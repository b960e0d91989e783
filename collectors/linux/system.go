package linux

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"flaptrace/collectors"
)

// SystemCollector gathers host-level context: kernel, distribution, CPU
// and memory layout, firmware inventory, and the hwmon temperature dump
// the analyzer later scans.
type SystemCollector struct{}

func NewSystemCollector() *SystemCollector { return &SystemCollector{} }

func (c *SystemCollector) Name() string { return "system" }

func (c *SystemCollector) Collect(ctx context.Context, rc collectors.RunContext) error {
	info := rc.Tree.Path("system", "system_info.txt")

	cands := []struct {
		name string
		args []string
	}{
		{name: "uname", args: []string{"-a"}},
		{name: "hostnamectl", args: nil},
		{name: "uptime", args: nil},
		{name: "lscpu", args: nil},
		{name: "free", args: []string{"-h"}},
		{name: "numactl", args: []string{"--hardware"}},
	}
	for _, cand := range cands {
		rc.Runner.Run(ctx, info, cand.name, cand.args...)
	}

	c.collectOSRelease(rc)
	rc.Runner.Run(ctx, rc.Tree.Path("system", "dmidecode.txt"), "dmidecode", "-t", "system", "-t", "bios")
	c.collectTemperatures(rc)
	return nil
}

func (c *SystemCollector) collectOSRelease(rc collectors.RunContext) {
	out := rc.Tree.Path("system", "os_release.txt")
	for _, p := range []string{"/etc/os-release", "/usr/lib/os-release"} {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		rc.Runner.WriteMarker(out, strings.TrimRight(string(b), "\n"))
		return
	}
	rc.Runner.WriteMarker(out, "os-release not available")
}

// collectTemperatures dumps every hwmon temp*_input reading into one
// artifact, one "<hwmon>/<entry>: <milli-degrees>" line per sensor.
func (c *SystemCollector) collectTemperatures(rc collectors.RunContext) {
	out := rc.Tree.Path("system", "temperatures.txt")
	root := rc.HwmonRoot

	entries, err := os.ReadDir(root)
	if err != nil {
		rc.Runner.WriteMarker(out, "hwmon not available")
		return
	}

	wrote := false
	for _, e := range entries {
		dir := filepath.Join(root, e.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		name := "unknown"
		if b, err := os.ReadFile(filepath.Join(dir, "name")); err == nil {
			name = strings.TrimSpace(string(b))
		}
		var inputs []string
		for _, f := range files {
			if strings.HasPrefix(f.Name(), "temp") && strings.HasSuffix(f.Name(), "_input") {
				inputs = append(inputs, f.Name())
			}
		}
		sort.Strings(inputs)
		for _, in := range inputs {
			b, err := os.ReadFile(filepath.Join(dir, in))
			if err != nil {
				continue
			}
			rc.Runner.WriteMarker(out, fmt.Sprintf("%s (%s) %s: %s", e.Name(), name, in, strings.TrimSpace(string(b))))
			wrote = true
		}
	}
	if !wrote {
		rc.Runner.WriteMarker(out, "no temperature sensors found")
	}
}
