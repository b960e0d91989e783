// Package critical inspects a completed collection tree and reports
// findings that point at the likely cause of a link flap: hard error
// counters, PCIe bus errors, thermal excursions, and driver or GPU
// faults in the kernel logs. All checks run on the captured artifacts,
// never on the live system, so analysis is repeatable offline.
package critical

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Severity orders findings for the summary report.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityWarning:
		return "WARNING"
	default:
		return "OK"
	}
}

// Finding categories. One category per rule family.
const (
	CategoryLinkDownEvents = "link-down-events"
	CategoryTxRxErrors     = "tx-rx-errors"
	CategoryLinkFlapRate   = "link-flap-rate"
	CategoryPCIeError      = "pcie-error"
	CategoryTemperature    = "temperature"
	CategoryPCIeAER        = "pcie-aer"
	CategoryPauseStorm     = "pause-storm"
	CategoryKernelError    = "kernel-error"
	CategoryGPUIssue       = "gpu-issue"
	CategoryDPUIssue       = "dpu-issue"
	CategoryLinkHealth     = "link-health"
)

// Finding is one triage observation with the artifact lines backing it.
type Finding struct {
	Category string
	Severity Severity
	Message  string
	Evidence []string
}

// Verdict is the full analysis result for one collection tree.
type Verdict struct {
	Findings []Finding
}

// Issues counts the findings that demand operator attention.
func (v Verdict) Issues() int {
	n := 0
	for _, f := range v.Findings {
		if f.Severity >= SeverityWarning {
			n++
		}
	}
	return n
}

// Analyze runs every rule over the artifacts under root. Missing
// artifacts are treated as empty: a tree collected on a host without
// GPUs or a DPU simply produces no findings in those categories.
func Analyze(root string, rs Ruleset) Verdict {
	var v Verdict

	for _, dir := range interfaceDirs(root) {
		iface := filepath.Base(dir)
		text := readDirText(dir)
		if f, ok := CheckLinkDownEvents(iface, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
		if f, ok := CheckCounterErrors(iface, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
		if f, ok := CheckPauseStorm(iface, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
	}

	kernelText := readFileText(filepath.Join(root, "logs", "dmesg.txt")) +
		"\n" + readFileText(filepath.Join(root, "logs", "journal_kernel.txt"))
	v.Findings = append(v.Findings, CheckLinkFlapRate(kernelText, rs))
	if f, ok := CheckKernelVendorErrors(kernelText, rs); ok {
		v.Findings = append(v.Findings, f)
	}

	if f, ok := CheckPCIeErrors(readFileText(filepath.Join(root, "pci", "pcie_errors.txt")), rs); ok {
		v.Findings = append(v.Findings, f)
	}
	for _, path := range globSorted(filepath.Join(root, "pci", "*_info.txt")) {
		slot := strings.TrimSuffix(filepath.Base(path), "_info.txt")
		if f, ok := CheckAER(slot, readFileText(path), rs); ok {
			v.Findings = append(v.Findings, f)
		}
	}

	if f, ok := CheckTemperatures(readFileText(filepath.Join(root, "system", "temperatures.txt")), rs); ok {
		v.Findings = append(v.Findings, f)
	}

	gpuKernel := kernelText + "\n" + readFileText(filepath.Join(root, "gpu", "gpu_kernel_messages.txt"))
	if f, ok := CheckGPUKernelLog(gpuKernel, rs); ok {
		v.Findings = append(v.Findings, f)
	}
	var gpuText strings.Builder
	for _, path := range globSorted(filepath.Join(root, "gpu", "*.txt")) {
		if filepath.Base(path) == "gpu_kernel_messages.txt" {
			continue
		}
		gpuText.WriteString(readFileText(path))
		gpuText.WriteString("\n")
	}
	if f, ok := CheckGPUArtifacts(gpuText.String(), rs); ok {
		v.Findings = append(v.Findings, f)
	}
	if f, ok := CheckGPUTemperature(gpuText.String(), rs); ok {
		v.Findings = append(v.Findings, f)
	}

	if f, ok := CheckDPUIssues(readDirText(filepath.Join(root, "dpu")), rs); ok {
		v.Findings = append(v.Findings, f)
	}

	for _, path := range globSorted(filepath.Join(root, "nvidia", "*")) {
		base := filepath.Base(path)
		// Help captures and the raw device listing carry no link state.
		if strings.HasSuffix(base, "_help.txt") || base == "mst_status.txt" {
			continue
		}
		text := readFileText(path)
		if strings.HasSuffix(base, ".csv") {
			text = csvKeyValueText(text)
		}
		if f, ok := CheckBER(base, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
		if f, ok := CheckFECHistogram(base, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
		if f, ok := CheckModuleTemperature(base, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
		if f, ok := CheckModuleVoltage(base, text, rs); ok {
			v.Findings = append(v.Findings, f)
		}
	}

	sort.SliceStable(v.Findings, func(i, j int) bool {
		return v.Findings[i].Severity > v.Findings[j].Severity
	})
	return v
}

// Render formats the verdict as the human-readable summary written to
// analysis/critical_issues.txt.
func Render(v Verdict) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n CRITICAL ISSUES SUMMARY\n")
	b.WriteString(strings.Repeat("=", 60))
	b.WriteString("\n\n")

	issues := 0
	for _, f := range v.Findings {
		if f.Severity < SeverityWarning {
			continue
		}
		issues++
		fmt.Fprintf(&b, "[%s] %s: %s\n", f.Severity, f.Category, f.Message)
		for _, line := range f.Evidence {
			fmt.Fprintf(&b, "    %s\n", strings.TrimSpace(line))
		}
		b.WriteString("\n")
	}

	if issues == 0 {
		b.WriteString("No critical issues found.\n")
	} else {
		fmt.Fprintf(&b, "Total issues found: %d\n", issues)
	}
	return b.String()
}

// csvKeyValueText flattens amber CSV rows into "header: value" lines so
// the same flat scans that read mlxlink text can read the CSV fields.
// Best-effort split on bare commas; a malformed row just yields fewer
// pairs.
func csvKeyValueText(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return ""
	}
	headers := strings.Split(lines[0], ",")
	var b strings.Builder
	for _, row := range lines[1:] {
		values := strings.Split(row, ",")
		for i, h := range headers {
			if i >= len(values) {
				break
			}
			b.WriteString(strings.TrimSpace(h))
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(values[i]))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func readFileText(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// readDirText concatenates every regular file directly under dir.
func readDirText(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b.WriteString(readFileText(filepath.Join(dir, e.Name())))
		b.WriteString("\n")
	}
	return b.String()
}

func interfaceDirs(root string) []string {
	entries, err := os.ReadDir(filepath.Join(root, "interfaces"))
	if err != nil {
		return nil
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, "interfaces", e.Name()))
		}
	}
	sort.Strings(dirs)
	return dirs
}

func globSorted(pattern string) []string {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	sort.Strings(paths)
	return paths
}
