package critical

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Every rule is a flat text scan, not a structured parse: the upstream
// tools' output formats are not contractually stable, so the rules
// trade precision for robustness and each one excludes the known
// placeholder and zero-value shapes that would otherwise false-positive
// on "field present but empty" lines.

var (
	reLinkDownEvents = regexp.MustCompile(`(?i)link_down\w*\s*[:=]?\s*(\d+)`)
	reRxTxError      = regexp.MustCompile(`(?i)(rx|tx).*error|dropped`)
	reTrailingInt    = regexp.MustCompile(`(\d+)\s*$`)
	reLinkTransition = regexp.MustCompile(`(?i)link.*(up|down)`)
	rePCIeError      = regexp.MustCompile(`(?i)corrected error|uncorrect|fatal|bad tlp|bad dllp|retrain|completion timeout|receiver error`)
	reAERLabel       = regexp.MustCompile(`(?i)err_sourceid|err_cor|err_fatal|aer`)
	reHexField       = regexp.MustCompile(`\b(?:0x)?([0-9a-fA-F]{4,})\b`)
	rePauseStorm     = regexp.MustCompile(`(?i)pause_storm\w*\s*[:=]?\s*(\d+)`)
	reVendor         = regexp.MustCompile(`(?i)mlx|mellanox`)
	reErrorKeyword   = regexp.MustCompile(`(?i)error|fail|warn`)
	reGPUTag         = regexp.MustCompile(`(?i)nvrm|nvidia|gpu`)
	reGPUError       = regexp.MustCompile(`(?i)error|fail`)
	reHealthKeyword  = regexp.MustCompile(`(?i)error|fail|overheat`)
	reDegraded       = regexp.MustCompile(`(?i)unhealthy|degraded`)
	reTempC          = regexp.MustCompile(`(\d{1,3})\s*C\b`)
	rePlaceholder    = regexp.MustCompile(`(?i)n/a|not available|not supported|not found`)
)

// Link-quality fields from mlxlink and amber output.
var (
	reBER        = regexp.MustCompile(`(?i)(raw|effective)[ _](?:physical[ _])?ber\s*[:=,]?\s*([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)`)
	reFECBin     = regexp.MustCompile(`(?i)\b(?:hist|bin)\s*_?(\d{1,2})\s*[:=,]?\s*([0-9]+)\s*$`)
	reModuleTemp = regexp.MustCompile(`(?i)module[_ ]temperature\s*[:=,]?\s*(-?\d+(?:\.\d+)?)`)
	reModuleVolt = regexp.MustCompile(`(?i)module[_ ]voltage\s*[:=,]?\s*(\d+(?:\.\d+)?)`)
)

// isArtifactNoise filters the delimiter blocks and markers this tool
// writes into its own artifacts, so a rule never matches the command
// text of the collector that produced the file.
func isArtifactNoise(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" ||
		strings.HasPrefix(t, "===== ") ||
		strings.HasPrefix(t, "Timestamp: ") ||
		strings.HasPrefix(t, "Command not found") ||
		strings.HasPrefix(t, "--- sample ")
}

func scanLines(text string, fn func(line string)) {
	for _, line := range strings.Split(text, "\n") {
		if isArtifactNoise(line) {
			continue
		}
		fn(line)
	}
}

// CheckLinkDownEvents flags any non-zero link_down-style counter in a
// per-interface info artifact.
func CheckLinkDownEvents(iface, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	total := 0
	scanLines(text, func(line string) {
		m := reLinkDownEvents.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || v == 0 {
			return
		}
		if total == 0 || v > total {
			total = v
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryLinkDownEvents,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("%s: link down events recorded (count %d)", iface, total),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckCounterErrors flags non-zero rx/tx error or drop counters,
// excluding lines whose trailing value reads exactly zero.
func CheckCounterErrors(iface, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		if !reRxTxError.MatchString(line) {
			return
		}
		m := reTrailingInt.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || v == 0 {
			return
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryTxRxErrors,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("%s: non-zero rx/tx error counters", iface),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckLinkFlapRate classifies the link up/down transition count in the
// aggregated kernel log. Always returns a finding: clean logs yield an
// ok-severity entry so the verdict shows the rule ran.
func CheckLinkFlapRate(logText string, rs Ruleset) Finding {
	var evidence []string
	count := 0
	scanLines(logText, func(line string) {
		if !reLinkTransition.MatchString(line) {
			return
		}
		count++
		evidence = append(evidence, line)
	})

	f := Finding{Category: CategoryLinkFlapRate, Evidence: capEvidence(evidence, rs)}
	switch {
	case count > rs.FlapCritical:
		f.Severity = SeverityCritical
		f.Message = fmt.Sprintf("link flapping detected: %d link state transitions in kernel logs", count)
	case count >= 1:
		f.Severity = SeverityWarning
		f.Message = fmt.Sprintf("isolated link events: %d link state transitions in kernel logs", count)
	default:
		f.Severity = SeverityOK
		f.Message = "no link up/down transitions in kernel logs"
		f.Evidence = nil
	}
	return f
}

// CheckPCIeErrors scans the dedicated PCIe error artifact for bus error
// and retrain patterns, skipping placeholder lines.
func CheckPCIeErrors(text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		if rePlaceholder.MatchString(line) {
			return
		}
		if !rePCIeError.MatchString(line) {
			return
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryPCIeError,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("PCIe errors in kernel log (%d lines)", len(evidence)),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckTemperatures converts hwmon milli-degree readings and flags
// sensors above the warning threshold. Readings at or beyond the
// plausibility bound are rejected as parse noise.
func CheckTemperatures(text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		if !strings.Contains(line, "_input") {
			return
		}
		m := reTrailingInt.FindStringSubmatch(line)
		if m == nil {
			return
		}
		milli, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return
		}
		c := float64(milli) / 1000.0
		if c > rs.TempWarnC && c < rs.TempMaxC {
			evidence = append(evidence, fmt.Sprintf("%s (%.1fC)", strings.TrimSpace(line), c))
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryTemperature,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("sensor temperature above %.0fC", rs.TempWarnC),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckAER flags non-zero hex error-source registers in a per-slot PCI
// info artifact. Only lines carrying an AER status label are inspected.
func CheckAER(slot, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		if !reAERLabel.MatchString(line) {
			return
		}
		for _, m := range reHexField.FindAllStringSubmatch(line, -1) {
			v, err := strconv.ParseUint(m[1], 16, 64)
			if err != nil || v == 0 {
				continue
			}
			evidence = append(evidence, line)
			return
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryPCIeAER,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("%s: non-zero AER error source register", slot),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckPauseStorm flags any non-zero pause_storm counter.
func CheckPauseStorm(iface, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		m := rePauseStorm.FindStringSubmatch(line)
		if m == nil {
			return
		}
		if v, err := strconv.Atoi(m[1]); err != nil || v == 0 {
			return
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryPauseStorm,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("%s: pause storm counter is non-zero", iface),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckKernelVendorErrors flags kernel log lines mentioning the NIC
// vendor together with an error keyword.
func CheckKernelVendorErrors(logText string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(logText, func(line string) {
		if !reVendor.MatchString(line) || !reErrorKeyword.MatchString(line) {
			return
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryKernelError,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("vendor driver errors in kernel log (%d lines)", len(evidence)),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckGPUArtifacts runs the health keyword scan over GPU tool output,
// excluding placeholder text and zero-valued counter lines.
func CheckGPUArtifacts(text string, rs Ruleset) (Finding, bool) {
	evidence := healthKeywordScan(text)
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryGPUIssue,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("GPU tool output reports problems (%d lines)", len(evidence)),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckGPUKernelLog flags GPU-tagged error lines in the kernel log.
func CheckGPUKernelLog(logText string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(logText, func(line string) {
		if !reGPUTag.MatchString(line) || !reGPUError.MatchString(line) {
			return
		}
		evidence = append(evidence, line)
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryGPUIssue,
		Severity: SeverityCritical,
		Message:  fmt.Sprintf("GPU errors in kernel log (%d lines)", len(evidence)),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckGPUTemperature flags GPU temperature readings above the
// threshold. Implemented once and shared by every GPU artifact scan.
func CheckGPUTemperature(text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		if !strings.Contains(strings.ToLower(line), "temp") {
			return
		}
		m := reTempC.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return
		}
		if v > rs.GPUTempWarnC && v < rs.TempMaxC {
			evidence = append(evidence, line)
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryGPUIssue,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("GPU temperature above %.0fC", rs.GPUTempWarnC),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckBER classifies the bit error rates a link tool reported for one
// device. An effective (post-FEC) BER above threshold means errors are
// escaping correction and the link is marginal; a raw BER above
// threshold with a clean effective rate means FEC is still winning but
// working hard.
func CheckBER(device, text string, rs Ruleset) (Finding, bool) {
	var rawHigh, effHigh bool
	var evidence []string
	scanLines(text, func(line string) {
		if rePlaceholder.MatchString(line) {
			return
		}
		for _, m := range reBER.FindAllStringSubmatch(line, -1) {
			v, err := strconv.ParseFloat(m[2], 64)
			if err != nil {
				continue
			}
			switch {
			case strings.EqualFold(m[1], "effective") && v > rs.EffBERCritical:
				effHigh = true
			case strings.EqualFold(m[1], "raw") && v > rs.RawBERWarn:
				rawHigh = true
			default:
				continue
			}
			evidence = append(evidence, line)
		}
	})
	if !rawHigh && !effHigh {
		return Finding{}, false
	}
	f := Finding{Category: CategoryLinkHealth, Evidence: capEvidence(evidence, rs)}
	if effHigh {
		f.Severity = SeverityCritical
		f.Message = fmt.Sprintf("%s: effective BER is non-negligible, errors escape FEC", device)
	} else {
		f.Severity = SeverityWarning
		f.Message = fmt.Sprintf("%s: raw BER elevated, FEC is doing real work", device)
	}
	return f, true
}

// CheckFECHistogram flags corrections landing in deep histogram bins.
// Bin index is the number of symbols FEC had to correct per codeword;
// counts at or beyond the deep-bin threshold sit one step from
// uncorrectable codewords. All-zero bins report nothing.
func CheckFECHistogram(device, text string, rs Ruleset) (Finding, bool) {
	var total uint64
	maxBin := -1
	var evidence []string
	scanLines(text, func(line string) {
		for _, m := range reFECBin.FindAllStringSubmatch(line, -1) {
			bin, err := strconv.Atoi(m[1])
			if err != nil || bin > 15 {
				continue
			}
			count, err := strconv.ParseUint(m[2], 10, 64)
			if err != nil || count == 0 {
				continue
			}
			total += count
			if bin > maxBin {
				maxBin = bin
			}
			if bin >= rs.FECHighBin {
				evidence = append(evidence, line)
			}
		}
	})
	if total == 0 || maxBin < rs.FECHighBin {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryLinkHealth,
		Severity: SeverityWarning,
		Message: fmt.Sprintf("%s: FEC corrections in deep histogram bins (highest bin %d, %d total corrections)",
			device, maxBin, total),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckModuleTemperature flags a transceiver module running hot.
func CheckModuleTemperature(device, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		m := reModuleTemp.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return
		}
		if v > rs.ModuleTempWarnC && v < rs.TempMaxC {
			evidence = append(evidence, line)
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryLinkHealth,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("%s: module temperature above %.0fC", device, rs.ModuleTempWarnC),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckModuleVoltage flags a transceiver supply voltage outside the
// typical range.
func CheckModuleVoltage(device, text string, rs Ruleset) (Finding, bool) {
	var evidence []string
	scanLines(text, func(line string) {
		m := reModuleVolt.FindStringSubmatch(line)
		if m == nil {
			return
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return
		}
		if v < rs.ModuleVoltageMinMV || v > rs.ModuleVoltageMaxMV {
			evidence = append(evidence, line)
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryLinkHealth,
		Severity: SeverityWarning,
		Message: fmt.Sprintf("%s: module voltage outside %.0f-%.0f mV",
			device, rs.ModuleVoltageMinMV, rs.ModuleVoltageMaxMV),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// CheckDPUIssues runs the health keyword scan over DPU-local and
// DPU-tool output plus the DPU-specific degraded-state keywords.
func CheckDPUIssues(text string, rs Ruleset) (Finding, bool) {
	evidence := healthKeywordScan(text)
	seen := make(map[string]bool, len(evidence))
	for _, line := range evidence {
		seen[line] = true
	}
	scanLines(text, func(line string) {
		if reDegraded.MatchString(line) && !seen[line] {
			seen[line] = true
			evidence = append(evidence, line)
		}
	})
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Category: CategoryDPUIssue,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("DPU output reports problems (%d lines)", len(evidence)),
		Evidence: capEvidence(evidence, rs),
	}, true
}

// healthKeywordScan is the shared error/fail/overheat line scan used by
// the GPU and DPU rules. Placeholder lines and zero-valued counters are
// excluded so empty fields never read as findings.
func healthKeywordScan(text string) []string {
	var out []string
	scanLines(text, func(line string) {
		if rePlaceholder.MatchString(line) {
			return
		}
		if !reHealthKeyword.MatchString(line) {
			return
		}
		if m := reTrailingInt.FindStringSubmatch(line); m != nil {
			if v, err := strconv.ParseUint(m[1], 10, 64); err == nil && v == 0 {
				return
			}
		}
		out = append(out, line)
	})
	return out
}

func capEvidence(lines []string, rs Ruleset) []string {
	max := rs.EvidenceMax
	if max <= 0 || len(lines) <= max {
		return lines
	}
	return lines[:max]
}
