package critical

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Ruleset holds the analyzer's numeric thresholds. The defaults are the
// tool's documented heuristics; a YAML file can override individual
// values for site-specific tuning.
type Ruleset struct {
	// FlapCritical is the link up/down transition count above which the
	// flap-rate rule escalates from warning to critical.
	FlapCritical int `yaml:"flap_critical"`

	// TempWarnC is the sensor temperature (Celsius, after milli-unit
	// conversion) above which a warning is raised.
	TempWarnC float64 `yaml:"temp_warn_c"`

	// TempMaxC bounds plausible sensor readings; values at or above it
	// are treated as parse noise, not findings.
	TempMaxC float64 `yaml:"temp_max_c"`

	// GPUTempWarnC is the GPU temperature warning threshold.
	GPUTempWarnC float64 `yaml:"gpu_temp_warn_c"`

	// RawBERWarn is the raw physical bit error rate above which FEC is
	// known to be working hard on the link.
	RawBERWarn float64 `yaml:"raw_ber_warn"`

	// EffBERCritical is the post-FEC effective bit error rate above
	// which the link is marginal.
	EffBERCritical float64 `yaml:"eff_ber_critical"`

	// FECHighBin is the first FEC histogram bin index considered deep:
	// a non-zero count at or beyond it means codewords needed that many
	// symbol corrections, one step from uncorrectable.
	FECHighBin int `yaml:"fec_high_bin"`

	// ModuleTempWarnC is the transceiver module temperature warning
	// threshold.
	ModuleTempWarnC float64 `yaml:"module_temp_warn_c"`

	// ModuleVoltageMinMV and ModuleVoltageMaxMV bound the typical
	// transceiver supply range (2.97V - 3.63V).
	ModuleVoltageMinMV float64 `yaml:"module_voltage_min_mv"`
	ModuleVoltageMaxMV float64 `yaml:"module_voltage_max_mv"`

	// EvidenceMax caps quoted evidence lines per finding.
	EvidenceMax int `yaml:"evidence_max"`
}

func DefaultRuleset() Ruleset {
	return Ruleset{
		FlapCritical:       10,
		TempWarnC:          80,
		TempMaxC:           150,
		GPUTempWarnC:       80,
		RawBERWarn:         1e-8,
		EffBERCritical:     1e-12,
		FECHighBin:         12,
		ModuleTempWarnC:    70,
		ModuleVoltageMinMV: 2970,
		ModuleVoltageMaxMV: 3630,
		EvidenceMax:        5,
	}
}

// LoadRuleset reads a YAML threshold override on top of the defaults.
func LoadRuleset(path string) (Ruleset, error) {
	rs := DefaultRuleset()
	b, err := os.ReadFile(path)
	if err != nil {
		return rs, fmt.Errorf("read ruleset: %w", err)
	}
	if err := yaml.Unmarshal(b, &rs); err != nil {
		return rs, fmt.Errorf("parse ruleset: %w", err)
	}
	return rs, nil
}
