package cli

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flaptrace/analyzers/critical"
	"flaptrace/core/internal/diag"
	"flaptrace/core/internal/version"
)

func NewRootCmd() *cobra.Command {
	var interfaces []string
	var slots []string
	var mstDevices []string
	var remoteDPU string
	var hours int
	var output string
	var rulesFile string
	var caseID string
	var verbose bool

	cmd := &cobra.Command{
		Use:           "flaptrace",
		Short:         "Collect and triage NIC/DPU/GPU link flap diagnostics (Linux)",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Flag errors surface before RunE and get usage; runtime
			// failures past this point do not.
			cmd.SilenceUsage = true

			if caseID == "" {
				caseID = uuid.NewString()
			}
			if output == "" {
				output = "flaptrace_" + time.Now().Format("20060102_150405")
			}

			log, err := newLogger(verbose)
			if err != nil {
				return err
			}

			res, err := diag.Run(cmd.Context(), diag.Options{
				CaseID:       caseID,
				Output:       output,
				Interfaces:   splitTargets(interfaces),
				Slots:        splitTargets(slots),
				MSTDevices:   splitTargets(mstDevices),
				RemoteDPU:    remoteDPU,
				JournalHours: hours,
				RulesFile:    rulesFile,
				Log:          log,
			})
			if err != nil {
				return err
			}

			fmt.Print(critical.Render(res.Verdict))
			fmt.Printf("case=%s output=%s archive=%s\n", res.CaseID, res.OutputDir, res.ArchivePath)
			if issues := res.Verdict.Issues(); issues > 0 {
				return fmt.Errorf("%d issue(s) found, see %s/analysis/critical_issues.txt", issues, res.OutputDir)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&interfaces, "interfaces", "i", nil, "Network interfaces to diagnose (default: discover Mellanox interfaces)")
	cmd.Flags().StringSliceVarP(&slots, "slots", "s", nil, "PCI slots to diagnose (default: discover Mellanox/BlueField devices)")
	cmd.Flags().StringSliceVar(&mstDevices, "mst", nil, "MST devices to query (default: discover via mst status)")
	cmd.Flags().StringVarP(&remoteDPU, "dpu", "b", "", "BlueField DPU hostname for remote collection over ssh")
	cmd.Flags().IntVarP(&hours, "hours", "t", 4, "journalctl lookback window in hours")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: flaptrace_<timestamp>)")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "YAML file overriding analysis thresholds")
	cmd.Flags().StringVar(&caseID, "case-id", "", "Case ID (default: random UUID)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")

	cmd.AddCommand(NewVersionCmd())

	cmd.SetVersionTemplate(fmt.Sprintf("%s (%s/%s)\n", version.Version, runtime.GOOS, runtime.GOARCH))
	cmd.Version = version.Version

	return cmd
}

// splitTargets expands each flag value on whitespace, so both
// `-i "eth0 eth1"` and `-i eth0,eth1` name two targets.
func splitTargets(vals []string) []string {
	var out []string
	for _, v := range vals {
		out = append(out, strings.Fields(v)...)
	}
	return out
}

func newLogger(verbose bool) (logr.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, fmt.Errorf("build logger: %w", err)
	}
	return zapr.NewLogger(zl), nil
}
