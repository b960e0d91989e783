package collectors

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Status is the terminal state of one external command attempt.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusNotFound
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Execution records one external command attempt. Callers switch on
// Status rather than inspecting the captured text.
type Execution struct {
	Command   string
	StartedAt time.Time
	Output    []byte
	Status    Status
	ExitCode  int
}

// NotFoundMarker is the single line written to the destination artifact
// when the command's executable cannot be resolved.
const NotFoundMarker = "Command not found"

// Runner executes external commands, appends their merged output to
// artifact files and keeps the run's audit ledger. A missing binary or a
// non-zero exit never fails the run; both are recorded and collection
// moves on.
type Runner struct {
	ledger   *os.File
	log      logr.Logger
	lookPath func(string) (string, error)
	now      func() time.Time
}

// NewRunner opens the audit ledger and writes its header block.
func NewRunner(ledgerPath string, log logr.Logger) (*Runner, error) {
	f, err := os.OpenFile(ledgerPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit ledger: %w", err)
	}
	r := &Runner{
		ledger:   f,
		log:      log,
		lookPath: exec.LookPath,
		now:      time.Now,
	}
	header := fmt.Sprintf("Commands Executed by flaptrace\nStarted: %s\n%s\n\n",
		r.now().Format(time.RFC3339), strings.Repeat("=", 60))
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) Close() error {
	if r.ledger == nil {
		return nil
	}
	return r.ledger.Close()
}

// Run executes name with args, stdout and stderr merged, and appends the
// delimited output to the artifact file. When the executable cannot be
// resolved no process is launched; the artifact gets the not-found marker
// and the attempt is still ledgered so the audit trail stays complete.
func (r *Runner) Run(ctx context.Context, artifact string, name string, args ...string) Execution {
	cmdline := name
	if len(args) > 0 {
		cmdline += " " + strings.Join(args, " ")
	}

	if _, err := r.lookPath(name); err != nil {
		return r.notFound(artifact, cmdline, name)
	}

	ex := Execution{Command: cmdline, StartedAt: r.now()}
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	ex.Output = out.Bytes()
	if err != nil {
		ex.Status = StatusFailed
		ex.ExitCode = exitCode(err)
		if out.Len() == 0 {
			ex.Output = []byte(err.Error() + "\n")
		}
	}

	r.appendArtifact(artifact, ex)
	r.ledgerEntry(ex)
	return ex
}

// RunShell executes a compound pipeline through sh -c. The full pipeline
// text is what lands in the ledger and the artifact delimiter, for
// reproducibility; only the final stage's exit code is captured.
func (r *Runner) RunShell(ctx context.Context, artifact string, pipeline string) Execution {
	if _, err := r.lookPath("sh"); err != nil {
		return r.notFound(artifact, pipeline, "sh")
	}

	ex := Execution{Command: pipeline, StartedAt: r.now()}
	cmd := exec.CommandContext(ctx, "sh", "-c", pipeline)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	ex.Output = out.Bytes()
	if err != nil {
		ex.Status = StatusFailed
		ex.ExitCode = exitCode(err)
		if out.Len() == 0 {
			ex.Output = []byte(err.Error() + "\n")
		}
	}

	r.appendArtifact(artifact, ex)
	r.ledgerEntry(ex)
	return ex
}

// WriteMarker appends a bare marker line to an artifact, used for
// capability-gated calls that were never attempted and for targets whose
// backing sysfs path does not exist.
func (r *Runner) WriteMarker(artifact, text string) {
	f, err := os.OpenFile(artifact, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.log.V(1).Info("marker write failed", "artifact", artifact, "error", err.Error())
		return
	}
	defer f.Close()
	_, _ = f.WriteString(text + "\n")
}

func (r *Runner) notFound(artifact, cmdline, binary string) Execution {
	ex := Execution{
		Command:   cmdline,
		StartedAt: r.now(),
		Status:    StatusNotFound,
	}
	r.WriteMarker(artifact, NotFoundMarker+": "+binary)
	if r.ledger != nil {
		fmt.Fprintf(r.ledger, "[%s] %s\n%s\n", ex.StartedAt.Format(time.RFC3339), cmdline, NotFoundMarker)
	}
	r.log.V(1).Info("binary not found", "command", binary)
	return ex
}

func (r *Runner) appendArtifact(artifact string, ex Execution) {
	f, err := os.OpenFile(artifact, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		r.log.V(1).Info("artifact append failed", "artifact", artifact, "error", err.Error())
		return
	}
	defer f.Close()

	fmt.Fprintf(f, "===== %s =====\nTimestamp: %s\n", ex.Command, ex.StartedAt.Format(time.RFC3339))
	_, _ = f.Write(ex.Output)
	if len(ex.Output) > 0 && ex.Output[len(ex.Output)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString("\n")
}

func (r *Runner) ledgerEntry(ex Execution) {
	if r.ledger == nil {
		return
	}
	fmt.Fprintf(r.ledger, "[%s] %s\n", ex.StartedAt.Format(time.RFC3339), ex.Command)
	if ex.Status == StatusFailed {
		fmt.Fprintf(r.ledger, "Exit code: %d\n", ex.ExitCode)
	}
}

func exitCode(err error) int {
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return -1
}
