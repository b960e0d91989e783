package collectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewRunner(filepath.Join(dir, "commands_run.txt"), logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestNewRunnerWritesLedgerHeader(t *testing.T) {
	r, dir := newTestRunner(t)
	require.NoError(t, r.Close())

	ledger := readFile(t, filepath.Join(dir, "commands_run.txt"))
	assert.Contains(t, ledger, "Commands Executed by flaptrace\n")
	assert.Contains(t, ledger, "Started: ")
	assert.Contains(t, ledger, "============")
}

func TestRunSuccessAppendsDelimitedOutput(t *testing.T) {
	r, dir := newTestRunner(t)
	r.now = func() time.Time { return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC) }
	artifact := filepath.Join(dir, "out.txt")

	ex := r.Run(context.Background(), artifact, "echo", "hello")
	assert.Equal(t, StatusOK, ex.Status)
	assert.Equal(t, "echo hello", ex.Command)
	assert.Equal(t, "hello\n", string(ex.Output))

	content := readFile(t, artifact)
	assert.Contains(t, content, "===== echo hello =====\n")
	assert.Contains(t, content, "Timestamp: 2026-08-30T12:00:00Z\n")
	assert.Contains(t, content, "hello\n")

	ledger := readFile(t, filepath.Join(dir, "commands_run.txt"))
	assert.Contains(t, ledger, "[2026-08-30T12:00:00Z] echo hello\n")
	assert.NotContains(t, ledger, "Exit code:")
}

func TestRunNotFoundWritesMarkerAndLedger(t *testing.T) {
	r, dir := newTestRunner(t)
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	artifact := filepath.Join(dir, "out.txt")

	ex := r.Run(context.Background(), artifact, "mlxlink", "-d", "/dev/mst/mt4127_pciconf0")
	assert.Equal(t, StatusNotFound, ex.Status)

	content := readFile(t, artifact)
	assert.Equal(t, "Command not found: mlxlink\n", content)

	ledger := readFile(t, filepath.Join(dir, "commands_run.txt"))
	assert.Contains(t, ledger, "mlxlink -d /dev/mst/mt4127_pciconf0\n")
	assert.Contains(t, ledger, "Command not found\n")
}

func TestRunFailedExitRecordsExitCode(t *testing.T) {
	r, dir := newTestRunner(t)
	artifact := filepath.Join(dir, "out.txt")

	ex := r.RunShell(context.Background(), artifact, "echo partial; exit 3")
	assert.Equal(t, StatusFailed, ex.Status)
	assert.Equal(t, 3, ex.ExitCode)
	assert.Contains(t, string(ex.Output), "partial")

	// Failed commands still land in the artifact with whatever they
	// printed before exiting.
	content := readFile(t, artifact)
	assert.Contains(t, content, "===== echo partial; exit 3 =====\n")
	assert.Contains(t, content, "partial\n")

	ledger := readFile(t, filepath.Join(dir, "commands_run.txt"))
	assert.Contains(t, ledger, "Exit code: 3\n")
}

func TestRunShellLogsFullPipeline(t *testing.T) {
	r, dir := newTestRunner(t)
	artifact := filepath.Join(dir, "out.txt")

	pipeline := "echo one two | wc -w"
	ex := r.RunShell(context.Background(), artifact, pipeline)
	assert.Equal(t, StatusOK, ex.Status)

	ledger := readFile(t, filepath.Join(dir, "commands_run.txt"))
	assert.Contains(t, ledger, pipeline+"\n")
}

func TestWriteMarkerAppends(t *testing.T) {
	r, dir := newTestRunner(t)
	artifact := filepath.Join(dir, "out.txt")

	r.WriteMarker(artifact, "hwmon not available")
	r.WriteMarker(artifact, "no temperature sensors found")

	content := readFile(t, artifact)
	assert.Equal(t, "hwmon not available\nno temperature sensors found\n", content)
}
