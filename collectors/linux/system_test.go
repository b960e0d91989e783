package linux

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flaptrace/collectors"
)

func newRunContext(t *testing.T) collectors.RunContext {
	t.Helper()
	// An empty PATH keeps every external command on the not-found path,
	// so these tests exercise only the collector's own filesystem logic.
	t.Setenv("PATH", t.TempDir())

	tree := collectors.Tree{Root: t.TempDir()}
	require.NoError(t, tree.EnsureSkeleton())
	runner, err := collectors.NewRunner(tree.LedgerPath(), logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { runner.Close() })

	return collectors.RunContext{
		Tree:         tree,
		Runner:       runner,
		Log:          logr.Discard(),
		JournalHours: 4,
		SysClassNet:  t.TempDir(),
		HwmonRoot:    t.TempDir(),
		ProcRoot:     t.TempDir(),
		SampleCount:  1,
	}
}

func readArtifact(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func writeHwmonSensor(t *testing.T, root, hwmon, name string, readings map[string]string) {
	t.Helper()
	dir := filepath.Join(root, hwmon)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "name"), []byte(name+"\n"), 0o644))
	for file, value := range readings {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(value+"\n"), 0o644))
	}
}

func TestSystemCollectorTemperatures(t *testing.T) {
	rc := newRunContext(t)
	writeHwmonSensor(t, rc.HwmonRoot, "hwmon0", "mlx5", map[string]string{
		"temp1_input": "67000",
		"temp2_input": "71000",
		"temp1_crit":  "105000",
	})
	writeHwmonSensor(t, rc.HwmonRoot, "hwmon1", "coretemp", map[string]string{
		"temp1_input": "42000",
	})

	require.NoError(t, NewSystemCollector().Collect(context.Background(), rc))

	content := readArtifact(t, rc.Tree.Path("system", "temperatures.txt"))
	assert.Contains(t, content, "hwmon0 (mlx5) temp1_input: 67000\n")
	assert.Contains(t, content, "hwmon0 (mlx5) temp2_input: 71000\n")
	assert.Contains(t, content, "hwmon1 (coretemp) temp1_input: 42000\n")
	assert.NotContains(t, content, "temp1_crit")
}

func TestSystemCollectorNoHwmon(t *testing.T) {
	rc := newRunContext(t)
	rc.HwmonRoot = filepath.Join(t.TempDir(), "nope")

	require.NoError(t, NewSystemCollector().Collect(context.Background(), rc))

	content := readArtifact(t, rc.Tree.Path("system", "temperatures.txt"))
	assert.Equal(t, "hwmon not available\n", content)
}

func TestSystemCollectorNoSensors(t *testing.T) {
	rc := newRunContext(t)

	require.NoError(t, NewSystemCollector().Collect(context.Background(), rc))

	content := readArtifact(t, rc.Tree.Path("system", "temperatures.txt"))
	assert.Equal(t, "no temperature sensors found\n", content)
}

func TestSystemCollectorToolsAbsent(t *testing.T) {
	rc := newRunContext(t)

	require.NoError(t, NewSystemCollector().Collect(context.Background(), rc))

	content := readArtifact(t, rc.Tree.Path("system", "system_info.txt"))
	assert.Contains(t, content, "Command not found: uname")
	assert.Contains(t, content, "Command not found: lscpu")
}
