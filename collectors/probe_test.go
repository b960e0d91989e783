package collectors

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mlxlinkHelpFixture = `mlxlink - exercises Mellanox devices links

Options:
  -d, --device <device>       MST device name
      --show_counters         Show counters
      --show_fec              Show FEC capabilities
  -h, --help                  Show help
`

func TestParseCapabilities(t *testing.T) {
	cs := ParseCapabilities("mlxlink", mlxlinkHelpFixture, MlxlinkFlags)

	assert.True(t, cs.Present)
	assert.True(t, cs.Supports(MlxlinkShowCounters))
	assert.True(t, cs.Supports(MlxlinkShowFEC))
	assert.False(t, cs.Supports(MlxlinkShowEye))
	assert.False(t, cs.Supports(MlxlinkAmberCollect))
}

func TestCapabilitySetZeroValue(t *testing.T) {
	var cs CapabilitySet
	assert.False(t, cs.Supports(MlxlinkShowCounters))
}

func TestProbeAbsentTool(t *testing.T) {
	r, _ := newTestRunner(t)
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	tree := Tree{Root: t.TempDir()}
	require.NoError(t, tree.EnsureSkeleton())

	cs := Probe(context.Background(), r, tree, "mlxlink", MlxlinkFlags)

	assert.False(t, cs.Present)
	for _, f := range MlxlinkFlags {
		assert.False(t, cs.Supports(f), f)
	}

	content := readFile(t, filepath.Join(tree.Root, "nvidia", "mlxlink_help.txt"))
	assert.Equal(t, "Command not found: mlxlink\n", content)
}
