package collectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lspciFixture = `0000:00:00.0 Host bridge: Intel Corporation Device 09a2
0000:03:00.0 Ethernet controller: Mellanox Technologies MT2910 Family [ConnectX-7]
0000:03:00.1 Ethernet controller: Mellanox Technologies MT2910 Family [ConnectX-7]
0000:17:00.0 Ethernet controller: NVIDIA Corporation MT2910 Family
0000:41:00.0 3D controller: NVIDIA Corporation GH100
0000:a1:00.0 DMA controller: Mellanox Technologies MT43244 BlueField-3 SoC
`

func TestParsePCISlots(t *testing.T) {
	// NVIDIA-branded NICs count; NVIDIA GPUs do not.
	slots := parsePCISlots(lspciFixture)
	assert.Equal(t, []string{"0000:03:00.0", "0000:03:00.1", "0000:17:00.0", "0000:a1:00.0"}, slots)
}

func TestDiscoverPCISlotsOverrideSkipsDiscovery(t *testing.T) {
	r, _ := newTestRunner(t)
	r.lookPath = func(string) (string, error) {
		t.Fatal("discovery must not run when an override is given")
		return "", nil
	}
	tree := Tree{Root: t.TempDir()}

	got := DiscoverPCISlots(context.Background(), r, tree, []string{"0000:03:00.0", " ", "0000:a1:00.0"})
	assert.Equal(t, []Target{
		{Kind: KindPCISlot, ID: "0000:03:00.0"},
		{Kind: KindPCISlot, ID: "0000:a1:00.0"},
	}, got)
}

func TestDiscoverPCISlotsToolMissing(t *testing.T) {
	r, _ := newTestRunner(t)
	r.lookPath = func(string) (string, error) { return "", errors.New("not found") }
	tree := Tree{Root: t.TempDir()}
	require.NoError(t, tree.EnsureSkeleton())

	assert.Empty(t, DiscoverPCISlots(context.Background(), r, tree, nil))
}

func writeSysfsInterface(t *testing.T, root, name, vendor string) {
	t.Helper()
	dev := filepath.Join(root, name, "device")
	require.NoError(t, os.MkdirAll(dev, 0o755))
	if vendor != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dev, "vendor"), []byte(vendor+"\n"), 0o644))
	}
}

func TestDiscoverInterfaces(t *testing.T) {
	root := t.TempDir()
	writeSysfsInterface(t, root, "eth0", "0x15b3")
	writeSysfsInterface(t, root, "eth1", "0x8086")
	writeSysfsInterface(t, root, "ens2f0", "0x15b3")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lo"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "veth12ab"), 0o755))

	got := DiscoverInterfaces(root, nil)
	assert.Equal(t, []Target{
		{Kind: KindInterface, ID: "ens2f0"},
		{Kind: KindInterface, ID: "eth0"},
	}, got)
}

func TestDiscoverInterfacesMissingRoot(t *testing.T) {
	assert.Empty(t, DiscoverInterfaces(filepath.Join(t.TempDir(), "nope"), nil))
}

func TestDiscoverInterfacesOverride(t *testing.T) {
	got := DiscoverInterfaces(filepath.Join(t.TempDir(), "nope"), []string{"eth9"})
	assert.Equal(t, []Target{{Kind: KindInterface, ID: "eth9"}}, got)
}

func TestParseMSTDevices(t *testing.T) {
	out := `MST modules:
------------
    MST PCI module is not loaded

PCI devices:
------------
DEVICE_TYPE             MST                           PCI       RDMA
ConnectX7(rev:0)        /dev/mst/mt4129_pciconf0      03:00.0   mlx5_0
BlueField3(rev:1)       /dev/mst/mt41692_pciconf0     a1:00.0   mlx5_2
`
	assert.Equal(t,
		[]string{"/dev/mst/mt4129_pciconf0", "/dev/mst/mt41692_pciconf0"},
		parseMSTDevices(out))
}

func TestSlotForInterface(t *testing.T) {
	root := t.TempDir()
	slotDir := filepath.Join(root, "devices", "0000:03:00.0")
	require.NoError(t, os.MkdirAll(slotDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "eth0"), 0o755))
	require.NoError(t, os.Symlink(slotDir, filepath.Join(root, "eth0", "device")))

	slot, ok := SlotForInterface(root, "eth0")
	assert.True(t, ok)
	assert.Equal(t, "0000:03:00.0", slot)

	_, ok = SlotForInterface(root, "veth12ab")
	assert.False(t, ok)
}
