package collectors

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MellanoxVendorID is the PCI vendor ID exposed under
// /sys/class/net/<iface>/device/vendor for ConnectX/BlueField NICs.
const MellanoxVendorID = "0x15b3"

var (
	pciNICPattern = regexp.MustCompile(`(?i)mellanox|connectx|bluefield`)
	// Post-acquisition lspci databases brand ConnectX parts as NVIDIA,
	// which also names every GPU; those lines need a network device
	// class to qualify.
	pciNvidiaNIC = regexp.MustCompile(`(?i)(ethernet|infiniband|network).*nvidia|nvidia.*(ethernet|infiniband|network)`)
)

// TargetsOf wraps raw identifier strings as targets of one kind,
// dropping empties. Used for caller-supplied override lists.
func TargetsOf(kind TargetKind, ids []string) []Target {
	var out []Target
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, Target{Kind: kind, ID: id})
	}
	return out
}

// DiscoverPCISlots enumerates NIC PCI slots from lspci output. An
// override list bypasses discovery entirely; any discovery failure
// degrades to the empty set.
func DiscoverPCISlots(ctx context.Context, r *Runner, tree Tree, override []string) []Target {
	if len(override) > 0 {
		return TargetsOf(KindPCISlot, override)
	}
	ex := r.Run(ctx, tree.Path("pci", "lspci_all.txt"), "lspci")
	if ex.Status == StatusNotFound {
		return nil
	}
	return TargetsOf(KindPCISlot, parsePCISlots(string(ex.Output)))
}

// parsePCISlots keeps the leading slot-address token of every lspci
// line matching the NIC vendor/model pattern.
func parsePCISlots(text string) []string {
	var slots []string
	for _, line := range strings.Split(text, "\n") {
		if !pciNICPattern.MatchString(line) && !pciNvidiaNIC.MatchString(line) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		slots = append(slots, fields[0])
	}
	return slots
}

// DiscoverInterfaces lists /sys/class/net entries whose device vendor is
// the target NIC vendor. Loopback is excluded by name; entries without a
// vendor attribute (virtual interfaces) are silently excluded. Never
// fails: any read error yields the empty set.
func DiscoverInterfaces(sysClassNet string, override []string) []Target {
	if len(override) > 0 {
		return TargetsOf(KindInterface, override)
	}
	entries, err := os.ReadDir(sysClassNet)
	if err != nil {
		return nil
	}
	var out []Target
	for _, e := range entries {
		name := e.Name()
		if name == "lo" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(sysClassNet, name, "device", "vendor"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) != MellanoxVendorID {
			continue
		}
		out = append(out, Target{Kind: KindInterface, ID: name})
	}
	return out
}

// DiscoverMSTDevices extracts device paths from mst status output.
func DiscoverMSTDevices(ctx context.Context, r *Runner, tree Tree, override []string) []Target {
	if len(override) > 0 {
		return TargetsOf(KindMSTDevice, override)
	}
	ex := r.Run(ctx, tree.Path("nvidia", "mst_status.txt"), "mst", "status", "-v")
	if ex.Status == StatusNotFound {
		return nil
	}
	return TargetsOf(KindMSTDevice, parseMSTDevices(string(ex.Output)))
}

func parseMSTDevices(text string) []string {
	var devs []string
	for _, line := range strings.Split(text, "\n") {
		for _, f := range strings.Fields(line) {
			if strings.HasPrefix(f, "/dev/mst/") {
				devs = append(devs, f)
			}
		}
	}
	return devs
}

// SlotForInterface resolves the PCI slot backing a network interface via
// the sysfs device symlink. Virtual interfaces have no such link and
// report false.
func SlotForInterface(sysClassNet, iface string) (string, bool) {
	link, err := os.Readlink(filepath.Join(sysClassNet, iface, "device"))
	if err != nil {
		return "", false
	}
	slot := filepath.Base(link)
	if !strings.Contains(slot, ":") {
		return "", false
	}
	return slot, true
}
