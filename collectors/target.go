package collectors

import (
	"os"
	"path/filepath"
	"strings"
)

type TargetKind int

const (
	KindPCISlot TargetKind = iota
	KindInterface
	KindMSTDevice
	KindRemoteHost
)

func (k TargetKind) String() string {
	switch k {
	case KindPCISlot:
		return "pci_slot"
	case KindInterface:
		return "interface"
	case KindMSTDevice:
		return "mst_device"
	case KindRemoteHost:
		return "remote_host"
	default:
		return "unknown"
	}
}

// Target is one unit of collection: a PCI slot address, a network
// interface name, an MST device path, or a remote DPU host.
type Target struct {
	Kind TargetKind
	ID   string
}

func (t Target) Slug() string { return Slug(t.ID) }

// Slug maps an identifier to a filesystem-safe path component by
// replacing ':', '.' and '/' with '_'. The substitution is naive and
// theoretically lossy, but the identifiers we slug (PCI DBDF addresses,
// interface names, /dev/mst paths) differ in more than their separators,
// so two distinct targets do not collide in practice.
func Slug(s string) string {
	r := strings.NewReplacer(":", "_", ".", "_", "/", "_")
	return r.Replace(s)
}

// Subsystem directory names under the run root. The skeleton is created
// eagerly at startup so no collector has to create its own parents.
var subsystems = []string{"system", "logs", "pci", "nvidia", "dpu", "gpu", "interfaces"}

// Tree computes artifact paths under the run's output directory. All
// path methods are pure functions of their inputs; nothing here touches
// the filesystem except EnsureSkeleton.
type Tree struct {
	Root string
}

func (t Tree) EnsureSkeleton() error {
	for _, sub := range subsystems {
		if err := os.MkdirAll(filepath.Join(t.Root, sub), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the artifact file for a label within a subsystem, e.g.
// Path("logs", "dmesg.txt") -> <root>/logs/dmesg.txt.
func (t Tree) Path(subsystem, label string) string {
	return filepath.Join(t.Root, subsystem, label)
}

// SlotPath returns the per-slot artifact for a PCI target.
func (t Tree) SlotPath(slot Target, label string) string {
	return filepath.Join(t.Root, "pci", slot.Slug()+"_"+label)
}

// DevicePath returns the per-MST-device artifact under nvidia/.
func (t Tree) DevicePath(dev Target, label string) string {
	return filepath.Join(t.Root, "nvidia", dev.Slug()+"_"+label)
}

// InterfaceDir returns the per-interface directory.
func (t Tree) InterfaceDir(iface Target) string {
	return filepath.Join(t.Root, "interfaces", iface.Slug())
}

// InterfaceFile returns interfaces/<iface>/<iface>_<suffix>, the naming
// every per-interface producer uses.
func (t Tree) InterfaceFile(iface Target, suffix string) string {
	return filepath.Join(t.InterfaceDir(iface), iface.Slug()+"_"+suffix)
}

// LedgerPath is the root-level command audit ledger.
func (t Tree) LedgerPath() string {
	return filepath.Join(t.Root, "commands_run.txt")
}
