package schema

// BootStage is picked once by the entry point and never recomputed.
type BootStage int

const (
	FirstStage BootStage = iota
	SecondStage
)

func (b BootStage) String() string {
	switch b {
	case FirstStage:
		return "first-stage"
	case SecondStage:
		return "second-stage"
	default:
		return "unknown"
	}
}

// Layout is what the first stage found on disk.
type Layout int

const (
	// SingleStage is a legacy rootfs device, storage already exists in the ramdisk.
	SingleStage Layout = iota
	// TwoStage devices boot a first stage ramdisk and switch to the system partition.
	TwoStage
)

func (l Layout) String() string {
	if l == TwoStage {
		return "two-stage"
	}
	return "single-stage"
}

// RootfsKind drives which root patch strategy the second stage dispatches to.
type RootfsKind int

const (
	SystemAsRoot RootfsKind = iota
	// RamdiskTmpfs means / is still ramfs/tmpfs, some vendors use 2SI on a legacy rootfs.
	RamdiskTmpfs
)

func (r RootfsKind) String() string {
	if r == RamdiskTmpfs {
		return "ramdisk-tmpfs"
	}
	return "system-as-root"
}

// Config is read-only for the boot stages.
type Config struct {
	// ForceNormalBoot selects the first stage ramdisk rooted storage layout.
	ForceNormalBoot bool `yaml:"force_normal_boot"`
	Debug           bool `yaml:"debug"`
}
