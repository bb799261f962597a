package op

import (
	"github.com/containerd/containerd/mount"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/moby/sys/mountinfo"
	"golang.org/x/sys/unix"
)

// Mounter is the kernel facing side of the boot stages: the mount table and
// filesystem type probing.
type Mounter interface {
	Mount(m mount.Mount, target string) error
	Unmount(target string, flags int) error
	// FsMagic returns the statfs magic number of the filesystem holding path.
	FsMagic(path string) (uint32, error)
}

// SystemMounter talks to the running kernel.
type SystemMounter struct{}

func (SystemMounter) Mount(m mount.Mount, target string) error {
	if mounted, err := mountinfo.Mounted(target); err == nil && mounted {
		internalUtils.Log.Debug().Str("where", target).Msg("Target is already a mountpoint, stacking on top")
	}
	return mount.All([]mount.Mount{m}, target)
}

// Unmount does not report targets that are not mounted.
func (SystemMounter) Unmount(target string, flags int) error {
	return mount.Unmount(target, flags)
}

func (SystemMounter) FsMagic(path string) (uint32, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	// f_type is 32 bit wide on 32 bit arm, the magic numbers all fit in 32 bits
	return uint32(st.Type), nil
}
