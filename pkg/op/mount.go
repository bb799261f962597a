package op

import (
	"strings"

	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	"golang.org/x/sys/unix"
)

// BindMount makes src reachable at target.
func BindMount(src, target string) MountOperation {
	m := mount.Mount{
		Type:    "bind",
		Source:  src,
		Options: []string{"bind"},
	}
	tmpFstab := MountToFstab(m)
	tmpFstab.File = target
	return MountOperation{
		MountOption: m,
		FstabEntry:  *tmpFstab,
		Target:      target,
	}
}

// Tmpfs mounts a fresh tmpfs named source on target.
func Tmpfs(source, target string, options ...string) MountOperation {
	m := mount.Mount{
		Type:    "tmpfs",
		Source:  source,
		Options: options,
	}
	tmpFstab := MountToFstab(m)
	tmpFstab.File = target
	return MountOperation{
		MountOption: m,
		FstabEntry:  *tmpFstab,
		Target:      target,
	}
}

// Detach is a lazy unmount: it succeeds right away and the kernel drops the
// mount once nothing references it anymore.
func Detach(target string) UnmountOperation {
	return UnmountOperation{Target: target, Flags: unix.MNT_DETACH}
}

// MountToFstab renders a mount as an fstab entry, used to log mount intents.
func MountToFstab(m mount.Mount) *fstab.Mount {
	opts := map[string]string{}
	for _, o := range m.Options {
		if strings.Contains(o, "=") {
			dat := strings.SplitN(o, "=", 2)
			opts[dat[0]] = dat[1]
		} else {
			opts[o] = ""
		}
	}
	return &fstab.Mount{
		Spec:    m.Source,
		VfsType: m.Type,
		MntOps:  opts,
		Freq:    0,
		PassNo:  0,
	}
}
