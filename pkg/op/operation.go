package op

import (
	"github.com/containerd/containerd/mount"
	"github.com/deniswernert/go-fstab"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
)

// MountOperation is a mount we intend to establish. Every established mount must
// have a matching UnmountOperation before the boot leaves the second stage.
type MountOperation struct {
	FstabEntry      fstab.Mount
	MountOption     mount.Mount
	Target          string
	PrepareCallback func() error
}

func (m MountOperation) Run(mounter Mounter) error {
	// Add context to sublogger
	l := internalUtils.Log.With().Str("what", m.MountOption.Source).Str("where", m.Target).Str("type", m.MountOption.Type).Strs("options", m.MountOption.Options).Logger()

	if m.PrepareCallback != nil {
		if err := m.PrepareCallback(); err != nil {
			l.Warn().Err(err).Msg("executing mount callback")
			return err
		}
	}

	if err := mounter.Mount(m.MountOption, m.Target); err != nil {
		l.Warn().Err(err).Msg("mount failed")
		return err
	}
	l.Debug().Str("fstab", m.FstabEntry.String()).Msg("mount done")
	return nil
}

// UnmountOperation is the teardown obligation of a mount.
type UnmountOperation struct {
	Target string
	Flags  int
}

func (u UnmountOperation) Run(mounter Mounter) error {
	l := internalUtils.Log.With().Str("where", u.Target).Int("flags", u.Flags).Logger()
	if err := mounter.Unmount(u.Target, u.Flags); err != nil {
		l.Debug().Err(err).Msg("unmount failed")
		return err
	}
	l.Debug().Msg("unmount done")
	return nil
}
