package state

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	cnst "github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/kairos-io/stageinit/pkg/patch"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// DetectLayout probes for a storage mountpoint in the ramdisk. Two-stage devices
// have none yet, legacy rootfs devices ship /sdcard in the ramdisk itself.
func (s *State) DetectLayout() schema.Layout {
	for _, p := range []string{cnst.Sdcard, cnst.RamdiskSdcard} {
		if internalUtils.Exists(s.FS, p) {
			internalUtils.Log.Debug().Str("what", p).Msg("Storage mountpoint found")
			return schema.SingleStage
		}
	}
	return schema.TwoStage
}

// StorageSymlinkDagStep points the storage self link at the system init, so once
// the OS mounts storage it resolves without us.
func (s *State) StorageSymlinkDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpStorageSymlink, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.StorageSymlink()
	}))...)
}

func (s *State) StorageSymlink() error {
	var errs error

	dir := cnst.StorageSelf
	if s.Config.ForceNormalBoot {
		dir = cnst.RamdiskStorageSelf
	}
	link := filepath.Join(dir, cnst.StoragePrimaryEntry)

	if err := vfs.MkdirAll(s.FS, dir, 0o755); err != nil {
		internalUtils.Log.Debug().Err(err).Str("what", dir).Msg("Creating storage dir")
		errs = multierror.Append(errs, err)
	}
	if err := s.FS.Symlink(cnst.SystemRealInit, link); err != nil {
		internalUtils.Log.Debug().Err(err).Str("what", link).Msg("Creating storage symlink")
		errs = multierror.Append(errs, err)
	} else {
		internalUtils.Log.Debug().Str("from", link).Str("to", cnst.SystemRealInit).Msg("Symlink")
	}

	if s.Config.ForceNormalBoot {
		f, err := s.FS.OpenFile(cnst.RamdiskSdcard, os.O_RDONLY|os.O_CREATE, 0)
		if err != nil {
			internalUtils.Log.Debug().Err(err).Str("what", cnst.RamdiskSdcard).Msg("Creating storage placeholder")
		} else {
			_ = f.Close()
		}
	}
	return errs
}

// MoveInitDagStep moves ourselves into the slot storage will later occupy.
func (s *State) MoveInitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpMoveInit, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.MoveInit()
	}))...)
}

func (s *State) MoveInit() error {
	if err := s.FS.Rename(cnst.Init, cnst.Sdcard); err != nil {
		internalUtils.Log.Err(err).Str("from", cnst.Init).Str("to", cnst.Sdcard).Msg("Moving init")
		return err
	}
	return nil
}

// BindInitDagStep anchors the moved executable with a bind mount.
func (s *State) BindInitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBindInit, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.BindInit()
	}))...)
}

// BindInit keeps our executable in rootfs for Samsung RKP. Rootfs before 3.12 can
// not bind a path onto itself, in which case the copy on /data is bound instead.
// Exactly one of the two attempts is expected to stick.
func (s *State) BindInit() error {
	err := op.BindMount(cnst.Sdcard, cnst.Sdcard).Run(s.Mounter)
	if err == nil {
		internalUtils.Log.Debug().Str("what", cnst.Sdcard).Str("where", cnst.Sdcard).Msg("Bind mount")
		return nil
	}

	internalUtils.Log.Debug().Err(err).Msg("Self bind failed, falling back to the data copy")
	if !internalUtils.Exists(s.FS, cnst.MagiskInit) {
		internalUtils.Log.Warn().Str("what", cnst.MagiskInit).Msg("Data copy is missing, bind mount will most likely fail")
	}
	if err := op.BindMount(cnst.MagiskInit, cnst.Sdcard).Run(s.Mounter); err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.MagiskInit).Str("where", cnst.Sdcard).Msg("Bind mount failed, boot continues without redirection")
		return fmt.Errorf("bind %s: %w", cnst.Sdcard, err)
	}
	internalUtils.Log.Debug().Str("what", cnst.MagiskInit).Str("where", cnst.Sdcard).Msg("Bind mount")
	return nil
}

// PatchInitDagStep redirects the restored init to our data copy, for devices
// without a separate first stage.
func (s *State) PatchInitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPatchInit, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.PatchInit()
	}))...)
}

func (s *State) PatchInit() (err error) {
	mf, err := patch.OpenRW(s.FS, cnst.Init)
	if err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.Init).Msg("Failed to open init for hexpatch")
		return err
	}
	defer func() {
		if cerr := mf.Close(); err == nil {
			err = cerr
		}
	}()

	offsets, err := mf.Patch([]byte(cnst.RealInit), []byte(cnst.MagiskInit))
	logPatches(offsets)
	return err
}

func logPatches(offsets []int) {
	for _, off := range offsets {
		internalUtils.Log.Debug().Msgf("Patch @ %#010X [%s] -> [%s]", off, cnst.RealInit, cnst.MagiskInit)
	}
}
