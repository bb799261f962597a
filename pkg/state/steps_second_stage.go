package state

import (
	"context"
	"os"

	"github.com/hashicorp/go-multierror"
	cnst "github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/spectrocloud-labs/herd"
)

// TeardownStageOneDagStep drops the bind mounts the first stage left behind.
func (s *State) TeardownStageOneDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpTeardownStageOne, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.TeardownStageOne()
	}))...)
}

// TeardownStageOne detaches /init and, just in case, /system/bin/init. Either may
// not be mounted at all.
func (s *State) TeardownStageOne() error {
	var errs error
	for _, target := range []string{cnst.Init, cnst.RealInit} {
		if err := op.Detach(target).Run(s.Mounter); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

// RemoveStageOneDagStep deletes the patched init copy.
func (s *State) RemoveStageOneDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpRemoveStageOne, append(opts, herd.WithCallback(func(_ context.Context) error {
		err := s.FS.Remove(cnst.RedirectedInit)
		if err != nil && !os.IsNotExist(err) {
			internalUtils.Log.Debug().Err(err).Str("what", cnst.RedirectedInit).Msg("Removing patched init")
			return err
		}
		return nil
	}))...)
}

// RestoreArgvDagStep makes the init we exec next report itself as the system init,
// so its dmesg lines are not attributed to us.
func (s *State) RestoreArgvDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpRestoreArgv, append(opts, herd.WithCallback(func(_ context.Context) error {
		s.RestoreArgv()
		return nil
	}))...)
}

func (s *State) RestoreArgv() {
	if len(s.Argv) == 0 {
		s.Argv = []string{cnst.RealInit}
		return
	}
	s.Argv[0] = cnst.RealInit
}

// ClassifyRootDagStep probes the filesystem type of /.
func (s *State) ClassifyRootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpClassifyRoot, append(opts, herd.WithCallback(func(_ context.Context) error {
		magic, err := s.Mounter.FsMagic("/")
		if err != nil {
			internalUtils.Log.Warn().Err(err).Msg("statfs on / failed, assuming system-as-root")
			s.RootKind = schema.SystemAsRoot
			return err
		}
		s.RootKind = RootfsKindFromMagic(magic)
		internalUtils.Log.Info().Str("kind", s.RootKind.String()).Msgf("Root filesystem magic %#x", magic)
		return nil
	}))...)
}

// RootfsKindFromMagic maps a statfs magic to the root layout. Some devices (meizu)
// use 2SI but still boot from a legacy ramfs/tmpfs rootfs.
func RootfsKindFromMagic(magic uint32) schema.RootfsKind {
	switch magic {
	case cnst.RamfsMagic, cnst.TmpfsMagic:
		return schema.RamdiskTmpfs
	default:
		return schema.SystemAsRoot
	}
}

// PatchRootDagStep dispatches to the root patch strategy matching the root filesystem.
func (s *State) PatchRootDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPatchRoot, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.PatchRoot()
	}))...)
}

func (s *State) PatchRoot() error {
	if s.RootKind != schema.RamdiskTmpfs {
		return s.LogIfErrorAndReturn(s.Root.PatchRORoot(s.Argv), "patching read-only root")
	}

	// Still on rootfs, make sure whoever executes /init next reaches the second stage init
	var errs error
	if err := s.FS.Remove(cnst.Init); err != nil && !os.IsNotExist(err) {
		internalUtils.Log.Debug().Err(err).Str("what", cnst.Init).Msg("Removing init")
	}
	if err := s.FS.Symlink(cnst.RealInit, cnst.Init); err != nil {
		internalUtils.Log.Err(err).Str("from", cnst.Init).Str("to", cnst.RealInit).Msg("Linking init")
		errs = multierror.Append(errs, err)
	}
	if err := s.Root.PatchRWRoot(s.Argv); err != nil {
		internalUtils.Log.Err(err).Msg("patching read-write root")
		errs = multierror.Append(errs, err)
	}
	return errs
}
