package state

import (
	"context"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	cnst "github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/otiai10/copy"
	"github.com/spectrocloud-labs/herd"
)

// Shared steps for all the workflows

// PrepareDataDagStep sets up /data as a tmpfs holding a copy of ourselves and of
// the ramdisk backups, so they outlive the ramdisk rewrites that follow.
func (s *State) PrepareDataDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPrepareData, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.PrepareData()
	}))...)
}

func (s *State) PrepareData() error {
	var errs error
	internalUtils.Log.Debug().Msg("Setup data tmp")

	if err := internalUtils.CreateIfNotExists(s.FS, cnst.DataDir); err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.DataDir).Msg("Creating dir")
		errs = multierror.Append(errs, err)
	}
	if err := op.Tmpfs("tmpfs", cnst.DataDir, "mode=755").Run(s.Mounter); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := s.copyPath(cnst.Init, cnst.MagiskInit); err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.Init).Str("where", cnst.MagiskInit).Msg("Copying init")
		errs = multierror.Append(errs, err)
	} else if err := internalUtils.CloneAttr(s.FS, cnst.Init, cnst.MagiskInit); err != nil {
		internalUtils.Log.Warn().Err(err).Str("where", cnst.MagiskInit).Msg("Cloning attributes")
		errs = multierror.Append(errs, err)
	}

	for _, dir := range []string{cnst.BackupDir, cnst.OverlayDir} {
		if !internalUtils.Exists(s.FS, dir) {
			continue
		}
		dst := filepath.Join(cnst.DataDir, filepath.Base(dir))
		if err := s.copyPath(dir, dst); err != nil {
			internalUtils.Log.Err(err).Str("what", dir).Str("where", dst).Msg("Copying dir")
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func (s *State) copyPath(src, dst string) error {
	rawSrc, err := s.FS.RawPath(src)
	if err != nil {
		return err
	}
	rawDst, err := s.FS.RawPath(dst)
	if err != nil {
		return err
	}
	return copy.Copy(rawSrc, rawDst)
}

// RestoreRamdiskDagStep puts the vendor init back in place.
func (s *State) RestoreRamdiskDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpRestoreRamdisk, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.LogIfErrorAndReturn(s.Ramdisk.RestoreInit(), "restoring ramdisk init")
	}))...)
}

// ExecInitDagStep hands over to the vendor init. On success it never returns.
func (s *State) ExecInitDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpExecInit, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.ExecInit()
	}))...)
}

func (s *State) ExecInit() error {
	if s.Exec == nil {
		internalUtils.Log.Info().Msg("No exec configured, not handing over to init")
		return nil
	}
	argv := s.argv(cnst.Init)
	internalUtils.Log.Info().Str("what", cnst.Init).Strs("argv", argv).Msg("Handing over to init")
	return s.LogIfErrorAndReturn(s.Exec(cnst.Init, argv, os.Environ()), "exec init")
}
