package state

import (
	"context"
	"fmt"

	cnst "github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/kairos-io/stageinit/pkg/patch"
	"github.com/spectrocloud-labs/herd"
)

// PatchSecondStageDagStep writes a copy of /init that executes us instead of the system init.
func (s *State) PatchSecondStageDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpPatchSecondStage, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.PatchSecondStage()
	}))...)
}

// PatchSecondStage never touches /init itself, the kernel is about to execute it.
func (s *State) PatchSecondStage() (err error) {
	mf, err := patch.OpenPrivate(s.FS, cnst.Init)
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
	if err != nil {
		return err
	}
	logPatches(offsets)

	// Attributes are cloned from the source right after
	if err := s.FS.WriteFile(cnst.RedirectedInit, mf.Bytes(), 0); err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.RedirectedInit).Msg("Failed to create patched init")
		return err
	}
	return nil
}

// CloneAttrDagStep makes the patched copy executable exactly like the original.
func (s *State) CloneAttrDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpCloneAttr, append(opts, herd.WithCallback(func(_ context.Context) error {
		err := internalUtils.CloneAttr(s.FS, cnst.Init, cnst.RedirectedInit)
		return s.LogIfErrorAndReturn(err, "cloning init attributes")
	}))...)
}

// BindSecondStageDagStep mounts the patched copy over /init.
func (s *State) BindSecondStageDagStep(g *herd.Graph, opts ...herd.OpOption) error {
	return g.Add(cnst.OpBindSecondStage, append(opts, herd.WithCallback(func(_ context.Context) error {
		return s.BindSecondStage()
	}))...)
}

func (s *State) BindSecondStage() error {
	if err := op.BindMount(cnst.RedirectedInit, cnst.Init).Run(s.Mounter); err != nil {
		internalUtils.Log.Err(err).Str("what", cnst.RedirectedInit).Str("where", cnst.Init).Msg("Bind mount failed")
		return fmt.Errorf("bind %s onto %s: %w", cnst.RedirectedInit, cnst.Init, err)
	}
	internalUtils.Log.Debug().Str("what", cnst.RedirectedInit).Str("where", cnst.Init).Msg("Bind mount")
	return nil
}
