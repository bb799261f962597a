package dag

import (
	cnst "github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/kairos-io/stageinit/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterFirstStage registers the dag for the first stage, when the kernel runs us as /init.
// The layout is probed here, before anything in the ramdisk changes, and picks one of two chains:
//
// Two stage devices mount storage later on, so we park ourselves at /sdcard behind a bind mount
// and point /storage/self/primary at the system init. Once the vendor first stage init execs
// /system/bin/init it lands on us again.
//
// Single stage devices have a single init, so the restored /init is patched to exec our /data copy.
//
// Every step weakly depends on the previous one: a failure is logged and the next one runs anyway,
// as the device has to boot no matter what.
func RegisterFirstStage(s *state.State, g *herd.Graph) error {
	s.Stage = schema.FirstStage
	s.Layout = s.DetectLayout()
	internalUtils.Log.Info().Str("layout", s.Layout.String()).Msg("First stage")

	err := s.LogIfErrorAndReturn(s.PrepareDataDagStep(g), "prepare data")

	if s.Layout == schema.TwoStage {
		s.LogIfError(s.StorageSymlinkDagStep(g, herd.WithDeps(cnst.OpPrepareData), herd.WeakDeps), "storage symlink")
		s.LogIfError(s.MoveInitDagStep(g, herd.WithDeps(cnst.OpStorageSymlink), herd.WeakDeps), "move init")
		s.LogIfError(s.BindInitDagStep(g, herd.WithDeps(cnst.OpMoveInit), herd.WeakDeps), "bind init")
		s.LogIfError(s.RestoreRamdiskDagStep(g, herd.WithDeps(cnst.OpBindInit), herd.WeakDeps), "restore ramdisk")
		s.LogIfError(s.ExecInitDagStep(g, herd.WithDeps(cnst.OpRestoreRamdisk), herd.WeakDeps), "exec init")
		return err
	}

	s.LogIfError(s.RestoreRamdiskDagStep(g, herd.WithDeps(cnst.OpPrepareData), herd.WeakDeps), "restore ramdisk")
	s.LogIfError(s.PatchInitDagStep(g, herd.WithDeps(cnst.OpRestoreRamdisk), herd.WeakDeps), "patch init")
	s.LogIfError(s.ExecInitDagStep(g, herd.WithDeps(cnst.OpPatchInit), herd.WeakDeps), "exec init")
	return err
}
