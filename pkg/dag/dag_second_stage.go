package dag

import (
	cnst "github.com/kairos-io/stageinit/internal/constants"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/kairos-io/stageinit/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterSecondStage registers the dag for the second stage, reached when the vendor
// init execs /system/bin/init and gets us instead.
// First it undoes what the first stage left around, then hands over to the real init
// with argv[0] rewritten, picking the root strategy from the filesystem type of /.
func RegisterSecondStage(s *state.State, g *herd.Graph) error {
	s.Stage = schema.SecondStage

	err := s.LogIfErrorAndReturn(s.TeardownStageOneDagStep(g), "teardown stage one")
	s.LogIfError(s.RemoveStageOneDagStep(g, herd.WithDeps(cnst.OpTeardownStageOne), herd.WeakDeps), "remove stage one")
	s.LogIfError(s.RestoreArgvDagStep(g, herd.WithDeps(cnst.OpRemoveStageOne), herd.WeakDeps), "restore argv")
	s.LogIfError(s.ClassifyRootDagStep(g, herd.WithDeps(cnst.OpRestoreArgv), herd.WeakDeps), "classify root")
	// A failed probe leaves the system-as-root default in place, which is still usable
	s.LogIfError(s.PatchRootDagStep(g, herd.WithDeps(cnst.OpClassifyRoot), herd.WeakDeps), "patch root")
	return err
}
