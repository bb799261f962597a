package dag

import (
	cnst "github.com/kairos-io/stageinit/internal/constants"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/kairos-io/stageinit/pkg/state"
	"github.com/spectrocloud-labs/herd"
)

// RegisterRedirect registers the dag that makes the next exec of /init land on us.
// /init is never modified, a patched copy is written to /data/init and bound over it.
// The bind still runs if patching failed, so whatever ended up in /data/init is used.
// The bind is fatal: its failure is what the caller gets back from running the graph.
func RegisterRedirect(s *state.State, g *herd.Graph) error {
	s.Stage = schema.FirstStage

	err := s.LogIfErrorAndReturn(s.PatchSecondStageDagStep(g), "patch second stage")
	s.LogIfError(s.CloneAttrDagStep(g, herd.WithDeps(cnst.OpPatchSecondStage), herd.WeakDeps), "clone attributes")
	s.LogIfError(s.BindSecondStageDagStep(g, herd.WithDeps(cnst.OpCloneAttr), herd.WeakDeps, herd.FatalOp), "bind second stage")
	return err
}
