package state

import (
	"fmt"

	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/kairos-io/stageinit/pkg/root"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
)

// Ramdisk rebuilds the ramdisk layout the vendor init expects.
type Ramdisk interface {
	RestoreInit() error
}

// RootPatcher holds the two terminal strategies of the second stage. Exactly one
// of them runs, picked by the root filesystem type.
type RootPatcher interface {
	PatchRWRoot(argv []string) error
	PatchRORoot(argv []string) error
}

// State is everything a boot stage needs. It is scoped to a single boot attempt.
type State struct {
	FS      vfs.FS
	Mounter op.Mounter
	Config  schema.Config
	Argv    []string // our own argv, handed over to the init we exec next
	Ramdisk Ramdisk
	Root    RootPatcher
	Exec    root.ExecFunc // nil skips the final exec

	Stage    schema.BootStage
	Layout   schema.Layout
	RootKind schema.RootfsKind
}

// argv returns the argv to exec path with.
func (s *State) argv(path string) []string {
	if len(s.Argv) == 0 {
		return []string{path}
	}
	return s.Argv
}

// WriteDAG writes the dag.
func (s *State) WriteDAG(g *herd.Graph) (out string) {
	for i, layer := range g.Analyze() {
		out += fmt.Sprintf("%d.\n", i+1)
		for _, op := range layer {
			if op.Error != nil {
				out += fmt.Sprintf(" <%s> (error: %s) (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Error.Error(), op.Background, op.WeakDeps, op.Executed)
			} else {
				out += fmt.Sprintf(" <%s> (background: %t) (weak: %t) (run: %t)\n", op.Name, op.Background, op.WeakDeps, op.Executed)
			}
		}
	}
	return
}

// LogIfError will log if there is an error with the given context as message
// Context can be empty.
func (s *State) LogIfError(e error, msgContext string) {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
}

// LogIfErrorAndReturn will log if there is an error with the given context as message
// Context can be empty
// Will also return the error.
func (s *State) LogIfErrorAndReturn(e error, msgContext string) error {
	if e != nil {
		internalUtils.Log.Err(e).Msg(msgContext)
	}
	return e
}
