package root

import (
	"fmt"
	"os"

	"github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"golang.org/x/sys/unix"
)

// ExecFunc replaces the running process, see unix.Exec.
type ExecFunc func(argv0 string, argv []string, envv []string) error

// Handoff ends the takeover by executing the real init. It does not patch the
// root filesystem itself; richer strategies implement the same two methods.
type Handoff struct {
	Exec ExecFunc
}

func NewHandoff() Handoff {
	return Handoff{Exec: unix.Exec}
}

// PatchRWRoot runs on a ramdisk root, where /init has been relinked to the system init.
func (h Handoff) PatchRWRoot(argv []string) error {
	return h.exec(constants.Init, argv)
}

// PatchRORoot runs on system-as-root, where / can not be written.
func (h Handoff) PatchRORoot(argv []string) error {
	return h.exec(constants.RealInit, argv)
}

func (h Handoff) exec(path string, argv []string) error {
	if len(argv) == 0 {
		argv = []string{path}
	}
	internalUtils.Log.Info().Str("what", path).Strs("argv", argv).Msg("Handing over to init")
	if err := h.Exec(path, argv, os.Environ()); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}
