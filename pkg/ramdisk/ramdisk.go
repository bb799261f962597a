package ramdisk

import (
	"fmt"
	"io"
	"os"

	"github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/twpayne/go-vfs/v4"
	"github.com/ulikunitz/xz"
)

// Restorer puts the vendor init back at /init once we no longer need the slot.
type Restorer struct {
	FS vfs.FS
}

// RestoreInit replaces /init with the original init saved in the ramdisk backup.
// Without a backup the ramdisk was built from scratch and the real init only
// exists on the system partition, so /init becomes a symlink to it.
func (r Restorer) RestoreInit() error {
	l := internalUtils.Log.With().Str("where", constants.Init).Logger()

	if err := r.FS.Remove(constants.Init); err != nil && !os.IsNotExist(err) {
		l.Debug().Err(err).Msg("Removing current init")
	}

	switch {
	case internalUtils.Exists(r.FS, constants.BackupInitXz):
		l.Debug().Str("what", constants.BackupInitXz).Msg("Restoring compressed init")
		if err := r.decompress(constants.BackupInitXz, constants.Init); err != nil {
			return fmt.Errorf("decompressing %s: %w", constants.BackupInitXz, err)
		}
		return r.FS.Remove(constants.BackupInitXz)
	case internalUtils.Exists(r.FS, constants.BackupInit):
		l.Debug().Str("what", constants.BackupInit).Msg("Restoring init")
		return r.FS.Rename(constants.BackupInit, constants.Init)
	default:
		l.Debug().Str("what", constants.RealInit).Msg("No backup init, linking to the system init")
		return r.FS.Symlink(constants.RealInit, constants.Init)
	}
}

func (r Restorer) decompress(src, dst string) (err error) {
	in, err := r.FS.OpenFile(src, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := xz.NewReader(in)
	if err != nil {
		return err
	}

	out, err := r.FS.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o750)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, zr)
	return err
}
