package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/xattr"
	"github.com/twpayne/go-vfs/v4"
	"golang.org/x/sys/unix"
)

const selinuxXattr = "security.selinux"

// CloneAttr copies mode, ownership and the SELinux label of src onto dst so the
// kernel treats dst exactly like src when executing it.
func CloneAttr(fsys vfs.FS, src, dst string) error {
	var errs error

	fi, err := fsys.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	mode := fi.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky)
	if err := fsys.Chmod(dst, mode); err != nil {
		errs = multierror.Append(errs, err)
	}

	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		if err := fsys.Chown(dst, int(st.Uid), int(st.Gid)); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	rawSrc, err := fsys.RawPath(src)
	if err != nil {
		return multierror.Append(errs, err)
	}
	rawDst, err := fsys.RawPath(dst)
	if err != nil {
		return multierror.Append(errs, err)
	}

	label, err := xattr.Get(rawSrc, selinuxXattr)
	switch {
	case err == nil:
		if err := xattr.Set(rawDst, selinuxXattr, label); err != nil {
			errs = multierror.Append(errs, err)
		}
	case noLabel(err):
		Log.Debug().Str("what", src).Msg("No SELinux label to clone")
	default:
		errs = multierror.Append(errs, err)
	}

	return errs
}

func noLabel(err error) bool {
	var xerr *xattr.Error
	if !errors.As(err, &xerr) {
		return false
	}
	return xerr.Err == xattr.ENOATTR || xerr.Err == unix.ENOTSUP
}
