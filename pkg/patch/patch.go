package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/twpayne/go-vfs/v4"
)

var (
	ErrLengthMismatch = errors.New("replacement must have the same length as the pattern")
	ErrEmptyPattern   = errors.New("empty pattern")
)

// Patch replaces every non-overlapping occurrence of from with to, in place.
// It returns the offsets of the replaced occurrences in ascending order.
// The length of buf never changes, so from and to must have the same length.
func Patch(buf []byte, from, to []byte) ([]int, error) {
	if len(from) == 0 {
		return nil, ErrEmptyPattern
	}
	if len(from) != len(to) {
		return nil, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, len(from), len(to))
	}

	var offsets []int
	for pos := 0; pos+len(from) <= len(buf); {
		i := bytes.Index(buf[pos:], from)
		if i < 0 {
			break
		}
		off := pos + i
		copy(buf[off:off+len(to)], to)
		offsets = append(offsets, off)
		pos = off + len(from)
	}
	return offsets, nil
}

// MappedFile is a file mapped into memory.
type MappedFile struct {
	f        *os.File
	m        mmap.MMap
	writable bool
}

// OpenRW maps path shared and writable: patches land directly in the file.
func OpenRW(fs vfs.FS, path string) (*MappedFile, error) {
	return open(fs, path, os.O_RDWR, mmap.RDWR, true)
}

// OpenPrivate maps path copy-on-write: patches stay in memory and the file is untouched.
func OpenPrivate(fs vfs.FS, path string) (*MappedFile, error) {
	return open(fs, path, os.O_RDONLY, mmap.COPY, false)
}

func open(fs vfs.FS, path string, flag, prot int, writable bool) (*MappedFile, error) {
	f, err := fs.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	mf := &MappedFile{f: f, writable: writable}
	// mmap refuses zero length mappings
	if fi.Size() == 0 {
		return mf, nil
	}
	mf.m, err = mmap.Map(f, prot, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	return mf, nil
}

// Bytes returns the mapped contents. It is only valid until Close.
func (mf *MappedFile) Bytes() []byte {
	return mf.m
}

func (mf *MappedFile) Patch(from, to []byte) ([]int, error) {
	return Patch(mf.m, from, to)
}

func (mf *MappedFile) Close() error {
	var err error
	if mf.m != nil {
		if mf.writable {
			err = mf.m.Flush()
		}
		if uerr := mf.m.Unmap(); err == nil {
			err = uerr
		}
		mf.m = nil
	}
	if cerr := mf.f.Close(); err == nil {
		err = cerr
	}
	return err
}
