package utils

import (
	"os"
	"strings"

	"github.com/kairos-io/stageinit/internal/constants"
	"github.com/twpayne/go-vfs/v4"
)

// GetHostProcCmdline returns the path of the kernel cmdline, overridable for tests.
func GetHostProcCmdline() string {
	proc := os.Getenv(constants.HostCmdlineEnv)
	if proc == "" {
		return constants.ProcCmdline
	}
	return proc
}

// ReadCMDLineArg returns the values of every cmdline stanza starting with arg.
// Stanzas without value (e.g. "stageinit.debug") return a single empty string.
func ReadCMDLineArg(fs vfs.FS, arg string) []string {
	cmdLine, err := fs.ReadFile(GetHostProcCmdline())
	if err != nil {
		return []string{}
	}
	res := []string{}
	for _, f := range strings.Fields(string(cmdLine)) {
		if strings.HasPrefix(f, arg) {
			res = append(res, strings.TrimPrefix(f, arg))
		}
	}
	return res
}

// Exists reports whether path has an entry, without following a final symlink.
func Exists(fs vfs.FS, path string) bool {
	_, err := fs.Lstat(path)
	return err == nil
}

// CreateIfNotExists creates the directory tree for path.
func CreateIfNotExists(fs vfs.FS, path string) error {
	if _, err := fs.Stat(path); os.IsNotExist(err) {
		return vfs.MkdirAll(fs, path, 0o755)
	}
	return nil
}
