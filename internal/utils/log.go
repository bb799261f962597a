package utils

import (
	"io"
	"os"

	"github.com/kairos-io/stageinit/internal/constants"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Log is the process wide logger. It writes to stderr until SetLogger wires /dev/kmsg.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetLogger points the logger at the kernel log, as nothing else is listening this early in boot.
func SetLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug || os.Getenv(constants.DebugEnv) != "" {
		level = zerolog.DebugLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	kmsg, err := openKmsg()
	if err == nil {
		// dmesg already timestamps every record
		writers = append(writers, zerolog.ConsoleWriter{
			Out:          kmsg,
			NoColor:      true,
			PartsExclude: []string{zerolog.TimestampFieldName},
		})
	}

	Log = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Str("component", "stageinit").Logger()
	if err != nil {
		Log.Debug().Err(err).Msg("kmsg not available, logging to stderr only")
	}
}

// openKmsg opens the kernel log. On the first stage /dev may not be populated yet,
// so fall back to a temporary device node.
func openKmsg() (*os.File, error) {
	f, err := os.OpenFile(constants.Kmsg, os.O_WRONLY|unix.O_CLOEXEC, 0)
	if err == nil {
		return f, nil
	}

	const tmpNode = "/kmsg"
	if err := unix.Mknod(tmpNode, unix.S_IFCHR|0o600, int(unix.Mkdev(1, 11))); err != nil {
		return nil, err
	}
	defer os.Remove(tmpNode)
	return os.OpenFile(tmpNode, os.O_WRONLY|unix.O_CLOEXEC, 0)
}
