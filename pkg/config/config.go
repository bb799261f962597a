package config

import (
	"bufio"
	"bytes"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kairos-io/stageinit/internal/constants"
	internalUtils "github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/pkg/schema"
	"github.com/twpayne/go-vfs/v4"
)

// Load reads the boot configuration from the kernel cmdline and bootconfig.
// Values from bootconfig take precedence, newer devices only populate that one.
func Load(fs vfs.FS) schema.Config {
	var c schema.Config

	if v := internalUtils.ReadCMDLineArg(fs, constants.ForceNormalBootKey+"="); len(v) > 0 {
		c.ForceNormalBoot = v[len(v)-1] == "1"
	}
	c.Debug = DebugEnabled(fs)

	bootconfig := ReadBootconfig(fs)
	if v, ok := bootconfig[constants.ForceNormalBootKey]; ok {
		c.ForceNormalBoot = v == "1"
	}

	return c
}

// DebugEnabled only looks at the cmdline and environment, so the logger can be set
// up before the rest of the config is parsed.
func DebugEnabled(fs vfs.FS) bool {
	return len(internalUtils.ReadCMDLineArg(fs, constants.DebugKey)) > 0 || os.Getenv(constants.DebugEnv) != ""
}

// ReadBootconfig parses /proc/bootconfig. Lines that are not a plain key = "value"
// pair (arrays, comments) are skipped.
func ReadBootconfig(fs vfs.FS) map[string]string {
	res := map[string]string{}
	content, err := fs.ReadFile(constants.ProcBootconfig)
	if err != nil {
		return res
	}

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		kv, err := godotenv.Unmarshal(line)
		if err != nil {
			internalUtils.Log.Debug().Err(err).Str("line", line).Msg("Skipping bootconfig line")
			continue
		}
		for k, v := range kv {
			res[k] = v
		}
	}
	return res
}
