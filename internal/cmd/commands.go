package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kairos-io/stageinit/internal/utils"
	"github.com/kairos-io/stageinit/internal/version"
	"github.com/kairos-io/stageinit/pkg/config"
	"github.com/kairos-io/stageinit/pkg/dag"
	"github.com/kairos-io/stageinit/pkg/op"
	"github.com/kairos-io/stageinit/pkg/ramdisk"
	"github.com/kairos-io/stageinit/pkg/root"
	"github.com/kairos-io/stageinit/pkg/state"
	"github.com/spectrocloud-labs/herd"
	"github.com/twpayne/go-vfs/v4"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

// Registrar fills a graph with the steps of one boot stage.
type Registrar func(*state.State, *herd.Graph) error

var Flags = []cli.Flag{
	&cli.BoolFlag{
		Name:    "dry-run",
		Usage:   "print the steps that would run and exit",
		EnvVars: []string{"STAGEINIT_DRY_RUN"},
	},
}

var Commands = []*cli.Command{
	{
		Name:        "first-stage",
		Usage:       "run the first stage",
		Description: "Runs what the kernel runs when executing us as /init.",
		Action:      Action(dag.RegisterFirstStage),
	},
	{
		Name:    "second-stage",
		Usage:   "run the second stage",
		Aliases: []string{"selinux_setup"},
		Description: `
Reached when the vendor init re-executes /system/bin/init selinux_setup.
Cleans up after the first stage and hands over to the real init.
`,
		Action: Action(dag.RegisterSecondStage),
	},
	{
		Name:  "redirect-second-stage",
		Usage: "redirect the next exec of /init to us",
		Description: `
Writes a patched copy of /init to /data/init and bind mounts it over /init.
The exit code reflects whether the redirection is in place.
`,
		Action: Action(dag.RegisterRedirect),
	},
	{
		Name:  "config",
		Usage: "print the boot configuration",
		Action: func(c *cli.Context) error {
			out, err := yaml.Marshal(config.Load(vfs.OSFS))
			if err != nil {
				return err
			}
			fmt.Fprint(c.App.Writer, string(out))
			return nil
		},
	},
	{
		Name:  "version",
		Usage: "version",
		Action: func(c *cli.Context) error {
			out, err := yaml.Marshal(version.Get())
			if err != nil {
				return err
			}
			fmt.Fprint(c.App.Writer, string(out))
			return nil
		},
	},
}

// NewState wires the real system into a State.
func NewState(fs vfs.FS, argv []string) *state.State {
	h := root.NewHandoff()
	return &state.State{
		FS:      fs,
		Mounter: op.SystemMounter{},
		Config:  config.Load(fs),
		Argv:    argv,
		Ramdisk: ramdisk.Restorer{FS: fs},
		Root:    h,
		Exec:    h.Exec,
	}
}

// Action builds and runs the graph for a boot stage.
func Action(register Registrar) cli.ActionFunc {
	return func(c *cli.Context) error {
		// Logger first, so bootconfig parsing already reaches kmsg
		utils.SetLogger(config.DebugEnabled(vfs.OSFS))
		s := NewState(vfs.OSFS, os.Args)

		v := version.Get()
		utils.Log.Info().Str("commit", v.GitCommit).Str("compiled with", v.GoVersion).Str("version", v.Version).Msg("stageinit")
		utils.Log.Debug().Interface("config", s.Config).Strs("argv", s.Argv).Msg("Starting")

		g := herd.DAG(herd.EnableInit)
		if err := register(s, g); err != nil {
			return err
		}

		utils.Log.Info().Str("stage", s.Stage.String()).Msg("Registered boot stage")
		utils.Log.Info().Msg(s.WriteDAG(g))

		// Once we print the dag we can exit already
		if c.Bool("dry-run") {
			return nil
		}

		err := g.Run(context.Background())
		utils.Log.Info().Msg(s.WriteDAG(g))
		return err
	}
}
