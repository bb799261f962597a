package main

import (
	"fmt"
	"os"

	"github.com/kairos-io/stageinit/internal/cmd"
	"github.com/kairos-io/stageinit/internal/version"
	"github.com/kairos-io/stageinit/pkg/dag"
	"github.com/urfave/cli/v2"
)

// Take over Android init, one boot stage at a time.
func main() {
	app := cli.NewApp()
	app.Name = "stageinit"
	app.Usage = "boot time init takeover"
	app.Version = version.GetVersion()
	app.Authors = []*cli.Author{{Name: "Kairos authors"}}
	app.Copyright = "kairos authors"
	app.Flags = cmd.Flags
	app.Commands = cmd.Commands
	// The kernel runs us as /init with no command at all
	app.Action = cmd.Action(dag.RegisterFirstStage)

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
