package main

import (
	"os"

	"github.com/pyropy/territory/lib/logger"
	"github.com/urfave/cli/v2"
)

var log, _ = logger.New("territoryctl")

func main() {
	app := &cli.App{
		Name:  "territoryctl",
		Usage: "inspect and repair territory ownership",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Value:   "localhost:1234",
				Usage:   "Address of the territoryd rpc server",
				EnvVars: []string{"TERRITORY_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   "data",
				Usage:   "Directory holding the nation record store (offline commands)",
				EnvVars: []string{"NATIONS_PATH"},
			},
		},
		Commands: []*cli.Command{
			claimCmd,
			unclaimCmd,
			ownerCmd,
			claimsCmd,
			worldCmd,
			cellsCmd,
			versionCmd,
			deltaCmd,
			rebuildCmd,
			pollCmd,
			historyCmd,
			nationsCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln("territoryctl", "ERROR", err)
	}
}
