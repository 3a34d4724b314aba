package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/pyropy/territory/core/client"
	"github.com/pyropy/territory/core/nation"
	"github.com/pyropy/territory/rpc/territory"
	"github.com/urfave/cli/v2"
)

var chunkFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "world",
		Required: true,
		Usage:    "World name",
	},
	&cli.Int64Flag{
		Name:     "x",
		Required: true,
		Usage:    "Chunk x coordinate",
	},
	&cli.Int64Flag{
		Name:     "z",
		Required: true,
		Usage:    "Chunk z coordinate",
	},
}

var nationFlag = &cli.StringFlag{
	Name:     "nation",
	Required: true,
	Usage:    "Nation id",
}

func dial(ctx *cli.Context) (*client.Client, error) {
	c, err := client.NewClient(ctx.String("rpc-url"))
	if err != nil {
		return nil, err
	}

	c.Name = ctx.App.Name
	return c, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var ErrCoordinateRange = errors.New("coordinate out of int32 range")

func chunkArgs(ctx *cli.Context) (string, int32, int32, error) {
	x, err := coordinate("x", ctx.Int64("x"))
	if err != nil {
		return "", 0, 0, err
	}

	z, err := coordinate("z", ctx.Int64("z"))
	if err != nil {
		return "", 0, 0, err
	}

	return ctx.String("world"), x, z, nil
}

func coordinate(name string, v int64) (int32, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: --%s %d", ErrCoordinateRange, name, v)
	}

	return int32(v), nil
}

var claimCmd = &cli.Command{
	Name:  "claim",
	Usage: "Assign a chunk to a nation (not written to the nation records)",
	Flags: append([]cli.Flag{nationFlag}, chunkFlags...),
	Action: func(ctx *cli.Context) error {
		world, x, z, err := chunkArgs(ctx)
		if err != nil {
			return err
		}

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		version, err := c.Claim(ctx.String("nation"), world, x, z)
		if err != nil {
			return err
		}

		log.Infow("claim", "nation", ctx.String("nation"), "world", world, "x", x, "z", z, "version", version)
		return nil
	},
}

var unclaimCmd = &cli.Command{
	Name:  "unclaim",
	Usage: "Release a chunk held by a nation",
	Flags: append([]cli.Flag{nationFlag}, chunkFlags...),
	Action: func(ctx *cli.Context) error {
		world, x, z, err := chunkArgs(ctx)
		if err != nil {
			return err
		}

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		version, err := c.Unclaim(ctx.String("nation"), world, x, z)
		if err != nil {
			return err
		}

		log.Infow("unclaim", "nation", ctx.String("nation"), "world", world, "x", x, "z", z, "version", version)
		return nil
	},
}

var ownerCmd = &cli.Command{
	Name:  "owner",
	Usage: "Show which nation owns a chunk",
	Flags: chunkFlags,
	Action: func(ctx *cli.Context) error {
		world, x, z, err := chunkArgs(ctx)
		if err != nil {
			return err
		}

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		nationID, claimed, err := c.NationAt(world, x, z)
		if err != nil {
			return err
		}

		if !claimed {
			fmt.Println("unclaimed")
			return nil
		}

		fmt.Println(nationID)
		return nil
	},
}

var claimsCmd = &cli.Command{
	Name:  "claims",
	Usage: "List the chunks of a nation",
	Flags: []cli.Flag{nationFlag},
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		chunks, err := c.ClaimsOf(ctx.String("nation"))
		if err != nil {
			return err
		}

		for _, p := range chunks {
			fmt.Println(p.Key())
		}
		return nil
	},
}

var worldCmd = &cli.Command{
	Name:  "world",
	Usage: "List the claims of one world grouped by nation",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "world", Required: true, Usage: "World name"},
	},
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		claims, err := c.WorldClaims(ctx.String("world"))
		if err != nil {
			return err
		}

		return printJSON(claims)
	},
}

var cellsCmd = &cli.Command{
	Name:  "cells",
	Usage: "Export every owned chunk",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "world", Usage: "Only export this world"},
	},
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		snap, err := c.Snapshot(ctx.String("world"))
		if err != nil {
			return err
		}

		return printJSON(snap)
	},
}

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "Show the current territory version",
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		v, err := c.Version()
		if err != nil {
			return err
		}

		return printJSON(v)
	},
}

var deltaCmd = &cli.Command{
	Name:  "delta",
	Usage: "Show changes since a version",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "since", Value: 0, Usage: "Last version the caller has"},
	},
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		delta, err := c.DeltaSince(ctx.Int64("since"))
		if err != nil {
			return err
		}

		return printJSON(delta)
	},
}

var rebuildCmd = &cli.Command{
	Name:        "rebuild",
	Usage:       "Rebuild ownership from the nation records",
	Description: "Claims made with the claim command are not in the nation records and are dropped by a rebuild.",
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		reply, err := c.Rebuild()
		if err != nil {
			return err
		}

		if reply.Dropped > 0 {
			log.Warnw("rebuild", "status", "claims missing from nation records were dropped", "dropped", reply.Dropped)
		}

		log.Infow("rebuild", "claimed", reply.Claimed, "epoch", reply.Epoch, "version", reply.Version)
		return nil
	},
}

var pollCmd = &cli.Command{
	Name:  "poll",
	Usage: "Fetch the next sync update for a client id",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "client", Usage: "Sync client id, a new one is generated when empty"},
	},
	Action: func(ctx *cli.Context) error {
		id := uuid.New()
		if s := ctx.String("client"); s != "" {
			parsed, err := uuid.Parse(s)
			if err != nil {
				return err
			}
			id = parsed
		}

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		reply, err := c.Poll(id)
		if err != nil {
			return err
		}

		log.Infow("poll", "client", id, "kind", reply.Kind, "version", reply.Version)
		return printJSON(reply)
	},
}

var historyCmd = &cli.Command{
	Name:  "history",
	Usage: "Show journaled changes of a chunk or a nation",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "world", Usage: "World name"},
		&cli.Int64Flag{Name: "x", Usage: "Chunk x coordinate"},
		&cli.Int64Flag{Name: "z", Usage: "Chunk z coordinate"},
		&cli.StringFlag{Name: "nation", Usage: "Nation id"},
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum entries"},
	},
	Action: func(ctx *cli.Context) error {
		world, x, z, err := chunkArgs(ctx)
		if err != nil {
			return err
		}

		c, err := dial(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		entries, err := c.History(territory.HistoryArgs{
			World:    world,
			X:        x,
			Z:        z,
			NationID: ctx.String("nation"),
			Limit:    ctx.Int("limit"),
		})
		if err != nil {
			return err
		}

		return printJSON(entries)
	},
}

var nationsCmd = &cli.Command{
	Name:  "nations",
	Usage: "Manage the nation record store directly (daemon must be stopped)",
	Subcommands: []*cli.Command{
		{
			Name:  "import",
			Usage: "Import nation records from a YAML fixture",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "file",
					Required: true,
					Usage:    "Path to the YAML file",
				},
			},
			Action: func(ctx *cli.Context) error {
				nations, err := nation.LoadYAML(ctx.String("file"))
				if err != nil {
					return err
				}

				store, err := nation.NewLevelDBStore(ctx.String("store"))
				if err != nil {
					return err
				}
				defer store.Close()

				n, err := nation.Import(context.Background(), store, nations)
				if err != nil {
					return err
				}

				log.Infow("nations", "status", "imported", "count", n)
				return nil
			},
		},
		{
			Name:  "list",
			Usage: "List nation records",
			Action: func(ctx *cli.Context) error {
				store, err := nation.NewLevelDBStore(ctx.String("store"))
				if err != nil {
					return err
				}
				defer store.Close()

				nations, err := store.All(context.Background())
				if err != nil {
					return err
				}

				return printJSON(nations)
			},
		},
	},
}
