// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2020 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bitmark-inc/exitwithstatus"
	"github.com/bitmark-inc/logger"
	"github.com/urfave/cli"

	"github.com/bitmark-inc/bitmark-dbutils/configuration"
)

type metadata struct {
	config   *configuration.Configuration
	verbose  bool
	e        io.Writer
	w        io.Writer
	signals  chan os.Signal
	shutdown chan struct{}
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "zero" // do not change this value

func main() {
	// ensure exit handler is first
	defer exitwithstatus.Handler()

	app := newApp()

	err := app.Run(os.Args)
	if nil != err {
		fmt.Fprintf(app.ErrWriter, "terminated with error: %s\n", err)
		exitwithstatus.Exit(exitCode(err))
	}
}

func newApp() *cli.App {

	app := cli.NewApp()
	app.Name = "bitmark-dbutil"
	app.Usage = "maintenance of a bitmark node database"
	app.Version = version
	app.HideVersion = true

	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "verbose, v",
			Usage: " log progress to the console",
		},
		cli.StringFlag{
			Name:  "config, c",
			Value: "",
			Usage: " Lua configuration `FILE`",
		},
		cli.Uint64Flag{
			Name:  "max-size",
			Usage: " refuse to grow an environment beyond `BYTES`",
		},
		cli.IntFlag{
			Name:  "batch-size",
			Usage: " records per committed batch `COUNT`",
		},
		cli.IntFlag{
			Name:  "batch-bytes",
			Usage: " bytes per committed batch `BYTES`",
		},
	}

	modeFlag := cli.StringFlag{
		Name:  "mode, m",
		Value: "fail-fast",
		Usage: " stop at the first finding or report all [fail-fast|full] `MODE`",
	}
	rootFlag := cli.StringSliceFlag{
		Name:  "root, r",
		Usage: " state root `HASH`, may be repeated (default: roots of blocks at or above min-height)",
	}
	minHeightFlag := cli.Uint64Flag{
		Name:  "min-height, H",
		Usage: " retain state of blocks at or above `HEIGHT`",
	}
	tableFlag := cli.StringSliceFlag{
		Name:  "table, t",
		Usage: " table `NAME` or prefix, may be repeated (default: all tables)",
	}

	app.Commands = []cli.Command{
		{
			Name:      "verify",
			Usage:     "check the trie below state roots and optionally the block tables",
			ArgsUsage: "ENVIRONMENT",
			Flags: []cli.Flag{
				modeFlag,
				rootFlag,
				minHeightFlag,
				cli.BoolFlag{
					Name:  "trie-only",
					Usage: " skip the checks of blocks, deploy lists and deploys",
				},
				cli.BoolFlag{
					Name:  "sparsified, s",
					Usage: " state roots of older blocks may be absent",
				},
				cli.StringSliceFlag{
					Name:  "root-block",
					Usage: " block `HASH` allowed an absent parent, may be repeated",
				},
			},
			Action: runVerify,
		},
		{
			Name:      "check",
			Usage:     "decode every record of the selected tables",
			ArgsUsage: "ENVIRONMENT",
			Flags: []cli.Flag{
				modeFlag,
				tableFlag,
				cli.Uint64Flag{
					Name:  "start-at",
					Usage: " skip the first `COUNT` records of each table",
				},
			},
			Action: runCheck,
		},
		{
			Name:      "sparsify",
			Usage:     "delete trie nodes not reachable from retained state roots",
			ArgsUsage: "ENVIRONMENT",
			Flags: []cli.Flag{
				rootFlag,
				minHeightFlag,
			},
			Action: runSparsify,
		},
		{
			Name:      "unsparsify",
			Usage:     "restore trie nodes from an authoritative environment",
			ArgsUsage: "ENVIRONMENT SOURCE",
			Flags: []cli.Flag{
				rootFlag,
				minHeightFlag,
			},
			Action: runUnsparsify,
		},
		{
			Name:      "compact",
			Usage:     "copy the reachable trie into another environment",
			ArgsUsage: "SOURCE DESTINATION",
			Flags: []cli.Flag{
				rootFlag,
				minHeightFlag,
				cli.StringFlag{
					Name:  "destination, d",
					Value: "new",
					Usage: " destination handling [new|append|overwrite] `MODE`",
				},
				cli.BoolFlag{
					Name:  "with-blocks",
					Usage: " also copy blocks, deploy lists and deploys",
				},
			},
			Action: runCompact,
		},
		{
			Name:      "extract",
			Usage:     "copy tables into a new environment",
			ArgsUsage: "SOURCE DESTINATION",
			Flags: []cli.Flag{
				tableFlag,
				cli.BoolFlag{
					Name:  "resume",
					Usage: " continue an interrupted extract",
				},
			},
			Action: runExtract,
		},
		{
			Name:      "import",
			Usage:     "copy tables from another environment",
			ArgsUsage: "ENVIRONMENT SOURCE",
			Flags: []cli.Flag{
				tableFlag,
				cli.BoolFlag{
					Name:  "resume",
					Usage: " continue an interrupted import",
				},
			},
			Action: runImport,
		},
		{
			Name:      "extract-slice",
			Usage:     "copy one block and its state into a new environment",
			ArgsUsage: "SOURCE DESTINATION",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "block, b",
					Usage: "+block `HASH`",
				},
				cli.StringFlag{
					Name:  "state-root, s",
					Usage: "+state root `HASH`",
				},
			},
			Action: runExtractSlice,
		},
		{
			Name:      "remove-block",
			Usage:     "delete a block record and its deploy list",
			ArgsUsage: "ENVIRONMENT BLOCK-HASH",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "purge-deploys, p",
					Usage: " also delete deploys no other block lists",
				},
				cli.BoolFlag{
					Name:  "force, f",
					Usage: " remove even if a child block refers to it",
				},
				cli.BoolFlag{
					Name:  "reclaimable, r",
					Usage: " count the trie nodes a later sparsify would delete",
				},
				cli.BoolFlag{
					Name:  "yes, y",
					Usage: " do not ask for confirmation",
				},
			},
			Action: runRemoveBlock,
		},
		{
			Name:      "latest-block",
			Usage:     "show the block of greatest height",
			ArgsUsage: "ENVIRONMENT",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "summary, s",
					Usage: " include table entry counts",
				},
				cli.StringFlag{
					Name:  "output, o",
					Usage: " write the JSON to `FILE` instead of standard output",
				},
				cli.BoolFlag{
					Name:  "overwrite, w",
					Usage: " replace an existing output file",
				},
			},
			Action: runLatestBlock,
		},
		{
			Name:  "version",
			Usage: "display program version",
			Action: func(c *cli.Context) error {
				fmt.Fprintf(c.App.Writer, "%s\n", version)
				return nil
			},
		},
	}

	app.Before = func(c *cli.Context) error {

		e := c.App.ErrWriter
		w := c.App.Writer
		verbose := c.GlobalBool("verbose")

		command := c.Args().Get(0)
		if "version" == command || "help" == command || "" == command {
			return nil
		}

		file := c.GlobalString("config")
		if verbose && "" != file {
			fmt.Fprintf(e, "reading config file: %s\n", file)
		}

		config, err := configuration.Load(file)
		if nil != err {
			return err
		}

		// flags override the file
		if c.GlobalIsSet("max-size") {
			config.MaxSize = c.GlobalUint64("max-size")
		}
		if c.GlobalIsSet("batch-size") {
			config.BatchSize = c.GlobalInt("batch-size")
		}
		if c.GlobalIsSet("batch-bytes") {
			config.BatchBytes = c.GlobalInt("batch-bytes")
		}
		if verbose {
			config.Logging.Console = true
			config.Logging.Levels[logger.DefaultTag] = "info"
		}

		if err := logger.Initialise(config.Logging); nil != err {
			return err
		}

		m := &metadata{
			config:   config,
			verbose:  verbose,
			e:        e,
			w:        w,
			signals:  make(chan os.Signal, 1),
			shutdown: make(chan struct{}),
		}

		// long operations stop at the next batch boundary
		signal.Notify(m.signals, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			sig, ok := <-m.signals
			if !ok {
				return
			}
			logger.New("main").Infof("received signal: %v", sig)
			fmt.Fprintf(e, "\nreceived signal: %v\nstopping after the current batch…\n", sig)
			close(m.shutdown)
		}()

		c.App.Metadata["config"] = m
		return nil
	}

	app.After = func(c *cli.Context) error {
		if m, ok := c.App.Metadata["config"].(*metadata); ok {
			signal.Stop(m.signals)
			close(m.signals)
			logger.Finalise()
		}
		return nil
	}

	return app
}
