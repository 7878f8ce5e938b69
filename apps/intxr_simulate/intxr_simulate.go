package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ssrl-px/interceptor/connector"
	"github.com/ssrl-px/interceptor/models/common"
	"github.com/ssrl-px/interceptor/util/cli"
)

var (
	series    = flag.Int("series", 1, "Run number for the simulated series")
	numFrames = flag.Int("frames", 100, "Number of image frames to send")
	delayMS   = flag.Int("interval", 10, "Delay between frames in milliseconds")
	numSpots  = flag.Int("spots", 40, "Bright spots per synthetic image")
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	appCtx := common.NewContext()
	port := opts.Port
	if port == "" {
		port = appCtx.Config.Port
	}
	if port == "" {
		fmt.Fprintln(os.Stderr, "no port: set -port or the startup config's [connection] section")
		os.Exit(1)
	}

	sim := connector.NewSimulator(appCtx, port, *series, *numFrames)
	sim.Delay = time.Duration(*delayMS) * time.Millisecond
	sim.NumSpots = *numSpots
	sim.Verbose = opts.Verbose

	if err := sim.Run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printHelp() {
	message := `
intxr_simulate plays the part of a beamline splitter for testing: it
binds a PUSH socket on the splitter port and streams a run header, a
series of synthetic bitshuffle-compressed images, and a series-end
marker. Run intxr_connect against it with matching -port.

`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
