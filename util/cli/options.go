package cli

import (
	"flag"
)

// Options are the command-line options shared by the connector
// apps. Connection settings given here override the startup config;
// the -beamline preset resolves host and port from the config's
// [beamlines] section.
type Options struct {
	Host       string
	Port       string
	Beamline   string
	UIHost     string
	UIPort     string
	HType      string
	Send       bool
	Record     string
	Drain      bool
	Broker     bool
	Headerless bool
	Verbose    bool
	Test       bool
	NumWorkers int
	BufSize    int
	PrintHelp  bool
}

var opts = Options{}

var EnvMessage = `This requires the following environment vars:

INTERCEPTOR_CONFIG_DIR - Path to the directory containing the
    startup.<env>.cfg and processing.<env>.cfg files.

INTERCEPTOR_ENV - Name of the configuration to load. For example:
    test - Loads startup.test.cfg and processing.test.cfg
    prod - Loads startup.prod.cfg and processing.prod.cfg
`

func Init() {
	flag.StringVar(&opts.Host, "host", "", "Splitter host (overrides startup config)")
	flag.StringVar(&opts.Port, "port", "", "Splitter port (overrides startup config)")
	flag.StringVar(&opts.Beamline, "beamline", "", "Beamline preset name from startup config, e.g. BL12-1")
	flag.StringVar(&opts.UIHost, "uihost", "", "Downstream UI host (overrides startup config)")
	flag.StringVar(&opts.UIPort, "uiport", "", "Downstream UI port (overrides startup config)")
	flag.StringVar(&opts.HType, "htype", "", "Run-header htype expected on the stream (overrides processing config)")
	flag.BoolVar(&opts.Send, "send", false, "Push result strings to a local consumer on the UI port even without a UI host")
	flag.StringVar(&opts.Record, "record", "", "Append collector output to this file")
	flag.BoolVar(&opts.Drain, "drain", false, "Receive and discard frames without processing (bandwidth bench)")
	flag.BoolVar(&opts.Broker, "broker", true, "Run the LRU broker between splitter and readers")
	flag.BoolVar(&opts.Headerless, "header", false, "Stream carries no run header frames")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Print per-frame output to stdout")
	flag.BoolVar(&opts.Test, "test", false, "Process synthetic data only; do not touch Redis or the archive")
	flag.IntVar(&opts.NumWorkers, "workers", 3, "Number of reader goroutines")
	flag.IntVar(&opts.BufSize, "bufsize", 20, "Channel buffer size for collector routing")
	flag.BoolVar(&opts.PrintHelp, "help", false, "Print help message")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}
