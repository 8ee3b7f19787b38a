// Command voicegate runs the adaptive voice gate on a live microphone and
// speaker pair.
//
// Usage:
//
//	voicegate run [flags]
//	voicegate devices
//	voicegate recipe [mode ...]
//
// While running, commands such as "volume 1.2", "mute" or "mode
// low-latency" are read from stdin; type "help" for the list.
//
// Examples:
//
//	voicegate run --mode low-latency --volume 1.2
//	voicegate run --simulate --metrics :9464
//	voicegate -c voicegate.yaml run
//	voicegate recipe quality
package main

import (
	"github.com/alecthomas/kong"
	"github.com/cwbudde/voicegate/internal/config"
	"github.com/cwbudde/voicegate/internal/logging"
)

var version = "0.1.0"

// Globals are the flags shared by every command.
type Globals struct {
	Config    string `short:"c" type:"path" help:"Path to YAML config file (optional)"`
	LogLevel  string `help:"Log level (debug, info, warn, error); overrides the config file"`
	LogFormat string `help:"Log format (text, json); overrides the config file"`
}

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Version kong.VersionFlag `short:"v" help:"Show version information"`

	Run     RunCmd     `cmd:"" default:"1" help:"Run the voice gate"`
	Devices DevicesCmd `cmd:"" help:"List audio devices"`
	Recipe  RecipeCmd  `cmd:"" help:"Print the processing graph of each mode"`
}

// load reads the config file, if any, and applies the logging overrides.
func (g *Globals) load() (*config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return nil, err
		}
	}
	if g.LogLevel != "" {
		cfg.LogLevel = config.LogLevel(g.LogLevel)
	}
	if g.LogFormat != "" {
		cfg.LogFormat = g.LogFormat
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := logging.Setup(string(cfg.LogLevel), cfg.LogFormat, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("voicegate"),
		kong.Description("Adaptive voice gate for live microphone monitoring"),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}
