package main

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/errors"
	"github.com/mattn/go-isatty"
	"github.com/spf13/pflag"
	"github.com/temoto/dsmr-bridge/cmd/dsmr-bridge/decode"
	"github.com/temoto/dsmr-bridge/cmd/dsmr-bridge/run"
	"github.com/temoto/dsmr-bridge/cmd/dsmr-bridge/subcmd"
	"github.com/temoto/dsmr-bridge/internal/config"
	"github.com/temoto/dsmr-bridge/log2"
)

var modules = []subcmd.Mod{
	run.Mod,
	decode.Mod,
}

func main() {
	flagConfig := pflag.StringP("config", "c", "", "config file, .hcl or .yaml")
	flagDebug := pflag.Bool("log-debug", false, "debug logging, overrides config log_debug")
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [command]\n\nCommands:\n", os.Args[0])
		for _, m := range modules {
			fmt.Fprintf(os.Stderr, "  %-8s %s\n", m.Name, m.Usage)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	log := log2.NewStderr(log2.LInfo)
	switch {
	case subcmd.SdNotify(log, "start"):
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	case isatty.IsTerminal(os.Stderr.Fd()):
		log.SetFlags(log2.LInteractiveFlags)
	}

	command, args := "run", pflag.Args()
	if len(args) != 0 {
		command, args = args[0], args[1:]
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		pflag.Usage()
		log.Fatal(err)
	}

	c := config.MustLoad(log, config.OsFullReader{}, *flagConfig, os.Getenv)
	if c.LogDebug || *flagDebug {
		log.SetLevel(log2.LDebug)
	}
	log.Debugf("command=%s mqtt=%s backend=%s serial=%s", mod.Name, c.Mqtt.Host, c.Mqtt.Backend, c.Serial.Port)

	if err := mod.Main(context.Background(), c, log, args); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
