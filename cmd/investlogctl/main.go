package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

const name = "investlogctl"

func commands(e *env) []subcommands.Command {
	return []subcommands.Command{
		&importCmd{env: e},
		&exportCmd{env: e},
		&refreshCmd{env: e},
		&summaryCmd{env: e},
		&priceCmd{env: e},
		&resetCmd{env: e},
	}
}

// completion describes the command line for shell completion. Install it
// with COMP_INSTALL=1 investlogctl.
func completion() *complete.Command {
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.toml"),
		},
		Sub: map[string]*complete.Command{
			"import": {
				Flags: map[string]complete.Predictor{"replace": predict.Nothing},
				Args:  predict.Files("*.csv"),
			},
			"export": {
				Flags: map[string]complete.Predictor{"o": predict.Files("*.csv")},
			},
			"refresh": {
				Flags: map[string]complete.Predictor{"force": predict.Nothing},
			},
			"summary": {
				Flags: map[string]complete.Predictor{
					"currency": predict.Something,
					"md":       predict.Nothing,
					"w":        predict.Something,
				},
			},
			"price": {
				Flags: map[string]complete.Predictor{
					"force":   predict.Nothing,
					"retries": predict.Something,
				},
				Args: predict.Something,
			},
			"reset": {
				Flags: map[string]complete.Predictor{"yes": predict.Nothing},
			},
			"help":     {Args: predict.Set{"import", "export", "refresh", "summary", "price", "reset"}},
			"commands": {},
			"flags":    {},
		},
	}
}

func main() {
	completion().Complete(name)

	e := &env{}
	flag.StringVar(&e.configPath, "config", "investlog.toml", "path to the TOML configuration file")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	for _, c := range commands(e) {
		commander.Register(c, "")
	}

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	status := commander.Execute(ctx)
	stop()
	e.close()
	os.Exit(int(status))
}
