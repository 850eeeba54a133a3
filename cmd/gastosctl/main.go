package main

import (
	"context"
	"flag"
	"os"
	"path"

	"gastos/internal/cli"
	"gastos/internal/ctl"

	"github.com/google/subcommands"
)

func main() {
	cli.LoadEnvFile()

	settings := &ctl.Settings{Out: os.Stdout, Err: os.Stderr}
	defaultURL := os.Getenv("API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8000"
	}
	flag.StringVar(&settings.APIURL, "api", defaultURL, "Base URL of the gastos API.")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	for _, c := range ctl.Commands(settings) {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
