package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const appName = "backoffice-probe"

func main() {
	var (
		configPath = flag.String("config", "", "probe config file (yaml)")
		storePath  = flag.String("store", "", "token store path (overrides config)")
		baseURL    = flag.String("api", "", "console API base URL (overrides config)")
		demo       = flag.Bool("demo", false, "run against an in-process stub backend")
		verbose    = flag.Bool("verbose", false, "debug logging")
		noBanner   = flag.Bool("no-banner", false, "suppress the startup banner")
	)
	flag.Usage = usage
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	command := flag.Arg(0)
	args := flag.Args()[1:]

	cfg, err := loadProbeConfig(*configPath, *demo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *baseURL != "" {
		cfg.API.BaseURL = *baseURL
	}

	if !*noBanner && command != "whoami" && command != "snapshot" {
		displayAppname(appName)
	}

	env, err := newProbeEnv(cfg, *demo)
	if err != nil {
		log.Err(err).Msg("probe setup failed")
		os.Exit(1)
	}
	defer env.close()

	if err := env.run(command, args); err != nil {
		log.Err(err).Str("command", command).Msg("probe command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [flags] <command> [command flags]

commands:
  login      sign in and persist the token pair
  whoami     inspect the stored session
  refresh    force a refresh round-trip against the API
  watch      run the session coordinator and stream its state
  snapshot   initialize once and dump the lifecycle report and metrics

flags:
`, appName)
	flag.PrintDefaults()
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
