// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Command fbdc mirrors the guilds and channels of a Discord account into a
// directory tree. Incoming messages are appended to per-channel logs, and
// files dropped into a channel's api directory are sent as requests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.mau.fi/util/exzerolog"

	"github.com/aiku/fbdc/pkg/connector"
	"github.com/aiku/fbdc/pkg/fsbridge"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	Name    = "fbdc"
	Version = "0.1.0"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	token      string
	root       string
	configPath string
}

// parseArgs returns nil options and an exit code when the process should
// stop without running.
func parseArgs(args []string, stdout, stderr io.Writer) (*options, int) {
	flags := pflag.NewFlagSet(Name, pflag.ContinueOnError)
	flags.SetOutput(stderr)
	root := flags.StringP("root", "r", "", "directory to mirror into (default: current directory)")
	configPath := flags.StringP("config", "c", "", "path to a YAML config file (default: built-in settings)")
	showVersion := flags.BoolP("version", "v", false, "print the version and exit")
	flags.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: %s [flags] TOKEN\n\nFlags:\n", Name)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, 0
		}
		return nil, 2
	}
	if *showVersion {
		_, _ = fmt.Fprintf(stdout, "%s %s (tag %s, commit %s, built %s)\n", Name, Version, Tag, Commit, BuildTime)
		return nil, 0
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return nil, 2
	}

	opts := &options{
		token:      flags.Arg(0),
		root:       *root,
		configPath: *configPath,
	}
	if opts.root == "" {
		wd, err := os.Getwd()
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Failed to get working directory: %v\n", err)
			return nil, 1
		}
		opts.root = wd
	}
	return opts, 0
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, code := parseArgs(args, stdout, stderr)
	if opts == nil {
		return code
	}

	cfg, err := connector.LoadConfig(opts.configPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	log, err := cfg.Logging.Compile()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}
	exzerolog.SetupDefaults(log)
	log.Info().Str("version", Version).Str("root", opts.root).Msg("Starting")

	api := connector.NewAPIClient(cfg, opts.token, *log)
	bridge, err := fsbridge.New(opts.root, api, fsbridge.Options{
		Watch:           cfg.Triggers.WatchOptions(),
		ResolveMentions: cfg.ResolveMentions,
	}, log.With().Str("component", "bridge").Logger())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create bridge")
		return 1
	}
	bridge.Start(ctx)
	defer func() {
		if err := bridge.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop watches")
		}
	}()

	dc := connector.NewDiscordConnector(cfg, opts.token, api, bridge, *log)
	if err := dc.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Session failed")
		return 1
	}
	log.Info().Msg("Stopped")
	return 0
}
