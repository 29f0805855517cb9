package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"stream-classifier/classifier"
	"stream-classifier/config"
	"stream-classifier/internal"
	"stream-classifier/logger"
	"stream-classifier/proxy"
	"stream-classifier/types"
)

// NewClassifyCommand creates the "classify" subcommand, which classifies a
// recorded SSE stream and prints one JSON response per line
func NewClassifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify an OpenAI-compatible SSE stream read from a file or stdin",
		ArgsUsage: "[file]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Value: "config.yaml", Usage: "Path to the YAML configuration file"},
			&cli.StringFlag{Name: "family", Aliases: []string{"f"}, Usage: "Classifier family (overrides the model mapping)"},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "Model name used to pick the family"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			family := cmd.String("family")
			if family == "" {
				family = cfg.FamilyForModel(cmd.String("model"))
			}

			in := io.Reader(os.Stdin)
			if path := cmd.Args().First(); path != "" && path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			obs := logger.NewObservabilityLoggerWithWriter(os.Stderr)
			if err := obs.SetLevel(cfg.LogLevel); err != nil {
				return err
			}
			return classifyStream(ctx, cfg, family, in, os.Stdout, obs)
		},
	}
}

// NewFamiliesCommand creates the "families" subcommand
func NewFamiliesCommand() *cli.Command {
	return &cli.Command{
		Name:  "families",
		Usage: "List the supported classifier families",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, err := fmt.Fprintln(os.Stdout, strings.Join(classifier.Families(), "\n"))
			return err
		},
	}
}

// classifyStream reads events from in on one goroutine, classifies them on
// another and writes the responses to w as JSON lines
func classifyStream(ctx context.Context, cfg *config.Config, family string, in io.Reader, w io.Writer, obs *logger.ObservabilityLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	requestID := internal.NewRequestID()
	ctx = internal.WithRequestID(ctx, requestID)

	pipeline, err := proxy.NewPipelineFor(cfg, family, requestID, nil, obs)
	if err != nil {
		return err
	}

	events := make(chan types.Event)
	out := make(chan types.Response)
	readErr := make(chan error, 1)
	runErr := make(chan error, 1)

	go func() {
		defer close(events)
		readErr <- proxy.ReadEvents(ctx, in, func(ev types.Event) error {
			select {
			case events <- ev:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()
	go func() {
		defer close(out)
		runErr <- pipeline.Run(ctx, events, out)
	}()

	enc := json.NewEncoder(w)
	var writeErr error
	for resp := range out {
		if writeErr != nil {
			continue
		}
		if writeErr = enc.Encode(resp); writeErr != nil {
			cancel()
		}
	}

	if writeErr != nil {
		return writeErr
	}
	if err := <-runErr; err != nil {
		return err
	}
	return <-readErr
}
