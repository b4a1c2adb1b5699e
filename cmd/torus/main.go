// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command torus manages key caches and runs evaluation workers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/torus"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	debug bool
	log   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "torus",
		Short: "Integer FHE key management and evaluation workers",
		Long: `torus generates and caches FHE keys, prints parameter sets, and runs
workers that evaluate queued ciphertext jobs.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			var err error
			if opts.debug {
				opts.log, err = zap.NewDevelopment()
			} else {
				opts.log, err = zap.NewProduction()
			}
			return err
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "development logging")

	cmd.AddCommand(newKeygenCmd(opts))
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newWorkerCmd(opts))
	return cmd
}

func lookupPreset(name string) (torus.SchemeParameters, error) {
	p, ok := torus.Presets[name]
	if !ok {
		return torus.SchemeParameters{}, fmt.Errorf("unknown preset %q", name)
	}
	return p, nil
}
