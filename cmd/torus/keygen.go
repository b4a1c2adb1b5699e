// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luxfi/torus"
	"github.com/luxfi/torus/internal/timing"
)

func newKeygenCmd(root *rootOptions) *cobra.Command {
	var (
		preset     string
		cache      string
		cpuProfile string
		memProfile string
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair, or load it from the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := lookupPreset(preset)
			if err != nil {
				return err
			}

			prof, err := timing.StartProfile(timing.ProfileConfig{CPUProfile: cpuProfile, MemProfile: memProfile})
			if err != nil {
				return err
			}

			kgen, err := torus.NewKeyGenerator(params, torus.WithLogger(root.log))
			if err != nil {
				return err
			}

			timer := timing.Start("keygen", root.log)
			if _, _, err := kgen.GenerateWithCache(cache); err != nil {
				return err
			}
			elapsed := timer.Stop(append(timing.MemFields(), zap.String("preset", preset))...)

			if err := prof.Stop(); err != nil {
				return err
			}

			if cache != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "keys ready in %s (%v)\n", kgen.CacheDir(cache), elapsed)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "keys generated in %v (not cached)\n", elapsed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "PN11QP48", "parameter preset")
	cmd.Flags().StringVar(&cache, "cache", "", "key cache root; empty disables caching")
	cmd.Flags().StringVar(&cpuProfile, "cpuprofile", "", "write a CPU profile")
	cmd.Flags().StringVar(&memProfile, "memprofile", "", "write a heap profile")
	return cmd
}
