// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/luxfi/torus"
)

func newInspectCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print a parameter preset and its cache fingerprint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := []string{preset}
			if preset == "" {
				names = names[:0]
				for name := range torus.Presets {
					names = append(names, name)
				}
				sort.Strings(names)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tN\tn\tLOGQ\tBASELOG\tLEVEL\tFINGERPRINT\tDIGEST")
			for _, name := range names {
				p, err := lookupPreset(name)
				if err != nil {
					return err
				}
				r := p.Resolved()
				digest := p.Digest()
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%x\n",
					name, p.PolynomialSize(), p.LWEDimension(), r.LogQ, r.BaseLog, r.Level,
					p.Fingerprint(), digest[:8])
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "preset to print; empty prints all")
	return cmd
}
