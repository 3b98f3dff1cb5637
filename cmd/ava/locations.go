package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jsamit27/ava/internal/geo"
)

func newLocationsCmd() *cobra.Command {
	var (
		in  string
		out string
	)

	cmd := &cobra.Command{
		Use:   "locations",
		Short: "Split a master drop-off locations CSV into per-state files",
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := geo.SplitByState(in, out)
			if err != nil {
				return err
			}

			states := make([]string, 0, len(counts))
			for state := range counts {
				if state != "" {
					states = append(states, state)
				}
			}
			sort.Strings(states)
			for _, state := range states {
				fmt.Printf("%s: %d location(s)\n", state, counts[state])
			}
			if skipped := counts[""]; skipped > 0 {
				fmt.Printf("skipped %d row(s) with unparseable addresses\n", skipped)
			}
			fmt.Printf("Wrote %d state file(s) to %s\n", len(states), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "master locations CSV (needs an 'address' column)")
	cmd.Flags().StringVar(&out, "out", "./data/by_state_csv", "output directory for per-state CSVs")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
