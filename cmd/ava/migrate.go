package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jsamit27/ava/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	var (
		from string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy a SQLite database into a target database (drops the target schema first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" {
				to = os.Getenv("DATABASE_URL")
			}
			if to == "" {
				return fmt.Errorf("no target: pass --to or set DATABASE_URL")
			}

			counts, err := migrate.Run(cmd.Context(), from, to)
			if err != nil {
				return err
			}

			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)
			for _, table := range tables {
				fmt.Printf("%-16s %d rows\n", table, counts[table])
			}
			fmt.Println("Migration complete.")
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source SQLite path")
	cmd.Flags().StringVar(&to, "to", "", "target storage descriptor (defaults to DATABASE_URL)")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
