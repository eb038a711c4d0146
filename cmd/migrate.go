package main

import (
	"github.com/spf13/cobra"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the customers table and indexes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			_, closeDB, err := openRepository(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			closeDB()
			cmd.Println("schema is up to date")
			return nil
		},
	}
}
