package main

import (
	"github.com/spf13/cobra"

	"github.com/esarmiem/navegantes-payment-e-learning/internal/config"
	"github.com/esarmiem/navegantes-payment-e-learning/internal/signature"
)

func newSignCmd() *cobra.Command {
	var (
		reference string
		amount    int64
		currency  string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Print the integrity signature for a checkout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if currency == "" {
				currency = cfg.Currency
			}
			sig, err := signature.Generate(reference, amount, currency, cfg.IntegritySecret)
			if err != nil {
				return err
			}
			cmd.Println(sig)
			return nil
		},
	}
	cmd.Flags().StringVar(&reference, "reference", "", "payment reference")
	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in minor units")
	cmd.Flags().StringVar(&currency, "currency", "", "currency code (defaults to CURRENCY)")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
