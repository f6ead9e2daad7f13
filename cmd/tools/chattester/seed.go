package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/store/sqlstore"
)

func newSeedCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the tables and load the demo catalog into a SQL store",
		Example: `  chattester seed --driver sqlite --dsn pharmacy.db
  CHATTESTER_DSN=postgres://localhost/pharmacy?sslmode=disable chattester seed --driver postgres`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := sqlstore.Open(cmd.Context(), sqlstore.Config{
				Driver: v.GetString("driver"),
				DSN:    v.GetString("dsn"),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Seed(cmd.Context(), catalog.Seed())
			if err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ inserted %d of %d products\n", n, len(catalog.Seed()))
			products, err := store.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range products {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-8s %-22s %6d\n", p.ID, p.Name, p.PriceCents)
			}
			return nil
		},
	}
	cmd.Flags().String("driver", sqlstore.DriverSQLite, "sqlite, postgres or mysql")
	cmd.Flags().String("dsn", "pharmacy.db", "data source name")
	return cmd
}
