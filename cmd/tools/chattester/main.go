// Command chattester drives the pharmacy assistant from a terminal: replay a script of
// messages, inspect how a message is routed, or seed a SQL catalog.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "chattester",
		Short: "Exercise the pharmacy assistant without the HTTP server",
		Long: `chattester runs the dialogue engine in process.

  chat   replay messages from arguments, a script file or stdin
  route  show the normalized text, intent decision and safety verdict
  seed   load the demo catalog into a SQL store`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := v.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			color.NoColor = color.NoColor || v.GetBool("no-color")
			return nil
		},
	}

	v.SetEnvPrefix("CHATTESTER")
	v.AutomaticEnv()

	root.PersistentFlags().Bool("no-color", false, "disable coloured output")
	root.PersistentFlags().String("log-level", "warn", "engine log level")

	root.AddCommand(newChatCmd(v), newRouteCmd(v), newSeedCmd(v))
	return root
}
