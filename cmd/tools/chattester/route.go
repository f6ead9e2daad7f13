package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/normalize"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/safety"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
)

func newRouteCmd(_ *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "route <message>...",
		Short: "Show how messages are normalized, routed and screened",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, message := range args {
				describeRoute(cmd.OutOrStdout(), message)
			}
			return nil
		},
	}
}

// seedVocabulary protects the demo catalog's product words from typo correction.
func seedVocabulary() normalize.Protected {
	keep := normalize.NewProtected()
	for _, p := range catalog.Seed() {
		keep.Add(p.Name)
	}
	return keep
}

func describeRoute(w io.Writer, message string) {
	text := normalize.Correct(message, seedVocabulary())
	decision := intent.Route(text)
	verdict := safety.Check(text)

	color.New(color.Bold).Fprintf(w, "%q\n", message)
	fmt.Fprintf(w, "  normalized: %s\n", text)
	fmt.Fprintf(w, "  intent:     %s (pharmacy=%d health=%d medical=%d", decision.Intent, decision.Pharmacy, decision.Health, decision.Medical)
	if decision.Reason != "" {
		fmt.Fprintf(w, ", %s", decision.Reason)
	}
	fmt.Fprintln(w, ")")
	if verdict.Blocked {
		color.New(color.FgRed).Fprintf(w, "  blocked:    %s\n", verdict.Rule)
	} else {
		color.New(color.FgGreen).Fprintln(w, "  blocked:    no")
	}
}
