package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/alias"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/observability"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/assistant"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/health"
)

func newChatCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send messages to the assistant and print the replies",
		Example: `  chattester chat "do you have panadol" "yes" "show my cart"
  chattester chat --script scenarios/refill.txt
  echo "what are your hours" | chattester chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := buildEngine(cmd.Context(), v)
			if err != nil {
				return err
			}

			messages := args
			if script := v.GetString("script"); script != "" {
				f, err := os.Open(script)
				if err != nil {
					return fmt.Errorf("open script: %w", err)
				}
				defer f.Close()
				messages, err = readMessages(f)
				if err != nil {
					return err
				}
			} else if len(messages) == 0 {
				messages, err = readMessages(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			session := v.GetString("session")
			if session == "" {
				session = "cli-" + uuid.NewString()
			}
			return runConversation(cmd.Context(), cmd.OutOrStdout(), engine, assistant.Request{
				SessionID: session,
				UserID:    v.GetString("user"),
			}, messages, v.GetBool("verbose"))
		},
	}

	cmd.Flags().String("session", "", "session id (default: random)")
	cmd.Flags().String("user", "", "authenticated user id")
	cmd.Flags().String("script", "", "file with one message per line; # starts a comment")
	cmd.Flags().String("bulk", string(assistant.BulkQuantityOne), "quantity policy for \"add all\": one or pending")
	cmd.Flags().String("store-hours", "", "store hours text")
	cmd.Flags().String("alias-file", "", "YAML alias overrides")
	cmd.Flags().BoolP("verbose", "v", false, "print intent and branch for every turn")
	return cmd
}

// buildEngine assembles an in-memory engine with the offline health knowledge base.
func buildEngine(ctx context.Context, v *viper.Viper) (*assistant.Engine, error) {
	policy, err := assistant.ParseBulkQuantityPolicy(v.GetString("bulk"))
	if err != nil {
		return nil, err
	}

	aliases := alias.Default()
	if path := v.GetString("alias-file"); path != "" {
		if aliases, err = alias.LoadFile(path); err != nil {
			return nil, err
		}
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       v.GetString("log-level"),
		Format:      "console",
		Output:      os.Stderr,
		ServiceName: "chattester",
	})

	if ctx == nil {
		ctx = context.Background()
	}
	healthSvc, err := health.NewService(ctx, health.SeedCorpus(), health.LocalEmbedding(health.DefaultDimensions), health.Options{Logger: &logger})
	if err != nil {
		return nil, err
	}

	engine := assistant.NewEngine(catalog.NewMemoryStore(catalog.Seed()), assistant.Options{
		Aliases:      aliases,
		Health:       healthSvc,
		BulkQuantity: policy,
		StoreHours:   v.GetString("store-hours"),
		Logger:       &logger,
	})
	if err := engine.RefreshVocabulary(ctx); err != nil {
		return nil, err
	}
	return engine, nil
}

func readMessages(r io.Reader) ([]string, error) {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return out, nil
}

var (
	userLabel = color.New(color.FgCyan, color.Bold)
	botLabel  = color.New(color.FgGreen, color.Bold)
	metaLabel = color.New(color.FgYellow)
	errLabel  = color.New(color.FgRed)
)

func runConversation(ctx context.Context, w io.Writer, engine *assistant.Engine, base assistant.Request, messages []string, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, message := range messages {
		req := base
		req.Message = message

		userLabel.Fprint(w, "you> ")
		fmt.Fprintln(w, message)

		out, err := engine.Handle(ctx, req)
		botLabel.Fprint(w, "bot> ")
		fmt.Fprintln(w, indent(out.Text))
		if verbose {
			metaLabel.Fprintf(w, "     [intent=%s branch=%s]\n", out.Intent, out.Branch)
		}
		if err != nil {
			errLabel.Fprintf(w, "     error: %v\n", err)
		}
	}
	return nil
}

func indent(text string) string {
	return strings.ReplaceAll(text, "\n", "\n     ")
}
