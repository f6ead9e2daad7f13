package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Summarizer condenses retrieved passages into a short answer.
type Summarizer interface {
	Summarize(ctx context.Context, question, passages string) (string, error)
}

const summarySystemPrompt = `You are a careful pharmacy assistant. Answer the customer's question using only the passages provided.
Keep the answer under 120 words, mention warnings and interactions when they are relevant, and never invent dosages.
If the passages do not answer the question, say so and recommend asking a pharmacist or doctor.`

const summaryUserPrompt = `Question: {question}

Passages:
{passages}`

// ChainSummarizer runs an eino prompt → chat model chain.
type ChainSummarizer struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewChainSummarizer compiles the summarisation chain over chatModel.
func NewChainSummarizer(ctx context.Context, chatModel model.BaseChatModel) (*ChainSummarizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(summarySystemPrompt),
		schema.UserMessage(summaryUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile health summary chain: %w", err)
	}
	return &ChainSummarizer{chain: runnable}, nil
}

func (s *ChainSummarizer) Summarize(ctx context.Context, question, passages string) (string, error) {
	msg, err := s.chain.Invoke(ctx, map[string]any{
		"question": strings.TrimSpace(question),
		"passages": passages,
	})
	if err != nil {
		return "", fmt.Errorf("run health summary chain: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty summary")
	}
	return strings.TrimSpace(msg.Content), nil
}
