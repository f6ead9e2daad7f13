package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/z-pharmacy/backend/internal/cache"
)

func newSeedService(t *testing.T, opts Options) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), SeedCorpus(), LocalEmbedding(DefaultDimensions), opts)
	require.NoError(t, err)
	return svc
}

func TestSearchFindsLabelSections(t *testing.T) {
	svc := newSeedService(t, Options{})
	require.Equal(t, len(SeedCorpus()), svc.Count())

	answer, err := svc.Search(context.Background(), "ibuprofen side effects")
	require.NoError(t, err)
	assert.Contains(t, answer, AnswerPrefix)
	assert.Contains(t, answer, "Ibuprofen Label Information")
	assert.Contains(t, answer, "⚠️ Warnings:")
	assert.Contains(t, answer, "💊 Dosage:")
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := newSeedService(t, Options{})
	answer, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, NoMatch, answer)
}

func TestSearchBelowThreshold(t *testing.T) {
	docs := []Document{{ID: "zinc", Title: "Zinc", Text: "lozenge"}}
	svc, err := NewService(context.Background(), docs, LocalEmbedding(DefaultDimensions), Options{Threshold: 0.8})
	require.NoError(t, err)

	answer, err := svc.Search(context.Background(), "xylophone")
	require.NoError(t, err)
	assert.Equal(t, NoMatch, answer)

	answer, err = svc.Search(context.Background(), "zinc lozenge")
	require.NoError(t, err)
	assert.Contains(t, answer, "**Zinc**")
}

func TestNewServiceRejectsEmptyCorpus(t *testing.T) {
	_, err := NewService(context.Background(), nil, nil, Options{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestSearchUsesCache(t *testing.T) {
	var calls atomic.Int32
	local := LocalEmbedding(DefaultDimensions)
	counting := chromem.EmbeddingFunc(func(ctx context.Context, text string) ([]float32, error) {
		calls.Add(1)
		return local(ctx, text)
	})

	memory := cache.NewMemoryClient(16)
	svc, err := NewService(context.Background(), SeedCorpus(), counting, Options{Cache: memory})
	require.NoError(t, err)
	indexed := calls.Load()

	first, err := svc.Search(context.Background(), "aspirin dosage")
	require.NoError(t, err)
	assert.Equal(t, indexed+1, calls.Load())
	assert.Equal(t, 1, memory.Len())

	second, err := svc.Search(context.Background(), "  Aspirin   DOSAGE ")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, indexed+1, calls.Load())
}

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	return s.text, s.err
}

func TestSearchSummarizer(t *testing.T) {
	svc := newSeedService(t, Options{Summarizer: stubSummarizer{text: "Take it with food."}})
	answer, err := svc.Search(context.Background(), "ibuprofen dosage")
	require.NoError(t, err)
	assert.Equal(t, AnswerPrefix+"\nTake it with food.", answer)
}

func TestSearchSummarizerFallback(t *testing.T) {
	svc := newSeedService(t, Options{Summarizer: stubSummarizer{err: errors.New("model offline")}})
	answer, err := svc.Search(context.Background(), "ibuprofen dosage")
	require.NoError(t, err)
	assert.Contains(t, answer, "Ibuprofen Label Information")
}

type fakeChatModel struct {
	seen []*schema.Message
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	return schema.AssistantMessage("  Short answer.  ", nil), nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.seen = input
	return schema.StreamReaderFromArray([]*schema.Message{schema.AssistantMessage("Short answer.", nil)}), nil
}

func TestChainSummarizer(t *testing.T) {
	fake := &fakeChatModel{}
	summarizer, err := NewChainSummarizer(context.Background(), fake)
	require.NoError(t, err)

	out, err := summarizer.Summarize(context.Background(), " is aspirin safe? ", "Aspirin passage")
	require.NoError(t, err)
	assert.Equal(t, "Short answer.", out)

	require.Len(t, fake.seen, 2)
	assert.Equal(t, schema.System, fake.seen[0].Role)
	assert.Contains(t, fake.seen[1].Content, "Question: is aspirin safe?")
	assert.Contains(t, fake.seen[1].Content, "Aspirin passage")
}

func TestNewChainSummarizerRequiresModel(t *testing.T) {
	_, err := NewChainSummarizer(context.Background(), nil)
	assert.Error(t, err)
}

func TestLoadCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.json")
	data := `[{"title":"Zinc","text":"Zinc supports immunity."},{"id":"empty","title":"Empty","text":"  "}]`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	docs, err := LoadCorpus(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc_0", docs[0].ID)
	assert.Equal(t, "Zinc", docs[0].Title)

	_, err = LoadCorpus(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFormatDocumentPlainText(t *testing.T) {
	out := FormatDocument(Document{Title: "Headache", Text: "Rest and fluids help."})
	assert.Equal(t, "**Headache**\nRest and fluids help.", out)
	assert.Equal(t, NoMatch, FormatAnswer(nil))
}

func TestLocalEmbeddingIsNormalized(t *testing.T) {
	vec, err := LocalEmbedding(32)(context.Background(), "headache headache fever")
	require.NoError(t, err)
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sum, 1e-4)
}
