// Package health answers informational questions from a small vector-indexed knowledge
// base, optionally condensing the retrieved passages with a chat model.
package health

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/zhouzirui/z-pharmacy/backend/internal/cache"
	"github.com/zhouzirui/z-pharmacy/backend/internal/metrics"
)

// ErrUnavailable is returned when the knowledge base has nothing indexed.
var ErrUnavailable = errors.New("health knowledge base unavailable")

const (
	collectionName   = "health"
	DefaultTopK      = 2
	DefaultCacheTTL  = 10 * time.Minute
	DefaultThreshold = 0.1
)

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	TopK       int
	Threshold  float32
	Cache      cache.Client
	CacheTTL   time.Duration
	Summarizer Summarizer
	Metrics    *metrics.Recorder
	Logger     *zerolog.Logger
}

// Service searches the health knowledge base.
type Service struct {
	collection *chromem.Collection
	docs       map[string]Document
	topK       int
	threshold  float32
	cache      cache.Client
	ttl        time.Duration
	summarizer Summarizer
	group      singleflight.Group
	metrics    *metrics.Recorder
	logger     zerolog.Logger
}

// NewService indexes docs with embed and returns a ready Service.
func NewService(ctx context.Context, docs []Document, embed chromem.EmbeddingFunc, opts Options) (*Service, error) {
	if len(docs) == 0 {
		return nil, ErrUnavailable
	}
	if embed == nil {
		embed = LocalEmbedding(DefaultDimensions)
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create health collection: %w", err)
	}

	byID := make(map[string]Document, len(docs))
	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		if _, dup := byID[doc.ID]; dup {
			continue
		}
		byID[doc.ID] = doc
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       doc.ID,
			Content:  doc.Title + "\n" + doc.Text,
			Metadata: map[string]string{"title": doc.Title, "source": doc.Source},
		})
	}
	if err := collection.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("index health corpus: %w", err)
	}

	svc := &Service{
		collection: collection,
		docs:       byID,
		topK:       opts.TopK,
		threshold:  opts.Threshold,
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		summarizer: opts.Summarizer,
		metrics:    opts.Metrics,
		logger:     logger.With().Str("component", "health").Logger(),
	}
	svc.logger.Info().Int("documents", collection.Count()).Bool("summarizer", opts.Summarizer != nil).Msg("health knowledge base indexed")
	return svc, nil
}

// Search answers query from the knowledge base. Identical concurrent queries share one
// lookup and answers are cached when a cache is configured.
func (s *Service) Search(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return NoMatch, nil
	}
	start := time.Now()
	key := cacheKey(query)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			s.metrics.HealthSearch("cached", time.Since(start))
			return string(cached), nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("health cache read failed")
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.answer(ctx, query)
	})
	if err != nil {
		s.metrics.HealthSearch("error", time.Since(start))
		return "", err
	}
	answer := v.(string)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, []byte(answer), s.ttl); err != nil {
			s.logger.Warn().Err(err).Msg("health cache write failed")
		}
	}
	s.metrics.HealthSearch("ok", time.Since(start))
	return answer, nil
}

func (s *Service) answer(ctx context.Context, query string) (string, error) {
	docs, err := s.retrieve(ctx, query)
	if err != nil {
		return "", err
	}
	heuristic := FormatAnswer(docs)
	if len(docs) == 0 || s.summarizer == nil {
		return heuristic, nil
	}

	passages := make([]string, 0, len(docs))
	for _, doc := range docs {
		passages = append(passages, doc.Title+"\n"+doc.Text)
	}
	summary, err := s.summarizer.Summarize(ctx, query, strings.Join(passages, "\n\n"))
	if err != nil {
		s.logger.Warn().Err(err).Msg("health summarizer failed, use fallback")
		return heuristic, nil
	}
	return AnswerPrefix + "\n" + summary, nil
}

// retrieve returns the top documents above the similarity threshold.
func (s *Service) retrieve(ctx context.Context, query string) ([]Document, error) {
	k := s.topK
	if count := s.collection.Count(); count == 0 {
		return nil, ErrUnavailable
	} else if k > count {
		k = count
	}

	results, err := s.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query health collection: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		if r.Similarity < s.threshold {
			continue
		}
		if doc, ok := s.docs[r.ID]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

// Count reports the number of indexed documents.
func (s *Service) Count() int {
	return s.collection.Count()
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.Join(strings.Fields(query), " "))))
	return "health:" + hex.EncodeToString(sum[:])
}
