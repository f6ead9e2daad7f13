package health

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	chromem "github.com/philippgille/chromem-go"
)

// DefaultDimensions is the vector size of the local embedding.
const DefaultDimensions = 256

// LocalEmbedding returns a deterministic hashed bag-of-words embedding. It needs no
// network access, so the knowledge base works offline and in tests.
func LocalEmbedding(dimensions int) chromem.EmbeddingFunc {
	if dimensions <= 1 {
		dimensions = DefaultDimensions
	}
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dimensions)
		// bias keeps empty texts from producing a zero vector
		vec[0] = 0.01
		for _, word := range words(text) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[1+int(h.Sum32()%uint32(dimensions-1))]++
		}
		normalize(vec)
		return vec, nil
	}
}

// OpenAIEmbedding uses an OpenAI compatible embeddings endpoint.
func OpenAIEmbedding(baseURL, apiKey, model string) chromem.EmbeddingFunc {
	normalized := true
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, apiKey, model, &normalized)
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {}, "are": {}, "is": {}, "of": {},
	"a": {}, "an": {}, "to": {}, "in": {}, "on": {}, "or": {}, "can": {}, "i": {}, "my": {},
	"do": {}, "does": {}, "it": {}, "you": {}, "if": {}, "be": {}, "about": {}, "tell": {}, "me": {},
}

func words(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		if len(f) > 3 && strings.HasSuffix(f, "s") && !strings.HasSuffix(f, "ss") {
			f = strings.TrimSuffix(f, "s")
		}
		out = append(out, f)
	}
	return out
}

func normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
