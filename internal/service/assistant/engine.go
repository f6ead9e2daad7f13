// Package assistant is the pharmacy dialogue engine. It turns chat messages into catalog
// searches and cart changes while remembering each session's recent context.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/alias"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/intent"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/normalize"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/safety"
	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/similarity"
	"github.com/zhouzirui/z-pharmacy/backend/internal/metrics"
	"github.com/zhouzirui/z-pharmacy/backend/internal/model/catalog"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/reply"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/resolver"
	"github.com/zhouzirui/z-pharmacy/backend/internal/service/session"
)

// ErrStoreUnavailable marks turns that failed because the inventory or cart store did.
var ErrStoreUnavailable = errors.New("store unavailable")

// VocabularyRefresh is how often catalog names are reloaded for the normalizer.
const VocabularyRefresh = time.Minute

// DefaultStoreHours is used when no hours are configured.
const DefaultStoreHours = "Monday to Friday 8:00 AM - 9:00 PM, Saturday and Sunday 9:00 AM - 6:00 PM."

// Store is the inventory and cart backend the engine drives.
type Store interface {
	catalog.Inventory
	catalog.Cart
}

// HealthSearcher answers informational health questions.
type HealthSearcher interface {
	Search(ctx context.Context, query string) (string, error)
}

// Options configures an Engine. Zero values pick sensible defaults.
type Options struct {
	Sessions     *session.Store
	Aliases      *alias.Table
	Health       HealthSearcher
	BulkQuantity BulkQuantityPolicy
	StoreHours   string
	Metrics      *metrics.Recorder
	Logger       *zerolog.Logger
}

// Engine handles chat turns. It is safe for concurrent use.
type Engine struct {
	store      Store
	finder     *resolver.Finder
	sessions   *session.Store
	health     HealthSearcher
	bulk       BulkQuantityPolicy
	storeHours string
	metrics    *metrics.Recorder
	logger     zerolog.Logger
	rules      []rule

	aliasWords normalize.Protected

	vocabMu      sync.RWMutex
	catalogWords normalize.Protected
	vocabLoaded  time.Time
}

// NewEngine wires an engine over store.
func NewEngine(store Store, opts Options) *Engine {
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore(session.Options{})
	}
	if opts.BulkQuantity == "" {
		opts.BulkQuantity = BulkQuantityOne
	}
	if strings.TrimSpace(opts.StoreHours) == "" {
		opts.StoreHours = DefaultStoreHours
	}
	if opts.Aliases == nil {
		opts.Aliases = alias.Default()
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	aliasWords := normalize.NewProtected(opts.Aliases.Keys()...)
	for _, key := range opts.Aliases.Keys() {
		canonical, _ := opts.Aliases.Lookup(key)
		aliasWords.Add(canonical)
	}

	e := &Engine{
		store:      store,
		finder:     resolver.NewFinder(store, opts.Aliases),
		sessions:   opts.Sessions,
		health:     opts.Health,
		bulk:       opts.BulkQuantity,
		storeHours: opts.StoreHours,
		metrics:    opts.Metrics,
		logger:     logger.With().Str("component", "assistant").Logger(),
		aliasWords: aliasWords,
	}
	e.rules = e.ruleTable()
	return e
}

// RefreshVocabulary reloads the product names the normalizer must leave untouched.
// Handle also refreshes them on pharmacy turns once they are older than VocabularyRefresh.
func (e *Engine) RefreshVocabulary(ctx context.Context) error {
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	words := normalize.NewProtected()
	for _, p := range products {
		words.Add(p.Name)
	}

	e.vocabMu.Lock()
	defer e.vocabMu.Unlock()
	e.catalogWords = words
	e.vocabLoaded = time.Now()
	return nil
}

func (e *Engine) protected() []normalize.Protected {
	e.vocabMu.RLock()
	defer e.vocabMu.RUnlock()
	return []normalize.Protected{e.aliasWords, e.catalogWords}
}

func (e *Engine) vocabularyStale() bool {
	e.vocabMu.RLock()
	defer e.vocabMu.RUnlock()
	return time.Since(e.vocabLoaded) > VocabularyRefresh
}

// Request is one inbound chat message.
type Request struct {
	Message   string
	SessionID string
	UserID    string
}

// Reply is the engine's answer to one turn.
type Reply struct {
	Text     string            `json:"reply"`
	Intent   intent.Label      `json:"intent,omitempty"`
	Branch   string            `json:"branch,omitempty"`
	Products []catalog.Product `json:"products,omitempty"`
}

// Branch names for turns that never reach the rule table.
const (
	BranchEmpty     = "empty"
	BranchBlocked   = "blocked"
	BranchSmallTalk = "small_talk"
	BranchHealth    = "health"
)

// Handle processes one message. It always returns a reply with text; the error is
// non-nil only when a backend failed, and then wraps ErrStoreUnavailable.
func (e *Engine) Handle(ctx context.Context, req Request) (Reply, error) {
	raw := strings.TrimSpace(req.Message)
	if raw == "" {
		return e.finish(Reply{Text: reply.EmptyMessage, Branch: BranchEmpty}), nil
	}

	text := normalize.Correct(raw, e.protected()...)
	if verdict := blocked(text, raw); verdict.Blocked {
		e.metrics.Blocked(verdict.Rule)
		e.logger.Info().Str("rule", verdict.Rule).Str("session", req.SessionID).Msg("message refused by safety filter")
		return e.finish(Reply{Text: verdict.Message, Branch: BranchBlocked}), nil
	}

	decision := intent.Route(text)
	switch decision.Intent {
	case intent.SmallTalk:
		return e.finish(Reply{Text: smallTalk(text), Intent: decision.Intent, Branch: BranchSmallTalk}), nil
	case intent.Health:
		return e.finish(e.answerHealth(ctx, text, decision)), nil
	}

	out, err := e.pharmacy(ctx, req, text)
	out.Intent = decision.Intent
	if err != nil {
		return e.fail(req, out, err)
	}
	return e.finish(out), nil
}

func blocked(text, raw string) safety.Verdict {
	if verdict := safety.Check(text); verdict.Blocked {
		return verdict
	}
	return safety.Check(strings.ToLower(raw))
}

// pharmacy runs the rule table under the session's lock.
func (e *Engine) pharmacy(ctx context.Context, req Request, text string) (Reply, error) {
	if e.vocabularyStale() {
		if err := e.RefreshVocabulary(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("catalog vocabulary refresh failed")
		}
	}
	owner := catalog.ResolveOwner(req.UserID, req.SessionID)
	key := session.Key(req.SessionID, req.UserID)

	var out Reply
	err := e.sessions.With(ctx, key, func(state *session.Context) error {
		t := &turn{ctx: ctx, text: text, owner: owner, state: state}
		for _, r := range e.rules {
			if !r.match(t) {
				continue
			}
			res, err := r.handle(t)
			if res.Branch == "" {
				res.Branch = r.name
			}
			out = res
			return err
		}
		out = Reply{Text: reply.Fallback, Branch: "fallback"}
		return nil
	})
	return out, err
}

func (e *Engine) fail(req Request, out Reply, err error) (Reply, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		out.Text = reply.StoreFailure
		e.finish(out)
		return out, err
	}
	e.metrics.StoreError()
	e.logger.Error().Err(err).Str("session", req.SessionID).Str("branch", out.Branch).Msg("store failure")
	out.Text = reply.StoreFailure
	out.Products = nil
	e.finish(out)
	return out, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func (e *Engine) finish(out Reply) Reply {
	label := string(out.Intent)
	if label == "" {
		label = "none"
	}
	e.metrics.Turn(label, out.Branch)
	return out
}

func (e *Engine) answerHealth(ctx context.Context, text string, decision intent.Decision) Reply {
	out := Reply{Intent: decision.Intent, Branch: BranchHealth}
	if e.health == nil {
		out.Text = reply.HealthOffline
		return out
	}

	answer, err := e.health.Search(ctx, text)
	if err != nil {
		e.logger.Warn().Err(err).Str("reason", decision.Reason).Msg("health search failed")
		out.Text = reply.HealthOffline
		return out
	}
	out.Text = answer
	return out
}

var (
	greetingWords = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}
	thanksWords   = []string{"thanks", "thank you", "thx", "ty"}
	goodbyeWords  = []string{"bye", "goodbye"}
)

func smallTalk(text string) string {
	switch {
	case similarity.ContainsAnyWord(text, thanksWords):
		return reply.Thanks
	case similarity.ContainsAnyWord(text, goodbyeWords):
		return "Goodbye! Take care and feel better soon."
	case strings.Contains(text, "how are you") || strings.Contains(text, "how r u") || strings.Contains(text, "how are u"):
		return "I'm doing well, thank you! How can I help you with your medicines today?"
	case strings.Contains(text, "who are you") || similarity.ContainsWord(text, "real person"):
		return reply.Identity
	case similarity.ContainsAnyWord(text, greetingWords):
		return reply.Greeting
	default:
		return reply.Greeting
	}
}

// turn is the per-message working state handed to rules.
type turn struct {
	ctx   context.Context
	text  string
	owner catalog.Owner
	state *session.Context
}

func (t *turn) words() []string {
	return similarity.Tokens(t.text)
}

func (t *turn) has(phrases ...string) bool {
	return similarity.ContainsAnyWord(t.text, phrases)
}
