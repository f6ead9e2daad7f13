package intent

import (
	"regexp"
	"strings"

	"github.com/zhouzirui/z-pharmacy/backend/internal/analysis/similarity"
)

// Label is the assistant that should answer a message.
type Label string

const (
	Pharmacy  Label = "pharmacy"
	Health    Label = "health"
	SmallTalk Label = "small_talk"
)

// Decision carries the chosen label and the keyword counts behind it.
type Decision struct {
	Intent   Label
	Pharmacy int
	Health   int
	Medical  int
	Reason   string
}

var pharmacyKeywords = []string{
	"price", "cost", "how much",
	"buy", "purchase", "order", "get",
	"stock", "available", "have", "do you have",
	"prescription", "store", "shop", "sell",
	"add", "remove", "delete", "cart", "checkout", "pay",
	"hours", "open", "close",
}

var healthKeywords = []string{
	"what is", "what are",
	"side effect", "side effects", "symptom", "symptoms", "dose", "dosage",
	"treat", "treatment", "cure", "usage", "use",
	"benefit", "benefits", "risk", "risks", "pain", "fever", "flu",
}

var smallTalkKeywords = []string{
	"hello", "hi", "hey", "good morning", "good afternoon", "good evening",
	"thanks", "thank you", "bye", "goodbye", "real person",
}

// medicalContextKeywords mark narrative symptom or advice language.
var medicalContextKeywords = []string{
	"feel", "feeling", "felt", "dizzy", "nausea", "doctor", "advice", "advise",
	"recommend", "should i", "is it safe", "safe to", "pregnant", "pregnancy",
	"breastfeeding", "interaction", "side effect", "side effects",
	"symptom", "symptoms", "my child", "my son", "my daughter",
}

var smallTalkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bhow\s+(are|r)\s+(you|u)\b`),
	regexp.MustCompile(`\bwho\s+(are|r)\s+(you|u)\b`),
}

// Route classifies a normalized message. The checks run in a fixed order and the first
// one that applies decides; medical context beats transactional keyword counts.
func Route(text string) Decision {
	normalized := strings.TrimSpace(strings.ToLower(text))
	decision := Decision{
		Pharmacy: count(normalized, pharmacyKeywords),
		Health:   count(normalized, healthKeywords),
		Medical:  count(normalized, medicalContextKeywords),
	}

	switch {
	case similarity.ContainsAnyWord(normalized, smallTalkKeywords) || matchesAny(normalized, smallTalkPatterns):
		decision.Intent, decision.Reason = SmallTalk, "small talk"
	case decision.Medical > 0:
		decision.Intent, decision.Reason = Health, "medical context"
	case decision.Health > decision.Pharmacy:
		decision.Intent, decision.Reason = Health, "health keywords"
	case decision.Pharmacy > 0:
		decision.Intent, decision.Reason = Pharmacy, "pharmacy keywords"
	case strings.Contains(normalized, "?") && len(strings.Fields(normalized)) > 3:
		decision.Intent, decision.Reason = Health, "open question"
	default:
		decision.Intent, decision.Reason = Pharmacy, "default"
	}
	return decision
}

func count(text string, keywords []string) int {
	score := 0
	for _, keyword := range keywords {
		if similarity.ContainsWord(text, keyword) {
			score++
		}
	}
	return score
}

func matchesAny(text string, patterns []*regexp.Regexp) bool {
	for _, pattern := range patterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}
