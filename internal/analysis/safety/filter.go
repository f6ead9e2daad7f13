// Package safety refuses requests that try to get around prescription controls.
package safety

import "regexp"

// RefusalMessage is returned for every blocked request.
const RefusalMessage = "I cannot fulfill requests to obtain prescription-only or controlled medication without a valid prescription. " +
	"Please consult a doctor or speak to our pharmacist for help."

// Verdict is the outcome of a policy check.
type Verdict struct {
	Blocked bool
	Rule    string
	Message string
}

type rule struct {
	name    string
	pattern *regexp.Regexp
}

// rules are evaluated in order; the first match blocks.
var rules = []rule{
	{"without_prescription", regexp.MustCompile(`\bwithout\s+(a\s+|any\s+|my\s+)?(valid\s+)?(prescription|prescriptions|rx|script|scripts)\b`)},
	{"no_prescription", regexp.MustCompile(`\bno\s+(prescription|rx|script)\b`)},
	{"missing_prescription", regexp.MustCompile(`\b(don'?t|do\s+not|dont)\s+have\s+(a\s+|any\s+|my\s+)?(prescription|rx|script)\b`)},
	{"lost_prescription", regexp.MustCompile(`\blost\s+(my\s+|the\s+)?(prescription|rx|script)\b`)},
	{"fake_prescription", regexp.MustCompile(`\b(fake|forged|forge)\s+(a\s+)?(prescription|rx|script)\b`)},
	{"under_the_table", regexp.MustCompile(`\bunder\s+the\s+(table|counter)\b`)},
	{"illegal", regexp.MustCompile(`\billegal(ly)?\b`)},
	{"overdose", regexp.MustCompile(`\b(overdose|od)\s+on\b|\bhow\s+(much|many)\b.*\bto\s+(die|overdose)\b`)},
}

// Check matches normalized lowercase text against the policy rules.
func Check(text string) Verdict {
	for _, r := range rules {
		if r.pattern.MatchString(text) {
			return Verdict{Blocked: true, Rule: r.name, Message: RefusalMessage}
		}
	}
	return Verdict{}
}
