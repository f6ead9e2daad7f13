// Package alias maps brand names, slang and symptoms onto catalog search terms.
package alias

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps a lowercase term to its canonical search term.
type Table struct {
	entries map[string]string
	keys    []string
}

var defaults = map[string]string{
	// brands
	"panadol":  "paracetamol",
	"tylenol":  "paracetamol",
	"calpol":   "paracetamol",
	"advil":    "ibuprofen",
	"brufen":   "ibuprofen",
	"nurofen":  "ibuprofen",
	"motrin":   "ibuprofen",
	"disprin":  "aspirin",
	"zyrtec":   "cetirizine",
	"reactine": "cetirizine",
	"amoxil":   "amoxicillin",
	"redoxon":  "vitamin c",
	// generic names
	"acetaminophen": "paracetamol",
	// slang
	"painkiller":  "pain",
	"painkillers": "pain",
	"antibiotic":  "antibiotic",
	"vitc":        "vitamin c",
	// symptoms
	"headache":    "headache",
	"migraine":    "headache",
	"toothache":   "toothache",
	"fever":       "fever",
	"temperature": "fever",
	"allergy":     "allergy",
	"allergies":   "allergy",
	"hayfever":    "hay fever",
	"throat":      "sore throat",
	"congestion":  "blocked nose",
	"blocked":     "blocked nose",
	"stuffy":      "blocked nose",
	"infection":   "infections",
}

// Default returns the built-in table.
func Default() *Table {
	return New(defaults)
}

// New builds a table from entries; keys and values are lowercased.
func New(entries map[string]string) *Table {
	t := &Table{entries: make(map[string]string, len(entries))}
	for k, v := range entries {
		t.set(k, v)
	}
	t.reindex()
	return t
}

func (t *Table) set(key, value string) {
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.ToLower(strings.TrimSpace(value))
	if key == "" || value == "" {
		return
	}
	t.entries[key] = value
}

// keys are kept sorted so fuzzy lookups are deterministic.
func (t *Table) reindex() {
	t.keys = t.keys[:0]
	for k := range t.entries {
		t.keys = append(t.keys, k)
	}
	sort.Strings(t.keys)
}

// Lookup returns the canonical term for an exact key.
func (t *Table) Lookup(term string) (string, bool) {
	v, ok := t.entries[strings.ToLower(term)]
	return v, ok
}

// Keys returns the sorted alias keys.
func (t *Table) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Len reports the number of aliases.
func (t *Table) Len() int {
	return len(t.entries)
}

type fileFormat struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadFile merges aliases from a YAML file of the form `aliases: {term: canonical}`
// on top of the built-in table.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}

	var doc fileFormat
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse alias file %s: %w", path, err)
	}

	t := Default()
	for k, v := range doc.Aliases {
		t.set(k, v)
	}
	t.reindex()
	return t, nil
}
