// Package knowledge holds the assistant's static keyword tables: emergency
// phrases, greetings, symptom and medication advice, and general topics.
// Tables are built once at startup and are read-only afterwards.
package knowledge

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed knowledge.yaml
var defaultDocument []byte

type MatchMode string

const (
	MatchWord      MatchMode = "word"
	MatchSubstring MatchMode = "substring"
)

// Entry pairs a lowercase phrase with the reply it triggers.
type Entry struct {
	Phrase string `yaml:"phrase"`
	Reply  string `yaml:"reply"`
}

// Table is an ordered keyword table. Phrases listed under `phrases` share
// the table-level reply; `entries` carry their own.
type Table struct {
	Match   MatchMode `yaml:"match"`
	Reply   string    `yaml:"reply"`
	Phrases []string  `yaml:"phrases"`
	Entries []Entry   `yaml:"entries"`
}

// Lookup returns the first entry, in table order, whose phrase matches the
// already lowercased text.
func (t Table) Lookup(text string) (Entry, bool) {
	contains := ContainsWord
	if t.Match == MatchSubstring {
		contains = ContainsSubstring
	}
	for _, e := range t.Entries {
		if contains(text, e.Phrase) {
			return e, true
		}
	}
	return Entry{}, false
}

func (t *Table) normalize(name string) error {
	switch t.Match {
	case "":
		t.Match = MatchWord
	case MatchWord, MatchSubstring:
	default:
		return fmt.Errorf("%s: unknown match mode %q", name, t.Match)
	}

	entries := make([]Entry, 0, len(t.Phrases)+len(t.Entries))
	for _, p := range t.Phrases {
		entries = append(entries, Entry{Phrase: p, Reply: t.Reply})
	}
	entries = append(entries, t.Entries...)

	for i := range entries {
		entries[i].Phrase = strings.ToLower(strings.TrimSpace(entries[i].Phrase))
		if entries[i].Phrase == "" {
			return fmt.Errorf("%s: entry %d has an empty phrase", name, i)
		}
		if strings.TrimSpace(entries[i].Reply) == "" {
			return fmt.Errorf("%s: %q has no reply", name, entries[i].Phrase)
		}
	}
	t.Entries = entries
	t.Phrases = nil
	return nil
}

// Base is the full set of tables plus the fixed assistant strings.
type Base struct {
	Name       string `yaml:"name"`
	Welcome    string `yaml:"welcome"`
	Disclaimer string `yaml:"disclaimer"`
	Apology    string `yaml:"apology"`

	Emergency   Table `yaml:"emergency"`
	Greetings   Table `yaml:"greetings"`
	Symptoms    Table `yaml:"symptoms"`
	Medications Table `yaml:"medications"`
	Topics      Table `yaml:"topics"`
}

// Parse decodes and validates a knowledge document.
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode knowledge: %w", err)
	}
	if strings.TrimSpace(b.Apology) == "" {
		return nil, fmt.Errorf("knowledge: apology is required")
	}

	tables := []struct {
		name  string
		table *Table
	}{
		{"emergency", &b.Emergency},
		{"greetings", &b.Greetings},
		{"symptoms", &b.Symptoms},
		{"medications", &b.Medications},
		{"topics", &b.Topics},
	}
	for _, t := range tables {
		if err := t.table.normalize(t.name); err != nil {
			return nil, fmt.Errorf("knowledge: %w", err)
		}
	}
	return &b, nil
}

// Default returns the tables compiled into the binary.
func Default() *Base {
	b, err := Parse(defaultDocument)
	if err != nil {
		panic(err)
	}
	return b
}

// Load reads tables from path, or returns Default when path is empty.
func Load(path string) (*Base, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge file: %w", err)
	}
	return Parse(data)
}
