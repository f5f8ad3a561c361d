package query

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

//go:embed synonyms.json
var embeddedSynonyms []byte

// Synonyms maps a normalized query to a canonical alternate phrase.
// Keys must already be in Normalize form. Extend the data, not the code:
// new aliases go into synonyms.json (or the file named by
// SYNONYMS_CONFIG_PATH), no code change needed.
type Synonyms struct {
	table map[string]string
}

// NewSynonyms builds a table from an in-memory mapping.
func NewSynonyms(table map[string]string) *Synonyms {
	if table == nil {
		table = map[string]string{}
	}
	return &Synonyms{table: table}
}

// Lookup returns the canonical phrase for a normalized query. The returned
// phrase is raw data; callers re-normalize it before use.
func (s *Synonyms) Lookup(normalized string) (string, bool) {
	alt, ok := s.table[normalized]
	return alt, ok
}

// Len reports the number of entries, mostly for startup logging.
func (s *Synonyms) Len() int {
	return len(s.table)
}

// LoadSynonyms loads the synonym table in the following order:
// 1. External file named by SYNONYMS_CONFIG_PATH, if set
// 2. Embedded synonyms.json
// 3. Empty table (if the embedded data is somehow unparseable)
func LoadSynonyms() *Synonyms {
	if path := os.Getenv("SYNONYMS_CONFIG_PATH"); path != "" {
		if syn, err := loadSynonymsFile(path); err == nil {
			slog.Info("Loaded synonyms from external file", "path", path, "entries", syn.Len())
			return syn
		} else {
			slog.Warn("Failed to load external synonyms, falling back to embedded table", "path", path, "error", err)
		}
	}

	syn, err := parseSynonyms(embeddedSynonyms)
	if err != nil {
		slog.Warn("Embedded synonyms failed to parse, using empty table", "error", err)
		return &Synonyms{table: map[string]string{}}
	}
	return syn
}

func loadSynonymsFile(path string) (*Synonyms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonym file: %w", err)
	}
	return parseSynonyms(data)
}

func parseSynonyms(data []byte) (*Synonyms, error) {
	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse synonym JSON: %w", err)
	}
	return &Synonyms{table: table}, nil
}
