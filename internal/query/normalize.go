// Package query turns free-text search phrases into the canonical forms
// used for scraping, synonym lookup, and cache keys.
package query

import "strings"

// foldTable maps locale-specific letters to their ASCII replacements.
// Order matters: the first entry for a rune wins, so the generic diacritic
// folds (ü→u, á→a, …) take precedence over the umlaut digraph rules that
// follow them. Normalize must stay idempotent and the precedence auditable.
var foldTable = []struct {
	from rune
	to   string
}{
	// Danish
	{'æ', "ae"},
	{'ø', "oe"},
	{'å', "aa"},
	// Common Latin diacritics
	{'à', "a"}, {'á', "a"}, {'â', "a"}, {'ã', "a"},
	{'è', "e"}, {'é', "e"}, {'ê', "e"}, {'ë', "e"},
	{'ì', "i"}, {'í', "i"}, {'î', "i"}, {'ï', "i"},
	{'ò', "o"}, {'ó', "o"}, {'ô', "o"}, {'õ', "o"},
	{'ù', "u"}, {'ú', "u"}, {'û', "u"}, {'ü', "u"},
	{'ý', "y"}, {'ÿ', "y"},
	{'ñ', "n"},
	{'ç', "c"},
	{'ß', "ss"},
	// German umlauts not already claimed above
	{'ö', "oe"},
	{'ä', "ae"},
}

var foldMap = buildFoldMap()

func buildFoldMap() map[rune]string {
	m := make(map[rune]string, len(foldTable))
	for _, e := range foldTable {
		if _, dup := m[e.from]; !dup {
			m[e.from] = e.to
		}
	}
	return m
}

// Normalize folds a search phrase into its canonical ASCII form: lowercase,
// locale letters folded per foldTable, everything outside [a-z0-9- ] dropped
// (no locale letters survive; they all fold or vanish), whitespace
// runs collapsed, trimmed. Deterministic and idempotent; never fails, may
// return the empty string.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))

	var b strings.Builder
	b.Grow(len(lowered))
	pendingSpace := false
	for _, r := range lowered {
		if folded, ok := foldMap[r]; ok {
			flushSpace(&b, &pendingSpace)
			b.WriteString(folded)
			continue
		}
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if b.Len() > 0 {
				pendingSpace = true
			}
		case r == '-' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			flushSpace(&b, &pendingSpace)
			b.WriteRune(r)
		default:
			// dropped
		}
	}
	return b.String()
}

func flushSpace(b *strings.Builder, pending *bool) {
	if *pending {
		b.WriteByte(' ')
		*pending = false
	}
}

// Dehyphenate removes hyphens from an already-normalized phrase and
// re-normalizes, so "re-201" becomes "re201".
func Dehyphenate(normalized string) string {
	return Normalize(strings.ReplaceAll(normalized, "-", ""))
}

// Variants builds the ordered set of query variants tried by the search
// orchestrator: the normalized form first, the dehyphenated form when it
// differs, then the normalized synonym of either form when one exists.
// The set never contains duplicates, so a synonym that folds back onto an
// earlier variant is not fetched twice.
func Variants(text string, syn *Synonyms) []string {
	base := Normalize(text)
	if base == "" {
		return nil
	}

	variants := []string{base}
	seen := map[string]bool{base: true}

	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}

	dehyphenated := Dehyphenate(base)
	add(dehyphenated)

	if syn != nil {
		for _, form := range []string{base, dehyphenated} {
			if alt, ok := syn.Lookup(form); ok {
				add(Normalize(alt))
			}
		}
	}

	return variants
}
