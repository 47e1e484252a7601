package nlp

import (
	"sort"
	"strings"
	"unicode"

	"FinFuse/pkg/config"
)

// EntityExtractor maps instrument symbols and their configured aliases to
// canonical symbols. Matching is case-insensitive on token boundaries, so
// "Apple" in a headline resolves to "AAPL" without tripping on substrings.
type EntityExtractor struct {
	aliases map[string]string // lowercase alias -> canonical symbol
}

func NewEntityExtractor(instruments []config.Instrument) *EntityExtractor {
	aliases := make(map[string]string)
	for _, in := range instruments {
		aliases[strings.ToLower(in.Symbol)] = in.Symbol
		for _, a := range in.Aliases {
			aliases[strings.ToLower(a)] = in.Symbol
		}
	}
	return &EntityExtractor{aliases: aliases}
}

// Extract returns the canonical symbols mentioned in text, sorted and
// de-duplicated. Multi-word aliases are matched against the token stream.
func (e *EntityExtractor) Extract(text string) []string {
	tokens := tokenize(text)
	found := make(map[string]struct{})
	// Aliases are short (1-3 words); try windows up to 3 tokens.
	for i := range tokens {
		for w := 1; w <= 3 && i+w <= len(tokens); w++ {
			key := strings.Join(tokens[i:i+w], " ")
			if sym, ok := e.aliases[key]; ok {
				found[sym] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(found))
	for sym := range found {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
