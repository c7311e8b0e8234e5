package dispatcher

import (
	"strings"
	"unicode"
)

// intents is checked in order, the first intent with a matching keyword wins.
var intents = []struct {
	name     string
	keywords []string
}{
	{"pricing_question", []string{"price", "preço", "valor"}},
	{"purchase_intent", []string{"comprar", "buy", "quero"}},
	{"cancellation_request", []string{"cancelar", "cancel", "reembolso", "refund"}},
	{"support_request", []string{"ajuda", "help", "suporte", "support"}},
}

// matchIntent returns the intent whose keyword appears as a whole word in text.
func matchIntent(text string) (string, bool) {
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[w] = struct{}{}
	}

	for _, in := range intents {
		for _, kw := range in.keywords {
			if _, ok := words[kw]; ok {
				return in.name, true
			}
		}
	}

	return "", false
}
