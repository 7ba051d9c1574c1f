package threat

import "strings"

// LanguageNone is returned when no marker word is found.
const LanguageNone = "none"

// languageWindow is the number of leading characters inspected.
const languageWindow = 5000

type languageMarkers struct {
	lang  string
	words []string
}

// languageChecks is evaluated in order; earlier entries win ties.
var languageChecks = []languageMarkers{
	{"es", []string{"comprar", "precio", "envío", "tienda"}},
	{"ru", []string{"купить", "цена", "магазин"}},
	{"de", []string{"kaufen", "preis", "lieferung"}},
	{"fr", []string{"acheter", "prix", "boutique"}},
	{"en", []string{"buy", "price", "shop", "vendor"}},
}

// DetectLanguage returns a coarse language hint for a page, based on
// storefront marker words in its first 5000 characters.
func DetectLanguage(html string) string {
	window := html
	if runes := []rune(html); len(runes) > languageWindow {
		window = string(runes[:languageWindow])
	}
	window = strings.ToLower(window)

	best, bestScore := LanguageNone, 0
	for _, check := range languageChecks {
		score := 0
		for _, word := range check.words {
			if strings.Contains(window, word) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = check.lang, score
		}
	}
	return best
}
