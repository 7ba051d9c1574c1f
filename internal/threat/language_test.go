package threat

import (
	"strings"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		html string
		want string
	}{
		{"spanish storefront", "<h1>Tienda</h1> Comprar ahora, precio bajo", "es"},
		{"russian storefront", "<p>Купить сейчас, цена договорная</p>", "ru"},
		{"german storefront", "Jetzt kaufen! Preis inkl. Lieferung", "de"},
		{"french storefront", "Acheter en boutique", "fr"},
		{"english storefront", "Buy from a trusted vendor", "en"},
		{"tie goes to earlier check", "precio / price", "es"},
		{"no markers", "hello world", LanguageNone},
		{"empty", "", LanguageNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectLanguage(tc.html); got != tc.want {
				t.Errorf("DetectLanguage(%q) = %q, want %q", tc.html, got, tc.want)
			}
		})
	}
}

func TestDetectLanguageWindow(t *testing.T) {
	t.Parallel()

	html := strings.Repeat("x", 5000) + " comprar precio"
	if got := DetectLanguage(html); got != LanguageNone {
		t.Errorf("markers beyond the window must be ignored, got %q", got)
	}

	html = strings.Repeat("é", 4990) + " comprar"
	if got := DetectLanguage(html); got != "es" {
		t.Errorf("window counts characters, not bytes: got %q", got)
	}
}
