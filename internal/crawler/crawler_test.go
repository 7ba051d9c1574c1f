package crawler

import (
	"reflect"
	"strings"
	"testing"
)

const (
	addrA  = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	addrB  = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	addrV2 = "expyuzz4wqqyqhjn"
)

// TestExtractOnionLinks tests passive .onion link discovery.
func TestExtractOnionLinks(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		html string
		base string
		want []string
	}{
		{
			name: "https is normalized and base excluded",
			html: `<a href="https://` + addrA + `.onion/x">a</a> <a href="http://` + addrB + `.onion">b</a>`,
			base: "http://" + addrB + ".onion",
			want: []string{"http://" + addrA + ".onion/x"},
		},
		{
			name: "trailing punctuation is trimmed",
			html: `Mirror: http://` + addrA + `.onion/market. Also (http://` + addrB + `.onion/).`,
			want: []string{"http://" + addrA + ".onion/market", "http://" + addrB + ".onion/"},
		},
		{
			name: "scheme-less attributes are synthesized",
			html: `<form action="` + addrA + `.onion/login"></form><img src='` + addrB + `.onion/i.png'>`,
			want: []string{"http://" + addrA + ".onion", "http://" + addrB + ".onion"},
		},
		{
			name: "v2 addresses are recognized",
			html: `see http://` + addrV2 + `.onion/about`,
			want: []string{"http://" + addrV2 + ".onion/about"},
		},
		{
			name: "duplicates collapse across schemes",
			html: `http://` + addrA + `.onion https://` + addrA + `.onion`,
			want: []string{"http://" + addrA + ".onion"},
		},
		{
			name: "clearnet links are ignored",
			html: `<a href="https://example.com/">x</a>`,
			want: []string{},
		},
		{
			name: "invalid characters are not addresses",
			html: `http://` + strings.Repeat("1", 56) + `.onion`,
			want: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ExtractOnionLinks(tc.html, tc.base)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractOnionLinks() = %v, want %v", got, tc.want)
			}
		})
	}

	t.Run("output is sorted", func(t *testing.T) {
		t.Parallel()

		got := ExtractOnionLinks(`http://`+addrB+`.onion http://`+addrA+`.onion`, "")
		want := []string{"http://" + addrA + ".onion", "http://" + addrB + ".onion"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})
}

func TestExtractTitle(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		html string
		want string
	}{
		{"simple", `<html><head><title>Test Page</title></head></html>`, "Test Page"},
		{"whitespace collapsed", "<title>\n  Dark   Market\n\t Home </title>", "Dark Market Home"},
		{"entities decoded", `<title>Tom &amp; Jerry</title>`, "Tom & Jerry"},
		{"missing", `<html><body>no title</body></html>`, ""},
		{"first wins", `<title>one</title><title>two</title>`, "one"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractTitle(tc.html); got != tc.want {
				t.Errorf("ExtractTitle() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	// sha256("") = e3b0c44298fc1c149afbf4c8996fb924...
	if got := ContentHash(nil); got != "e3b0c44298fc1c14" {
		t.Errorf("ContentHash(nil) = %q", got)
	}
	if ContentHash([]byte("a")) == ContentHash([]byte("b")) {
		t.Error("different content must hash differently")
	}
	if len(ContentHash([]byte("page"))) != 16 {
		t.Error("hash must be 16 characters")
	}
}

func TestDomain(t *testing.T) {
	t.Parallel()

	if got := Domain("http://" + addrA + ".onion:8080/path"); got != addrA+".onion:8080" {
		t.Errorf("Domain() = %q", got)
	}
	if got := Domain("::bad"); got != "" {
		t.Errorf("Domain() of a bad URL = %q", got)
	}
}
