package tor

import (
	"crypto/ed25519"
	"encoding/base32"
	"errors"
	"strings"
	"testing"
)

// Valid v3 addresses.
const (
	testOnionV3Addr1 = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	testOnionV3Addr2 = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"

	// Last character altered, so the checksum fails.
	badChecksumAddr = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqe.onion"
)

// v3AddressFor encodes an ed25519 public key as a v3 onion hostname.
func v3AddressFor(pub ed25519.PublicKey) string {
	data := make([]byte, 0, 35)
	data = append(data, pub...)
	data = append(data, v3Checksum(pub, onionV3Version)...)
	data = append(data, onionV3Version)
	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix
}

func TestIsValidV3Address(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		address string
		want    bool
	}{
		{"known address", testOnionV3Addr1, true},
		{"second known address", testOnionV3Addr2, true},
		{"generated from key", v3AddressFor(pub), true},
		{"uppercase", strings.ToUpper(strings.TrimSuffix(testOnionV3Addr1, ".onion")) + ".onion", true},
		{"bad checksum", badChecksumAddr, false},
		{"v2 address", "facebookcorewwwi.onion", false},
		{"too long", strings.Repeat("a", 57) + ".onion", false},
		{"invalid base32 digits", strings.Repeat("1", 56) + ".onion", false},
		{"no suffix", strings.TrimSuffix(testOnionV3Addr1, ".onion"), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsValidV3Address(tt.address); got != tt.want {
				t.Errorf("IsValidV3Address(%q) = %v, want %v", tt.address, got, tt.want)
			}
		})
	}
}

func TestNormalizeTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"bare v3 host", testOnionV3Addr1, "http://" + testOnionV3Addr1, nil},
		{"keeps https", "https://" + testOnionV3Addr2 + "/shop", "https://" + testOnionV3Addr2 + "/shop", nil},
		{"trims space", "  " + testOnionV3Addr1 + "/a \n", "http://" + testOnionV3Addr1 + "/a", nil},
		{"bad checksum still normalized", badChecksumAddr, "http://" + badChecksumAddr, ErrInvalidChecksum},
		{"v2 shape not checked", "facebookcorewwwi.onion", "http://facebookcorewwwi.onion", nil},
		{"clearnet host", "example.com", "http://example.com", nil},
		{"blank", "   ", "", ErrEmptyTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeTarget(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NormalizeTarget(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLooksLikeV3(t *testing.T) {
	t.Parallel()

	if !LooksLikeV3(badChecksumAddr) {
		t.Error("shape check must ignore the checksum")
	}
	if LooksLikeV3("facebookcorewwwi.onion") {
		t.Error("v2 hostnames are not v3-shaped")
	}
}
