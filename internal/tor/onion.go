package tor

import (
	"encoding/base32"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// OnionSuffix is the top-level domain of hidden services.
const OnionSuffix = ".onion"

// onionV3Version is the trailing version byte of a v3 address.
const onionV3Version = 0x03

// onionV3Pattern matches the shape of a v3 hostname: 56 base32 characters.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

var checksumPrefix = []byte(".onion checksum")

// LooksLikeV3 reports whether host has the shape of a v3 onion hostname,
// without checking the checksum.
func LooksLikeV3(host string) bool {
	return onionV3Pattern.MatchString(strings.ToLower(host))
}

// IsValidV3Address reports whether address is a v3 onion hostname whose
// embedded checksum and version verify.
func IsValidV3Address(address string) bool {
	address = strings.ToLower(address)
	if !onionV3Pattern.MatchString(address) {
		return false
	}
	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(address, OnionSuffix)))
	if err != nil || len(decoded) != 35 {
		return false
	}
	// pubkey (32) | checksum (2) | version (1)
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionV3Version {
		return false
	}
	want := v3Checksum(pubkey, version)
	return checksum[0] == want[0] && checksum[1] == want[1]
}

// v3Checksum is the first two bytes of SHA3-256(".onion checksum" | pubkey | version).
func v3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}

// NormalizeTarget turns user input into a URL to visit. Input without a
// scheme gets "http://". When the hostname has the shape of a v3 onion
// address but fails its checksum, the normalized URL is still returned
// together with ErrInvalidChecksum so that callers can warn and carry on.
func NormalizeTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", ErrEmptyTarget
	}
	if !strings.HasPrefix(strings.ToLower(target), "http") {
		target = "http://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target, nil
	}
	host := strings.ToLower(u.Hostname())
	if LooksLikeV3(host) && !IsValidV3Address(host) {
		return target, ErrInvalidChecksum
	}
	return target, nil
}
