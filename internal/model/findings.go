package model

import "time"

// TechSignature is a detected technology. (Name, Category) is its identity.
type TechSignature struct {
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Version    string  `json:"version,omitempty"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Key returns the deduplication identity of the signature.
func (t TechSignature) Key() string {
	return t.Name + "\x00" + t.Category
}

// WalletAddress is a cryptocurrency address found on a page.
type WalletAddress struct {
	Coin    string `json:"coin"`
	Address string `json:"address"`
	Type    string `json:"type"`
}

// Wallets maps a coin ticker to the distinct addresses found for it.
type Wallets map[string][]WalletAddress

// Count returns the number of addresses across all coins.
func (w Wallets) Count() int {
	n := 0
	for _, list := range w {
		n += len(list)
	}
	return n
}

// Flatten returns every address in coin order.
func (w Wallets) Flatten(coinOrder []string) []WalletAddress {
	out := make([]WalletAddress, 0, w.Count())
	seen := make(map[string]bool, len(w))
	for _, coin := range coinOrder {
		out = append(out, w[coin]...)
		seen[coin] = true
	}
	for coin, list := range w {
		if !seen[coin] {
			out = append(out, list...)
		}
	}
	return out
}

// DiscoveredLink is a frontier entry. URL is globally unique.
type DiscoveredLink struct {
	ID           int64     `json:"id"`
	URL          string    `json:"url"`
	Domain       string    `json:"domain"`
	SourceID     int64     `json:"source_id"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Scanned      bool      `json:"scanned"`
}

// ExternalIntel is the aggregated third-party reputation of a target.
// One row exists per target and is replaced wholesale on every lookup.
type ExternalIntel struct {
	URLFound     bool     `json:"url_found"`
	URLStatus    string   `json:"url_status,omitempty"`
	URLThreat    string   `json:"url_threat,omitempty"`
	URLTags      []string `json:"url_tags,omitempty"`
	HostFound    bool     `json:"host_found"`
	HostURLCount int      `json:"host_url_count"`

	EngineFound bool `json:"engine_found"`
	Malicious   int  `json:"malicious_count"`
	Suspicious  int  `json:"suspicious_count"`
	Harmless    int  `json:"harmless_count"`

	MaliciousFlag  bool         `json:"malicious"`
	SuspiciousFlag bool         `json:"suspicious"`
	ExternalRisk   ExternalRisk `json:"external_risk"`
	Sources        []string     `json:"sources,omitempty"`
	CheckedAt      time.Time    `json:"checked_at"`
}
