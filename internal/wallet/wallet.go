package wallet

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nao1215/onionwatch/internal/model"
)

// Coin tickers.
const (
	CoinBTC = "BTC"
	CoinXMR = "XMR"
	CoinETH = "ETH"
	CoinLTC = "LTC"
)

// Coins lists the supported tickers in summary order.
var Coins = []string{CoinBTC, CoinXMR, CoinETH, CoinLTC}

// SummaryNone is the summary of a page without addresses.
const SummaryNone = "none"

// pattern is one address format of a coin.
type pattern struct {
	coin  string
	kind  string
	re    *regexp.Regexp
	lower bool
}

// patterns are evaluated in order; the order fixes the output order.
var patterns = []pattern{
	{CoinBTC, "P2PKH", regexp.MustCompile(`\b1[a-km-zA-HJ-NP-Z1-9]{25,34}\b`), false},
	{CoinBTC, "P2SH", regexp.MustCompile(`\b3[a-km-zA-HJ-NP-Z1-9]{25,34}\b`), false},
	{CoinBTC, "Bech32", regexp.MustCompile(`(?i)\bbc1[a-z0-9]{6,90}\b`), true},
	{CoinXMR, "standard", regexp.MustCompile(`\b4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`), false},
	{CoinXMR, "subaddress", regexp.MustCompile(`\b8[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`), false},
	{CoinETH, "EIP-55", regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`), false},
	{CoinLTC, "legacy", regexp.MustCompile(`\b[LM][a-km-zA-HJ-NP-Z1-9]{26,33}\b`), false},
	{CoinLTC, "Bech32", regexp.MustCompile(`(?i)\bltc1[a-z0-9]{6,90}\b`), true},
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// Extract finds cryptocurrency addresses in text. HTML tags are replaced
// with spaces first so that markup cannot glue an address to its
// neighbours. Matching is purely syntactic; no checksum is verified.
//
// Addresses are deduplicated per coin by exact value after Bech32 forms are
// lower-cased. Coins with no match are absent from the result, which is
// never nil.
func Extract(text string) model.Wallets {
	clean := tagPattern.ReplaceAllString(text, " ")

	out := make(model.Wallets)
	seen := make(map[string]map[string]struct{})
	for _, p := range patterns {
		for _, addr := range p.re.FindAllString(clean, -1) {
			if p.lower {
				addr = strings.ToLower(addr)
			}
			if seen[p.coin] == nil {
				seen[p.coin] = make(map[string]struct{})
			}
			if _, dup := seen[p.coin][addr]; dup {
				continue
			}
			seen[p.coin][addr] = struct{}{}
			out[p.coin] = append(out[p.coin], model.WalletAddress{
				Coin:    p.coin,
				Address: addr,
				Type:    p.kind,
			})
		}
	}
	return out
}

// Summary renders per-coin counts such as "BTC:1 ETH:2", or "none".
func Summary(w model.Wallets) string {
	parts := make([]string, 0, len(Coins))
	for _, coin := range Coins {
		if n := len(w[coin]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s:%d", coin, n))
		}
	}
	if len(parts) == 0 {
		return SummaryNone
	}
	return strings.Join(parts, " ")
}

// ExplorerURL returns a block explorer link for the address, or "" for an
// unsupported coin.
func ExplorerURL(coin, address string) string {
	switch strings.ToUpper(coin) {
	case CoinBTC:
		return "https://mempool.space/address/" + address
	case CoinXMR:
		return "https://xmrchain.net/search?value=" + address
	case CoinETH:
		return "https://etherscan.io/address/" + address
	case CoinLTC:
		return "https://litecoinspace.org/address/" + address
	}
	return ""
}
