// Package main provides the onionwatch CLI.
//
// onionwatch visits Tor hidden services, classifies their content by threat
// category, extracts cryptocurrency wallets, detects their technology stack
// and keeps re-visiting them on a risk-based schedule.
//
// Usage:
//
//	onionwatch scan <onion-url>...
//	onionwatch crawl --limit 50
//	onionwatch serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
