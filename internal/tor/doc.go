// Package tor reaches hidden services through a Tor SOCKS5 proxy.
//
// A Client wraps the proxy address and hands out HTTP clients that dial
// through it. EmbeddedTor starts a private Tor daemon via tornago when no
// external proxy is configured. Fetcher performs the single page fetch a
// visit needs, with the browser-like headers, retries on transient server
// errors and per-site cookies and headers.
//
// NormalizeTarget prepares user input for a visit and checks the checksum
// of v3 onion hostnames.
package tor
