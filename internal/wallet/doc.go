// Package wallet extracts Bitcoin, Monero, Ethereum and Litecoin addresses
// from page content, for financial tracing of hidden services.
package wallet
