// Package intel looks targets up in third-party reputation services and
// folds the answers into one external risk tier.
//
// URLhaus (abuse.ch) needs no credentials and is always consulted for both
// the URL and the host. VirusTotal is consulted only when an API key is
// configured, and its calls are serialized through a rate limiter sized for
// the free tier.
//
// A failed lookup never fails the aggregation: it is treated as absent and
// the remaining answers decide. When every lookup is absent the tier is
// unknown.
package intel
