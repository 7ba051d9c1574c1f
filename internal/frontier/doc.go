// Package frontier maintains the queue of discovered .onion links that have
// not been visited yet.
//
// Links are recorded once per URL, whichever target found them first, and
// pulled in discovery order. Marking a link scanned removes it from the
// pending queue but keeps it in the store.
package frontier
