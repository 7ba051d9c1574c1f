// Package crawler extracts crawl material from a fetched hidden-service
// page: the .onion links it points to, its title and a short content hash.
//
// Link discovery is passive. ExtractOnionLinks only reports addresses; the
// frontier package decides what is visited and when.
//
// # Usage
//
//	links := crawler.ExtractOnionLinks(body, finalURL)
//	title := crawler.ExtractTitle(body)
//	hash := crawler.ContentHash([]byte(body))
package crawler
