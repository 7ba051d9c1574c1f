package techdetect

import (
	"net/http"

	"github.com/nao1215/onionwatch/internal/model"
)

// Merge folds signature lists into one, keyed by (name, category).
//
// For each key the entry with the strictly highest confidence wins; on a
// tie the first one seen is kept. Whichever entry survives adopts the
// version of a duplicate when it has none of its own. Keys keep the order in
// which they were first seen.
func Merge(lists ...[]model.TechSignature) []model.TechSignature {
	out := make([]model.TechSignature, 0)
	index := make(map[string]int)

	for _, list := range lists {
		for _, sig := range list {
			key := sig.Key()
			i, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, sig)
				continue
			}

			kept := &out[i]
			if sig.Confidence > kept.Confidence {
				if sig.Version == "" {
					sig.Version = kept.Version
				}
				*kept = sig
				continue
			}
			if kept.Version == "" && sig.Version != "" {
				kept.Version = sig.Version
			}
		}
	}
	return out
}

// Detect runs both sub-detectors and merges their proposals, header
// signatures first.
func Detect(h http.Header, html string) []model.TechSignature {
	return Merge(DetectFromHeaders(h), DetectFromHTML(html))
}
