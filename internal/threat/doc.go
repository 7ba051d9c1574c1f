// Package threat classifies hidden-service content against a curated table of
// criminal-activity keywords.
//
// Each keyword is matched case-insensitively on word boundaries, so "meth"
// does not match inside "methodology". The verdict is deterministic: the
// same text always produces the same matches, score and risk level.
//
// Scoring:
//
//	threat_score = sum(weight(severity) * min(count, 10))
//	weights      = critical 40, high 15, medium 5, low 1
//	risk_score   = round(min(1, threat_score/200), 4)
//
// The risk level is the first rule that holds, evaluated top-down:
//
//	critical  any critical keyword, or score >= 100
//	high      any high keyword, or score >= 40
//	medium    any medium keyword, or score >= 10
//	low       any match at all
//	clean     nothing matched
//
// A page carrying only low-severity vocabulary in volume can therefore
// reach medium through the score threshold alone.
package threat
