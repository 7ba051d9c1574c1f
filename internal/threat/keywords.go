package threat

import "github.com/nao1215/onionwatch/internal/model"

// Keyword is one entry of the curated threat vocabulary.
type Keyword struct {
	Term     string
	Category string
	Severity model.Severity
}

// Threat categories.
const (
	CategoryExploitation = "exploitation"
	CategoryViolence     = "violence"
	CategoryWeapons      = "weapons"
	CategoryDrugs        = "drugs"
	CategoryFraud        = "fraud"
	CategoryCybercrime   = "cybercrime"
	CategoryCounterfeit  = "counterfeit"
	CategoryOpsec        = "opsec"
	CategoryMarket       = "market"
)

// DefaultKeywords returns a copy of the built-in keyword table.
// Table order is the order in which matches are reported.
func DefaultKeywords() []Keyword {
	out := make([]Keyword, len(defaultKeywords))
	copy(out, defaultKeywords)
	return out
}

var defaultKeywords = []Keyword{
	// critical
	{"child", CategoryExploitation, model.SeverityCritical},
	{"minor", CategoryExploitation, model.SeverityCritical},
	{"underage", CategoryExploitation, model.SeverityCritical},
	{"loli", CategoryExploitation, model.SeverityCritical},
	{"preteen", CategoryExploitation, model.SeverityCritical},
	{"jailbait", CategoryExploitation, model.SeverityCritical},
	{"hitman", CategoryViolence, model.SeverityCritical},
	{"murder for hire", CategoryViolence, model.SeverityCritical},
	{"kill service", CategoryViolence, model.SeverityCritical},
	{"assassination", CategoryViolence, model.SeverityCritical},
	{"ricin", CategoryWeapons, model.SeverityCritical},
	{"sarin", CategoryWeapons, model.SeverityCritical},
	{"anthrax", CategoryWeapons, model.SeverityCritical},
	{"dirty bomb", CategoryWeapons, model.SeverityCritical},
	{"ied", CategoryWeapons, model.SeverityCritical},
	{"explosives", CategoryWeapons, model.SeverityCritical},

	// high
	{"cocaine", CategoryDrugs, model.SeverityHigh},
	{"heroin", CategoryDrugs, model.SeverityHigh},
	{"fentanyl", CategoryDrugs, model.SeverityHigh},
	{"methamphetamine", CategoryDrugs, model.SeverityHigh},
	{"meth", CategoryDrugs, model.SeverityHigh},
	{"mdma", CategoryDrugs, model.SeverityHigh},
	{"ecstasy", CategoryDrugs, model.SeverityHigh},
	{"ketamine", CategoryDrugs, model.SeverityHigh},
	{"lsd", CategoryDrugs, model.SeverityHigh},
	{"xanax", CategoryDrugs, model.SeverityHigh},
	{"oxycodone", CategoryDrugs, model.SeverityHigh},
	{"drug market", CategoryDrugs, model.SeverityHigh},
	{"drug store", CategoryDrugs, model.SeverityHigh},
	{"narcotics", CategoryDrugs, model.SeverityHigh},
	{"firearms", CategoryWeapons, model.SeverityHigh},
	{"handgun", CategoryWeapons, model.SeverityHigh},
	{"assault rifle", CategoryWeapons, model.SeverityHigh},
	{"glock", CategoryWeapons, model.SeverityHigh},
	{"silencer", CategoryWeapons, model.SeverityHigh},
	{"suppressor", CategoryWeapons, model.SeverityHigh},
	{"gun shop", CategoryWeapons, model.SeverityHigh},
	{"ammo", CategoryWeapons, model.SeverityHigh},
	{"carding", CategoryFraud, model.SeverityHigh},
	{"stolen cards", CategoryFraud, model.SeverityHigh},
	{"credit card dump", CategoryFraud, model.SeverityHigh},
	{"fullz", CategoryFraud, model.SeverityHigh},
	{"bank logs", CategoryFraud, model.SeverityHigh},
	{"money laundering", CategoryFraud, model.SeverityHigh},
	{"money mule", CategoryFraud, model.SeverityHigh},
	{"bitcoin mixer", CategoryFraud, model.SeverityHigh},
	{"crypto mixer", CategoryFraud, model.SeverityHigh},
	{"tumbler", CategoryFraud, model.SeverityHigh},
	{"ransomware", CategoryCybercrime, model.SeverityHigh},
	{"malware", CategoryCybercrime, model.SeverityHigh},
	{"botnet", CategoryCybercrime, model.SeverityHigh},
	{"ddos for hire", CategoryCybercrime, model.SeverityHigh},
	{"stresser", CategoryCybercrime, model.SeverityHigh},
	{"keylogger", CategoryCybercrime, model.SeverityHigh},
	{"rat for sale", CategoryCybercrime, model.SeverityHigh},
	{"exploit kit", CategoryCybercrime, model.SeverityHigh},
	{"zero-day", CategoryCybercrime, model.SeverityHigh},
	{"database dump", CategoryCybercrime, model.SeverityHigh},
	{"human trafficking", CategoryExploitation, model.SeverityHigh},
	{"escort service", CategoryExploitation, model.SeverityHigh},
	{"sex work", CategoryExploitation, model.SeverityHigh},

	// medium
	{"fake id", CategoryCounterfeit, model.SeverityMedium},
	{"fake passport", CategoryCounterfeit, model.SeverityMedium},
	{"counterfeit", CategoryCounterfeit, model.SeverityMedium},
	{"forged documents", CategoryCounterfeit, model.SeverityMedium},
	{"fake diploma", CategoryCounterfeit, model.SeverityMedium},
	{"ssn", CategoryCounterfeit, model.SeverityMedium},
	{"phishing", CategoryFraud, model.SeverityMedium},
	{"scam", CategoryFraud, model.SeverityMedium},
	{"dumps", CategoryFraud, model.SeverityMedium},
	{"paypal logs", CategoryFraud, model.SeverityMedium},
	{"hacked accounts", CategoryFraud, model.SeverityMedium},
	{"stealer", CategoryCybercrime, model.SeverityMedium},
	{"spyware", CategoryCybercrime, model.SeverityMedium},
	{"crypter", CategoryCybercrime, model.SeverityMedium},
	{"hacking service", CategoryCybercrime, model.SeverityMedium},
	{"cannabis", CategoryDrugs, model.SeverityMedium},
	{"weed", CategoryDrugs, model.SeverityMedium},
	{"marijuana", CategoryDrugs, model.SeverityMedium},
	{"dispensary", CategoryDrugs, model.SeverityMedium},

	// low
	{"anonymous", CategoryOpsec, model.SeverityLow},
	{"darknet", CategoryOpsec, model.SeverityLow},
	{"dark web", CategoryOpsec, model.SeverityLow},
	{"marketplace", CategoryMarket, model.SeverityLow},
	{"vendor", CategoryMarket, model.SeverityLow},
	{"pgp", CategoryOpsec, model.SeverityLow},
	{"monero", CategoryOpsec, model.SeverityLow},
	{"escrow", CategoryMarket, model.SeverityLow},
	{"autoshop", CategoryMarket, model.SeverityLow},
}
