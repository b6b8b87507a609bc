package catalog

const (
	newObservationPlaceholderConstant    = "New Observation"
	newRiskPlaceholderConstant           = "New Risk"
	newRecommendationPlaceholderConstant = "New Recommandation"
	defaultPhonePrefixConstant           = "+33"
)

// DefaultRecord returns the blank record inserted when the editor creates a new
// entry without supplying fields.
func DefaultRecord(collection Collection) Record {
	switch collection {
	case CollectionVulnerabilities:
		return Record{
			"category":         "",
			"sub_category":     "",
			"name":             "",
			"labelNeg":         "",
			"labelPos":         "",
			"observNeg":        "",
			"observNegHistory": []any{newObservationPlaceholderConstant},
			"observPos":        "",
			"observPosHistory": []any{newObservationPlaceholderConstant},
			"risk":             "",
			"riskHistory":      []any{newRiskPlaceholderConstant},
			"reco":             "",
			"recoHistory":      []any{newRecommendationPlaceholderConstant},
			"script":           "",
			"regexVuln":        "",
			"regexNotVuln":     "",
			"AV":               "Network",
			"AC":               "Low",
			"PR":               "None",
			"UI":               "Required",
			"S":                "Unchanged",
			"C":                "None",
			"I":                "None",
			"A":                "None",
		}
	case CollectionAuditors, CollectionClients:
		return Record{
			"full_name": "",
			"phone":     defaultPhonePrefixConstant,
			"email":     "",
			"role":      "",
		}
	default:
		return Record{}
	}
}
