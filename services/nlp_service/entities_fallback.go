package nlp_service

import (
	"strings"

	"github.com/serisow/metrodoc/pipeline_type"
)

// Keyword classes for the degraded path when the model server is down.
var fallbackKeywords = map[string][]string{
	"PERSON": {"john", "mary", "smith", "jones", "brown", "davis", "wilson", "miller"},
	"ORG":    {"company", "corp", "inc", "ltd", "organization", "department", "ministry"},
	"GPE":    {"city", "state", "country", "nation", "government", "federal"},
	"MONEY":  {"dollar", "euro", "pound", "rupee", "yen", "$", "€", "£", "₹"},
	"DATE": {"january", "february", "march", "april", "may", "june", "july",
		"august", "september", "october", "november", "december"},
}

// FallbackEntities does keyword-class matching over whitespace-split words.
// Offsets are word positions, not byte offsets.
func FallbackEntities(text string) []pipeline_type.Entity {
	var entities []pipeline_type.Entity

	words := strings.Fields(strings.ToLower(text))
	for i, word := range words {
		for label, keywords := range fallbackKeywords {
			for _, kw := range keywords {
				if word == kw {
					entities = append(entities, pipeline_type.Entity{
						Text:  word,
						Label: label,
						Start: i,
						End:   i + 1,
					})
				}
			}
		}
	}

	return entities
}
