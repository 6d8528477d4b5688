package engine

import (
	"fmt"
	"strings"
)

// RDFType is the rdf:type predicate IRI.
const RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// ExpandTerm resolves a GraphQL-LD term to a full IRI through the JSON-LD
// context: direct term mappings (string or {"@id": ...}), prefixed names
// (foaf:name), and absolute IRIs passed through unchanged.
func ExpandTerm(jsonldContext map[string]any, term string) (string, error) {
	if v, ok := jsonldContext[term]; ok {
		switch t := v.(type) {
		case string:
			return expandPrefixed(jsonldContext, t)
		case map[string]any:
			if id, ok := t["@id"].(string); ok {
				return expandPrefixed(jsonldContext, id)
			}
		}
		return "", fmt.Errorf("context term %q does not map to an IRI", term)
	}
	return expandPrefixed(jsonldContext, term)
}

func expandPrefixed(jsonldContext map[string]any, v string) (string, error) {
	if isAbsoluteIRI(v) {
		return v, nil
	}
	if i := strings.Index(v, ":"); i > 0 {
		prefix, local := v[:i], v[i+1:]
		if base, ok := jsonldContext[prefix].(string); ok && isAbsoluteIRI(base) {
			return base + local, nil
		}
	}
	return "", fmt.Errorf("term %q cannot be expanded to an IRI", v)
}

func isAbsoluteIRI(v string) bool {
	return strings.Contains(v, "://") || strings.HasPrefix(v, "urn:") || strings.HasPrefix(v, "mailto:")
}
