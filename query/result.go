// Package query implements the request-execution core: parameter
// substitution into query templates, the GraphQL-LD and SPARQL handlers,
// per-query sort/deduplicate options, and normalization of heterogeneous
// result shapes.
package query

import (
	"strings"

	"github.com/knakk/rdf"

	"github.com/c360/semserve/routeconfig"
)

// Kind tags the two result variants instead of relying on runtime shape
// inspection: tree-shaped bound-variable rows versus raw RDF quads.
type Kind int

const (
	// KindRows holds JSON-LD-ish bound-variable trees (GraphQL-LD
	// results and framed SPARQL results)
	KindRows Kind = iota
	// KindQuads holds materialized RDF quads (unframed SPARQL results)
	KindQuads
)

// ResultSet is one named query's result.
type ResultSet struct {
	Kind  Kind
	Rows  []map[string]any
	Quads []rdf.Quad
}

// Result maps query key to its result set, preserving declaration order.
// Unnamed marks a result produced by the single-query shorthand, which is
// served as a bare array instead of an object keyed by query name.
type Result struct {
	Dialect routeconfig.Dialect
	Keys    []string
	Sets    map[string]ResultSet
	Unnamed bool
}

// NewResult creates an empty result for a dialect.
func NewResult(dialect routeconfig.Dialect) *Result {
	return &Result{
		Dialect: dialect,
		Sets:    make(map[string]ResultSet),
	}
}

// Add appends a named query's result set.
func (r *Result) Add(key string, set ResultSet) {
	if _, exists := r.Sets[key]; !exists {
		r.Keys = append(r.Keys, key)
	}
	r.Sets[key] = set
}

// SourceURIs extracts the URI-valued results of an embedded data source
// query: every IRI term and every IRI-looking string across all rows, in
// order. Quad results contribute their object IRIs.
func (r *Result) SourceURIs() []string {
	var uris []string
	seen := make(map[string]bool)
	add := func(uri string) {
		if !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}

	for _, key := range r.Keys {
		set := r.Sets[key]
		switch set.Kind {
		case KindRows:
			for _, row := range set.Rows {
				for _, v := range row {
					collectURIs(v, add)
				}
			}
		case KindQuads:
			for _, q := range set.Quads {
				if q.Obj.Type() == rdf.TermIRI {
					add(q.Obj.String())
				}
			}
		}
	}
	return uris
}

func collectURIs(v any, add func(string)) {
	switch t := v.(type) {
	case rdf.IRI:
		add(t.String())
	case string:
		if strings.Contains(t, "://") {
			add(t)
		}
	case []any:
		for _, e := range t {
			collectURIs(e, add)
		}
	}
}
