// Package convert negotiates response representations and serializes
// query results into them: assembled JSON-LD, the line-based RDF
// serializations, Turtle, and the raw JSON shape of the engine rows.
package convert

import (
	"fmt"

	"github.com/munnerz/goautoneg"

	"github.com/c360/semserve/errors"
)

// Media types the server can produce, in preference order. HTML is only
// offered when the route has a template for the status.
const (
	MediaHTML     = "text/html"
	MediaJSONLD   = "application/ld+json"
	MediaTurtle   = "text/turtle"
	MediaNTriples = "application/n-triples"
	MediaNQuads   = "application/n-quads"
	MediaJSON     = "application/json"
)

var preferenceOrder = []string{
	MediaHTML,
	MediaJSONLD,
	MediaTurtle,
	MediaNTriples,
	MediaNQuads,
	MediaJSON,
}

// Negotiate picks the response media type for an Accept header. An
// empty header yields the most preferred offer. A header matching no
// offer is a negotiation failure the server maps to 415.
func Negotiate(accept string, htmlAvailable bool) (string, error) {
	offers := preferenceOrder
	if !htmlAvailable {
		offers = preferenceOrder[1:]
	}

	if accept == "" {
		return offers[0], nil
	}

	chosen := goautoneg.Negotiate(accept, offers)
	if chosen == "" {
		return "", errors.Wrap(
			fmt.Errorf("%w: %s", errors.ErrNotAcceptable, accept),
			"convert", "Negotiate",
			fmt.Sprintf("no offered media type satisfies %q", accept))
	}
	return chosen, nil
}
