package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/query"
)

// Serialize renders a query result as the negotiated media type.
// text/html is template-driven and handled by the route layer, not here.
func Serialize(res *query.Result, jsonldContext map[string]any, mediaType string) ([]byte, error) {
	switch mediaType {
	case MediaJSON:
		return ToJSON(res)
	case MediaJSONLD:
		doc, err := ToJSONLD(res, jsonldContext)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return nil, errors.WrapConversion(err, "convert", "Serialize",
				"could not marshal the JSON-LD document")
		}
		return body, nil
	case MediaNTriples, MediaNQuads, MediaTurtle:
		quads, err := toQuads(res, jsonldContext)
		if err != nil {
			return nil, err
		}
		return encodeQuads(quads, mediaType)
	default:
		return nil, errors.WrapConversion(
			fmt.Errorf("no serializer for media type %q", mediaType),
			"convert", "Serialize", fmt.Sprintf("cannot serialize %q", mediaType))
	}
}

// ToJSON marshals the raw row shape of the result: RDF terms collapse to
// their lexical form, quad-shaped sets become their expanded JSON-LD
// document. A result from the single-query shorthand is unwrapped to a
// bare array; named queries keep their keys, even when there is only one.
func ToJSON(res *query.Result) ([]byte, error) {
	values := make(map[string]any, len(res.Keys))
	for _, key := range res.Keys {
		set := res.Sets[key]
		switch set.Kind {
		case query.KindRows:
			values[key] = plainRows(set.Rows)
		case query.KindQuads:
			doc, err := query.QuadsToJSONLD(set.Quads)
			if err != nil {
				return nil, err
			}
			values[key] = doc
		}
	}

	var payload any = values
	if res.Unnamed && len(res.Keys) == 1 {
		payload = values[res.Keys[0]]
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapConversion(err, "convert", "ToJSON",
			"could not marshal the result rows")
	}
	return body, nil
}

// ToJSONLD assembles the result into a JSON-LD document carrying the
// query's context: rows become @graph nodes with their id promoted to
// @id, IRI-valued fields become node references. Every query key's nodes
// land in one @graph so the document stays valid JSON-LD under any
// number of named queries.
func ToJSONLD(res *query.Result, jsonldContext map[string]any) (map[string]any, error) {
	nodes := make([]any, 0)
	for _, key := range res.Keys {
		set := res.Sets[key]
		switch set.Kind {
		case query.KindRows:
			nodes = append(nodes, rowsToNodes(set.Rows)...)
		case query.KindQuads:
			doc, err := query.QuadsToJSONLD(set.Quads)
			if err != nil {
				return nil, err
			}
			if expanded, ok := doc.([]any); ok {
				nodes = append(nodes, expanded...)
			} else {
				nodes = append(nodes, doc)
			}
		}
	}

	doc := map[string]any{"@graph": nodes}
	if jsonldContext != nil {
		doc["@context"] = jsonldContext
	}
	return doc, nil
}

// toQuads materializes every result set as RDF quads. Row-shaped sets go
// through their assembled JSON-LD document and json-gold's RDF
// conversion.
func toQuads(res *query.Result, jsonldContext map[string]any) ([]rdf.Quad, error) {
	var quads []rdf.Quad
	for _, key := range res.Keys {
		set := res.Sets[key]
		if set.Kind == query.KindQuads {
			quads = append(quads, set.Quads...)
			continue
		}

		doc := map[string]any{"@graph": rowsToNodes(set.Rows)}
		if jsonldContext != nil {
			doc["@context"] = jsonldContext
		}

		opts := ld.NewJsonLdOptions("")
		opts.Format = "application/n-quads"
		serialized, err := ld.NewJsonLdProcessor().ToRDF(doc, opts)
		if err != nil {
			return nil, errors.WrapConversion(err, "convert", "toQuads",
				fmt.Sprintf("could not convert query %q to RDF", key))
		}
		nquads, ok := serialized.(string)
		if !ok {
			return nil, errors.WrapConversion(
				fmt.Errorf("unexpected RDF serialization type %T", serialized),
				"convert", "toQuads", "JSON-LD processor returned a non-string serialization")
		}

		decoded, err := rdf.NewQuadDecoder(strings.NewReader(nquads), rdf.NQuads).DecodeAll()
		if err != nil {
			return nil, errors.WrapConversion(err, "convert", "toQuads",
				fmt.Sprintf("could not parse the RDF serialization of query %q", key))
		}
		quads = append(quads, decoded...)
	}
	return quads, nil
}

func encodeQuads(quads []rdf.Quad, mediaType string) ([]byte, error) {
	var buf bytes.Buffer
	switch mediaType {
	case MediaNQuads:
		for _, q := range quads {
			buf.WriteString(q.Serialize(rdf.NQuads))
		}
	case MediaNTriples:
		for _, q := range quads {
			buf.WriteString(q.Triple.Serialize(rdf.NTriples))
		}
	case MediaTurtle:
		enc := rdf.NewTripleEncoder(&buf, rdf.Turtle)
		for _, q := range quads {
			if err := enc.Encode(q.Triple); err != nil {
				return nil, errors.WrapConversion(err, "convert", "encodeQuads",
					"could not encode a triple as Turtle")
			}
		}
		if err := enc.Close(); err != nil {
			return nil, errors.WrapConversion(err, "convert", "encodeQuads",
				"could not finish the Turtle serialization")
		}
	}
	return buf.Bytes(), nil
}

// rowsToNodes rewrites rows as JSON-LD nodes: id becomes @id and IRI
// terms become node references.
func rowsToNodes(rows []map[string]any) []any {
	nodes := make([]any, 0, len(rows))
	for _, row := range rows {
		node := make(map[string]any, len(row))
		for k, v := range row {
			if k == "id" {
				k = "@id"
			}
			node[k] = nodeValue(v)
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func nodeValue(v any) any {
	switch t := v.(type) {
	case rdf.IRI:
		return map[string]any{"@id": t.String()}
	case rdf.Literal:
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = nodeValue(e)
		}
		return out
	default:
		return v
	}
}

// plainRows collapses RDF terms to plain strings for the raw JSON shape.
func plainRows(rows []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		plain := make(map[string]any, len(row))
		for k, v := range row {
			plain[k] = plainValue(v)
		}
		out = append(out, plain)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case rdf.IRI:
		return t.String()
	case rdf.Literal:
		return t.String()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
