package query

import (
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/piprate/json-gold/ld"

	"github.com/c360/semserve/errors"
)

// QuadsToJSONLD converts RDF quads to an expanded JSON-LD document.
func QuadsToJSONLD(quads []rdf.Quad) (any, error) {
	var sb strings.Builder
	for _, q := range quads {
		sb.WriteString(q.Serialize(rdf.NQuads))
	}

	opts := ld.NewJsonLdOptions("")
	opts.InputFormat = "application/n-quads"
	doc, err := ld.NewJsonLdProcessor().FromRDF(sb.String(), opts)
	if err != nil {
		return nil, errors.WrapConversion(err, "query", "QuadsToJSONLD",
			"could not convert quads to JSON-LD")
	}
	return doc, nil
}

// FrameQuads converts quads to JSON-LD and applies a frame, returning the
// framed objects as rows. A frame producing a single top-level object
// yields one row.
func FrameQuads(quads []rdf.Quad, frame map[string]any) ([]map[string]any, error) {
	doc, err := QuadsToJSONLD(quads)
	if err != nil {
		return nil, err
	}

	framed, err := ld.NewJsonLdProcessor().Frame(doc, frame, ld.NewJsonLdOptions(""))
	if err != nil {
		return nil, errors.WrapConversion(err, "query", "FrameQuads",
			"could not frame query result")
	}

	if graph, ok := framed["@graph"].([]any); ok {
		rows := make([]map[string]any, 0, len(graph))
		for _, node := range graph {
			obj, ok := node.(map[string]any)
			if !ok {
				return nil, errors.WrapConversion(
					fmt.Errorf("unexpected @graph node of type %T", node),
					"query", "FrameQuads", "framed graph holds a non-object node")
			}
			rows = append(rows, obj)
		}
		return rows, nil
	}
	return []map[string]any{framed}, nil
}
