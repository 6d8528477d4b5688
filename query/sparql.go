package query

import (
	"context"

	"github.com/c360/semserve/engine"
	"github.com/c360/semserve/routeconfig"
)

// SPARQL executes SPARQL CONSTRUCT query infos. Results stay as quads
// unless the query info declares a JSON-LD frame, in which case the
// framed objects become rows like a GraphQL-LD result.
type SPARQL struct {
	handler
}

// NewSPARQL creates the SPARQL handler.
func NewSPARQL(engines *engine.Cache, resolver *engine.Resolver, options ...Option) *SPARQL {
	return &SPARQL{handler: newHandler(engines, resolver, options...)}
}

// Handle runs every named query of qi and returns the keyed result sets
// in declaration order.
func (h *SPARQL) Handle(ctx context.Context, qi *routeconfig.QueryInfo, params []routeconfig.Parameter, pathParams, queryParams map[string]string) (*Result, error) {
	substituted, eng, sources, err := h.prepare(ctx, qi, params, pathParams, queryParams)
	if err != nil {
		return nil, err
	}

	result := NewResult(routeconfig.DialectSPARQL)
	result.Unnamed = qi.Unnamed
	for _, key := range qi.QueryOrder {
		text := substituted[key]

		quads, err := eng.ConstructQuads(ctx, text)
		if err != nil {
			return nil, h.executionError(ctx, routeconfig.DialectSPARQL.ErrorPrefix(), text, sources, err)
		}

		if qi.Frame == nil {
			result.Add(key, ResultSet{Kind: KindQuads, Quads: quads})
			continue
		}

		rows, err := FrameQuads(quads, qi.Frame)
		if err != nil {
			return nil, err
		}
		rows, err = applyOptions(rows, qi.Queries[key])
		if err != nil {
			return nil, err
		}
		result.Add(key, ResultSet{Kind: KindRows, Rows: rows})
	}
	return result, nil
}
