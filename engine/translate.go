package engine

import (
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// translateGraphQLLD rewrites a GraphQL-LD query to a SPARQL CONSTRUCT over
// the same sources: each selected field becomes a triple pattern on its
// context-expanded predicate, inline fragments become rdf:type patterns,
// and fields carrying a static argument become fixed-object patterns.
// The returned projection maps predicate IRI back to the field name so
// result quads can be regrouped into rows.
//
// Nested selection sets are not supported by this binding; routes needing
// them must inject a different Engine implementation.
func translateGraphQLLD(query string, jsonldContext map[string]any) (string, map[string]string, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "graphql-ld", Input: query})
	if err != nil {
		return "", nil, fmt.Errorf("parse GraphQL-LD query: %w", err)
	}
	if len(doc.Operations) == 0 {
		return "", nil, fmt.Errorf("GraphQL-LD query has no operation")
	}

	projection := make(map[string]string)
	var patterns []string

	if err := collectPatterns(doc.Operations[0].SelectionSet, jsonldContext, projection, &patterns); err != nil {
		return "", nil, err
	}
	if len(patterns) == 0 {
		return "", nil, fmt.Errorf("GraphQL-LD query selects no fields")
	}

	body := strings.Join(patterns, " ")
	sparql := fmt.Sprintf("CONSTRUCT { %s } WHERE { %s }", body, body)
	return sparql, projection, nil
}

func collectPatterns(set ast.SelectionSet, jsonldContext map[string]any, projection map[string]string, patterns *[]string) error {
	varIndex := len(projection)
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name == "id" {
				// The subject IRI is always projected as the row id;
				// static id arguments are handled by the query layer
				continue
			}
			if len(s.SelectionSet) > 0 {
				return fmt.Errorf("nested selection sets are not supported (field %q)", s.Name)
			}

			pred, err := ExpandTerm(jsonldContext, s.Name)
			if err != nil {
				return err
			}

			if obj, fixed, err := staticObject(s); err != nil {
				return err
			} else if fixed {
				*patterns = append(*patterns, fmt.Sprintf("?s <%s> %s .", pred, obj))
				continue
			}

			varIndex++
			*patterns = append(*patterns, fmt.Sprintf("?s <%s> ?v%d .", pred, varIndex))
			projection[pred] = s.Name

		case *ast.InlineFragment:
			typeIRI, err := ExpandTerm(jsonldContext, s.TypeCondition)
			if err != nil {
				return err
			}
			*patterns = append(*patterns, fmt.Sprintf("?s <%s> <%s> .", RDFType, typeIRI))
			if err := collectPatterns(s.SelectionSet, jsonldContext, projection, patterns); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unsupported selection kind %T", sel)
		}
	}
	return nil
}

// staticObject returns the SPARQL object term for a field carrying a static
// argument. A variable argument surviving to execution means substitution
// never bound it.
func staticObject(f *ast.Field) (string, bool, error) {
	if len(f.Arguments) == 0 {
		return "", false, nil
	}
	arg := f.Arguments[0]
	switch arg.Value.Kind {
	case ast.Variable:
		return "", false, fmt.Errorf("Variable $%s is not bound in query", arg.Value.Raw)
	case ast.IntValue, ast.FloatValue:
		return arg.Value.Raw, true, nil
	case ast.BooleanValue:
		return arg.Value.Raw, true, nil
	default:
		return `"` + escapeSPARQLString(arg.Value.Raw) + `"`, true, nil
	}
}

func escapeSPARQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// groupBySubject folds projected quads into rows, one per subject in first-
// appearance order. Literal objects become their lexical value, IRI objects
// stay RDF terms so the converter can emit JSON-LD node form, and repeated
// predicates accumulate into slices.
func groupBySubject(quads []rdf.Quad, projection map[string]string) []map[string]any {
	var order []string
	rows := make(map[string]map[string]any)

	for _, q := range quads {
		subj := q.Subj.String()
		row, ok := rows[subj]
		if !ok {
			row = map[string]any{"id": subj}
			rows[subj] = row
			order = append(order, subj)
		}

		field, ok := projection[q.Pred.String()]
		if !ok {
			continue
		}

		var value any
		if q.Obj.Type() == rdf.TermLiteral {
			value = q.Obj.String()
		} else {
			value = q.Obj
		}

		switch existing := row[field].(type) {
		case nil:
			row[field] = value
		case []any:
			row[field] = append(existing, value)
		default:
			row[field] = []any{existing, value}
		}
	}

	out := make([]map[string]any, 0, len(order))
	for _, subj := range order {
		out = append(out, rows[subj])
	}
	return out
}
