package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

// applyOptions runs a named query's sort and remove-duplicates options
// over its rows, in that order.
func applyOptions(rows []map[string]any, nq *routeconfig.NamedQuery) ([]map[string]any, error) {
	if nq == nil {
		return rows, nil
	}
	var err error
	if nq.Sort != nil {
		rows, err = sortRows(rows, nq.Sort)
		if err != nil {
			return nil, err
		}
	}
	if nq.RemoveDuplicates != nil {
		rows, err = dedupRows(rows, nq.RemoveDuplicates)
		if err != nil {
			return nil, err
		}
	}
	return rows, nil
}

// sortRows orders rows by the selector values, case-insensitively.
// Selectors beyond the first break ties; rows whose selectors match
// nothing compare equal, so the stable sort keeps their input order.
func sortRows(rows []map[string]any, spec *routeconfig.SortSpec) ([]map[string]any, error) {
	object, err := compilePath(spec.Object)
	if err != nil {
		return nil, errors.WrapInvalid(err, "query", "sortRows",
			fmt.Sprintf("invalid sort object selector %q", spec.Object))
	}

	type selector struct {
		expr jp.Expr
		desc bool
	}
	selectors := make([]selector, 0, len(spec.Selectors))
	for _, s := range spec.Selectors {
		expr, err := compilePath(s.Value)
		if err != nil {
			return nil, errors.WrapInvalid(err, "query", "sortRows",
				fmt.Sprintf("invalid sort value selector %q", s.Value))
		}
		selectors = append(selectors, selector{expr: expr, desc: s.Descending()})
	}

	keys := make([][]string, len(rows))
	for i, row := range rows {
		target := selectPath(object, row)
		keys[i] = make([]string, len(selectors))
		for j, s := range selectors {
			keys[i][j] = strings.ToLower(stringValue(selectPath(s.expr, target)))
		}
	}

	out := make([]map[string]any, len(rows))
	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for j, s := range selectors {
			ka, kb := keys[order[a]][j], keys[order[b]][j]
			if ka == kb {
				continue
			}
			if s.desc {
				return ka > kb
			}
			return ka < kb
		}
		return false
	})
	for i, idx := range order {
		out[i] = rows[idx]
	}
	return out, nil
}

// dedupRows keeps the first row for each distinct value at the selector.
func dedupRows(rows []map[string]any, spec *routeconfig.DedupSpec) ([]map[string]any, error) {
	object, err := compilePath(spec.Object)
	if err != nil {
		return nil, errors.WrapInvalid(err, "query", "dedupRows",
			fmt.Sprintf("invalid remove-duplicates object selector %q", spec.Object))
	}
	value, err := compilePath(spec.Value)
	if err != nil {
		return nil, errors.WrapInvalid(err, "query", "dedupRows",
			fmt.Sprintf("invalid remove-duplicates value selector %q", spec.Value))
	}

	seen := make(map[string]bool, len(rows))
	out := rows[:0:0]
	for _, row := range rows {
		key := stringValue(selectPath(value, selectPath(object, row)))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out, nil
}

// compilePath parses a JSONPath selector; empty means identity.
func compilePath(path string) (jp.Expr, error) {
	if path == "" {
		return nil, nil
	}
	return jp.ParseString(path)
}

// selectPath evaluates a compiled selector against data, returning the
// first match or nil. A nil selector is the identity.
func selectPath(expr jp.Expr, data any) any {
	if expr == nil {
		return data
	}
	matches := expr.Get(data)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

func stringValue(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
