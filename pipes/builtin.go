package pipes

import (
	"fmt"

	"github.com/c360/semserve/query"
)

// RegisterBuiltins adds the pipes every deployment gets: field selection
// and row limiting over row-shaped result sets. Quad-shaped sets pass
// through untouched.
func RegisterBuiltins(r *Registry) error {
	builtins := map[string]Func{
		"pick":  Pick,
		"omit":  Omit,
		"limit": Limit,
	}
	for name, fn := range builtins {
		if err := r.Register(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// Pick keeps only the named fields in every row. The row id survives
// regardless.
func Pick(res *query.Result, params []any) (*query.Result, error) {
	keep, err := stringParams("pick", params)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(keep)+1)
	wanted["id"] = true
	for _, k := range keep {
		wanted[k] = true
	}

	return mapRows(res, func(row map[string]any) map[string]any {
		out := make(map[string]any, len(wanted))
		for k, v := range row {
			if wanted[k] {
				out[k] = v
			}
		}
		return out
	}), nil
}

// Omit drops the named fields from every row.
func Omit(res *query.Result, params []any) (*query.Result, error) {
	drop, err := stringParams("omit", params)
	if err != nil {
		return nil, err
	}
	unwanted := make(map[string]bool, len(drop))
	for _, k := range drop {
		unwanted[k] = true
	}

	return mapRows(res, func(row map[string]any) map[string]any {
		out := make(map[string]any, len(row))
		for k, v := range row {
			if !unwanted[k] {
				out[k] = v
			}
		}
		return out
	}), nil
}

// Limit truncates every row set to its first parameter, a non-negative
// count.
func Limit(res *query.Result, params []any) (*query.Result, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("limit takes exactly one parameter, got %d", len(params))
	}
	n, ok := asInt(params[0])
	if !ok || n < 0 {
		return nil, fmt.Errorf("limit parameter must be a non-negative integer, got %v", params[0])
	}

	out := query.NewResult(res.Dialect)
	for _, key := range res.Keys {
		set := res.Sets[key]
		if set.Kind == query.KindRows && len(set.Rows) > n {
			set.Rows = set.Rows[:n]
		}
		out.Add(key, set)
	}
	return out, nil
}

func mapRows(res *query.Result, fn func(map[string]any) map[string]any) *query.Result {
	out := query.NewResult(res.Dialect)
	for _, key := range res.Keys {
		set := res.Sets[key]
		if set.Kind == query.KindRows {
			rows := make([]map[string]any, len(set.Rows))
			for i, row := range set.Rows {
				rows[i] = fn(row)
			}
			set.Rows = rows
		}
		out.Add(key, set)
	}
	return out
}

func stringParams(pipe string, params []any) ([]string, error) {
	out := make([]string, 0, len(params))
	for _, p := range params {
		s, ok := p.(string)
		if !ok {
			return nil, fmt.Errorf("%s parameters must be field names, got %v", pipe, p)
		}
		out = append(out, s)
	}
	return out, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
