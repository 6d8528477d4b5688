package query

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/routeconfig"
)

// Substitute replaces parameter markers in a query template with encoded
// request values. Path and query parameters share one namespace; each
// value is coerced against its declared descriptor before insertion.
// Integers are emitted bare for SPARQL and quoted for GraphQL-LD, strings
// are quoted and escaped for both.
//
// When both "page" and "limit" arrive as query parameters, a zero-based
// "offset" of page*limit is derived and "page" itself is not substituted.
func Substitute(template string, params []routeconfig.Parameter, pathParams, queryParams map[string]string, dialect routeconfig.Dialect) (string, error) {
	component := dialect.ErrorPrefix()

	// Missing required parameters fail before any coercion, in
	// declaration order.
	for _, p := range params {
		if !p.Required {
			continue
		}
		values := queryParams
		if p.In == "path" {
			values = pathParams
		}
		if _, ok := values[p.Name]; !ok {
			return "", errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrMissingParameter, p.Name),
				component, "Substitute",
				fmt.Sprintf("required %s parameter %q was not supplied", p.In, p.Name))
		}
	}

	descriptors := make(map[string]routeconfig.Parameter, len(params))
	for _, p := range params {
		descriptors[p.Name] = p
	}

	raw := make(map[string]string, len(pathParams)+len(queryParams))
	for name, value := range pathParams {
		raw[name] = value
	}

	// Pagination is a query-string concern; a path segment named page
	// or limit never triggers the derivation.
	page, hasPage := queryParams["page"]
	limit, hasLimit := queryParams["limit"]
	derived := hasPage && hasLimit

	for name, value := range queryParams {
		if derived && name == "page" {
			continue
		}
		raw[name] = value
	}

	if derived {
		offset, err := deriveOffset(page, limit, component)
		if err != nil {
			return "", err
		}
		raw["offset"] = strconv.Itoa(offset)
	}

	encoded := make(map[string]string, len(raw))
	for name, value := range raw {
		enc, err := encodeValue(name, value, descriptors, dialect)
		if err != nil {
			return "", err
		}
		encoded[name] = enc
	}

	// Longer names first so $actor is not clobbered by a parameter
	// named $act.
	names := make([]string, 0, len(encoded))
	for name := range encoded {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	marker := dialect.Marker()
	result := template
	for _, name := range names {
		result = strings.ReplaceAll(result, marker+name, encoded[name])
	}
	return result, nil
}

func deriveOffset(page, limit, component string) (int, error) {
	p, err := strconv.Atoi(page)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: page=%q", errors.ErrIntegerParse, page),
			component, "Substitute", "page is not an integer")
	}
	l, err := strconv.Atoi(limit)
	if err != nil {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: limit=%q", errors.ErrIntegerParse, limit),
			component, "Substitute", "limit is not an integer")
	}
	return p * l, nil
}

func encodeValue(name, value string, descriptors map[string]routeconfig.Parameter, dialect routeconfig.Dialect) (string, error) {
	component := dialect.ErrorPrefix()

	typ := "string"
	desc, known := descriptors[name]
	if known {
		typ = desc.Type
	}
	if name == "offset" && !known {
		typ = "integer"
	}

	switch typ {
	case "integer":
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", errors.WrapInvalid(
				fmt.Errorf("%w: %s=%q", errors.ErrIntegerParse, name, value),
				component, "Substitute",
				fmt.Sprintf("parameter %q is not an integer", name))
		}
		if known && desc.Minimum != nil && n < *desc.Minimum {
			return "", errors.WrapInvalid(
				fmt.Errorf("%w: %s=%d, minimum %d", errors.ErrIntegerBelowMinimum, name, n, *desc.Minimum),
				component, "Substitute",
				fmt.Sprintf("parameter %q is below its minimum", name))
		}
		if known && desc.Maximum != nil && n > *desc.Maximum {
			return "", errors.WrapInvalid(
				fmt.Errorf("%w: %s=%d, maximum %d", errors.ErrIntegerAboveMaximum, name, n, *desc.Maximum),
				component, "Substitute",
				fmt.Sprintf("parameter %q is above its maximum", name))
		}
		if dialect == routeconfig.DialectGraphQLLD {
			return strconv.Quote(value), nil
		}
		return strconv.Itoa(n), nil
	case "string", "":
		return strconv.Quote(value), nil
	default:
		return "", errors.WrapInvalid(
			fmt.Errorf("%w: %s has type %q", errors.ErrUnknownParameterType, name, typ),
			component, "Substitute",
			fmt.Sprintf("parameter %q declares an unsupported type", name))
	}
}
