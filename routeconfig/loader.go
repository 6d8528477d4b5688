package routeconfig

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/c360/semserve/errors"
)

// specSchema is the structural schema the raw document is checked against
// before typed decoding. Semantic rules live in Validate.
const specSchema = `{
	"type": "object",
	"required": ["paths"],
	"properties": {
		"resources": {
			"type": "object",
			"properties": {
				"root":    {"type": "string"},
				"views":   {"type": "string"},
				"layouts": {"type": "string"},
				"public":  {"type": "string"}
			}
		},
		"datasources": {"type": "array"},
		"paths": {
			"type": "object",
			"patternProperties": {
				"^/": {
					"type": "object",
					"patternProperties": {
						"^(get|post|put|delete|patch|head|options)$": {
							"type": "object",
							"properties": {
								"summary":        {"type": "string"},
								"parameters":     {"type": "array"},
								"query":          {"type": "object"},
								"postprocessing": {"type": "array"},
								"responses":      {"type": "object"}
							}
						}
					}
				}
			}
		}
	}
}`

// maxSourceDepth bounds embedded data source nesting. Deeper documents are
// rejected as configuration errors before the resolver ever runs.
const maxSourceDepth = 8

// Load reads and parses a route specification file.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInternal(err, "routeconfig", "Load", fmt.Sprintf("read spec file %s", path))
	}
	return Parse(data)
}

// Parse validates the raw YAML document against the structural schema, then
// decodes it into a Spec and applies defaults.
func Parse(data []byte) (*Spec, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(err, "routeconfig", "Parse", "YAML decode")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(specSchema),
		gojsonschema.NewGoLoader(normalizeKeys(raw)),
	)
	if err != nil {
		return nil, errors.WrapInternal(err, "routeconfig", "Parse", "schema validation")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(details, "; ")),
			"routeconfig", "Parse", "structural validation")
	}

	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, errors.WrapInvalid(err, "routeconfig", "Parse", "spec decode")
	}
	spec.applyDefaults()

	return spec, nil
}

// normalizeKeys rewrites any map with non-string keys (YAML status codes
// like 200) into a string-keyed map so the document can be marshalled to
// JSON for schema validation.
func normalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeKeys(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeKeys(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeKeys(val)
		}
		return out
	default:
		return v
	}
}

func (s *Spec) applyDefaults() {
	if s.Resources.Root == "" {
		s.Resources.Root = "."
	}
	if s.Resources.Views == "" {
		s.Resources.Views = "views"
	}
	if s.Resources.Layouts == "" {
		s.Resources.Layouts = "layouts"
	}

	for path, methods := range s.Paths {
		for method, route := range methods {
			route.Path = path
			route.Method = strings.ToUpper(method)
			if route.Query != nil && len(route.Query.DataSources) == 0 {
				route.Query.DataSources = s.DataSources
			}
		}
	}
}

// Routes returns all routes in deterministic path-then-method order.
func (s *Spec) Routes() []*Route {
	var routes []*Route
	paths := make([]string, 0, len(s.Paths))
	for p := range s.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		methods := make([]string, 0, len(s.Paths[p]))
		for m := range s.Paths[p] {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			routes = append(routes, s.Paths[p][m])
		}
	}
	return routes
}

// PipeNames returns every pipe name the spec references, in route order,
// so startup can warn about names missing from the registry.
func (s *Spec) PipeNames() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(calls []PipeCall) {
		for _, call := range calls {
			if !seen[call.Pipe] {
				seen[call.Pipe] = true
				names = append(names, call.Pipe)
			}
		}
	}

	var walk func(qi *QueryInfo)
	walk = func(qi *QueryInfo) {
		if qi == nil {
			return
		}
		add(qi.Postprocessing)
		for _, ds := range qi.DataSources {
			walk(ds.Query)
		}
	}

	for _, route := range s.Routes() {
		add(route.Postprocessing)
		walk(route.Query)
	}
	return names
}

var (
	graphqlVarPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	pathSegmentParam  = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// derivedParams are substitutable names injected by the substitution engine
// rather than declared by the route.
var derivedParams = map[string]bool{"offset": true, "limit": true, "page": true}

// Validate runs semantic checks over the parsed spec. It returns aggregated
// warnings (non-fatal findings the operator should see at boot) and an error
// for conditions that must fail startup.
func (s *Spec) Validate() ([]string, error) {
	var warnings []string

	for _, route := range s.Routes() {
		label := fmt.Sprintf("%s %s", route.Method, route.Path)

		for _, p := range route.Parameters {
			if p.In != "path" && p.In != "query" {
				return warnings, errors.WrapInvalid(
					fmt.Errorf("%w: parameter %q has location %q", errors.ErrInvalidConfig, p.Name, p.In),
					"routeconfig", "Validate", label)
			}
			if p.Type != "string" && p.Type != "integer" {
				return warnings, errors.WrapInvalid(
					fmt.Errorf("%w: parameter %q has type %q", errors.ErrUnknownParameterType, p.Name, p.Type),
					"routeconfig", "Validate", label)
			}
		}

		// Path segments must have matching path parameter descriptors
		for _, m := range pathSegmentParam.FindAllStringSubmatch(route.Path, -1) {
			if p, ok := route.Parameter(m[1]); !ok || p.In != "path" {
				warnings = append(warnings,
					fmt.Sprintf("%s: path segment {%s} has no matching path parameter", label, m[1]))
			}
		}

		if route.Query == nil {
			continue
		}
		if route.Query.Dialect != DialectGraphQLLD && route.Query.Dialect != DialectSPARQL {
			return warnings, errors.WrapInvalid(
				fmt.Errorf("%w: %q", errors.ErrUnknownDialect, route.Query.Dialect),
				"routeconfig", "Validate", label)
		}

		warnings = append(warnings, validateQueryVars(label, route)...)

		if err := checkSourceDepth(route.Query, 0); err != nil {
			return warnings, errors.WrapInvalid(err, "routeconfig", "Validate", label)
		}
	}

	return warnings, nil
}

// validateQueryVars flags GraphQL-LD template variables with no matching
// parameter descriptor, and declared parameters no template references.
// SPARQL templates are skipped for the first check: a bare ?name is usually
// a query variable, not a route parameter.
func validateQueryVars(label string, route *Route) []string {
	var warnings []string

	used := make(map[string]bool)
	for _, key := range route.Query.QueryOrder {
		nq := route.Query.Queries[key]
		if route.Query.Dialect == DialectGraphQLLD {
			for _, m := range graphqlVarPattern.FindAllStringSubmatch(nq.Text, -1) {
				used[m[1]] = true
				if _, ok := route.Parameter(m[1]); !ok && !derivedParams[m[1]] {
					warnings = append(warnings,
						fmt.Sprintf("%s: query %q uses variable $%s not described in parameters", label, key, m[1]))
				}
			}
		} else {
			for _, p := range route.Parameters {
				if strings.Contains(nq.Text, "?"+p.Name) {
					used[p.Name] = true
				}
			}
		}
	}

	for _, p := range route.Parameters {
		if !used[p.Name] && !derivedParams[p.Name] {
			warnings = append(warnings,
				fmt.Sprintf("%s: parameter %q is declared but unused by any query", label, p.Name))
		}
	}

	return warnings
}

func checkSourceDepth(qi *QueryInfo, depth int) error {
	if depth > maxSourceDepth {
		return fmt.Errorf("%w: data source nesting exceeds %d levels", errors.ErrDataSourceCycle, maxSourceDepth)
	}
	for i := range qi.DataSources {
		if nested := qi.DataSources[i].Query; nested != nil {
			if err := checkSourceDepth(nested, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
