// Package routeconfig loads and validates the YAML route specification: the
// document describing HTTP routes, the semantic query bound to each, the
// postprocessing chain, and per-status response templates.
package routeconfig

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Dialect identifies the query language a route is bound to.
type Dialect string

const (
	// DialectGraphQLLD is GraphQL-shaped querying via a JSON-LD context
	DialectGraphQLLD Dialect = "graphql-ld"
	// DialectSPARQL is SPARQL CONSTRUCT querying
	DialectSPARQL Dialect = "sparql"
)

// Marker returns the parameter marker character for the dialect.
func (d Dialect) Marker() string {
	if d == DialectSPARQL {
		return "?"
	}
	return "$"
}

// ErrorPrefix returns the component prefix used to classify errors raised
// while handling queries of this dialect.
func (d Dialect) ErrorPrefix() string {
	if d == DialectSPARQL {
		return "SPARQL"
	}
	return "GRAPHQL"
}

// Spec is the parsed route specification document.
type Spec struct {
	Resources   Resources    `yaml:"resources"`
	DataSources []DataSource `yaml:"datasources"`

	// Paths maps a path pattern to its methods, each bound to a route.
	Paths map[string]map[string]*Route `yaml:"paths"`
}

// Resources names the directories templates are loaded from.
type Resources struct {
	Root    string `yaml:"root"`
	Views   string `yaml:"views"`
	Layouts string `yaml:"layouts"`
	Public  string `yaml:"public"`
}

// DataSource is either a literal URI or an embedded query whose results
// become source URIs.
type DataSource struct {
	URI   string
	Query *QueryInfo
}

// UnmarshalYAML accepts a scalar URI or a mapping holding a query spec.
func (ds *DataSource) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return value.Decode(&ds.URI)
	case yaml.MappingNode:
		ds.Query = &QueryInfo{}
		return value.Decode(ds.Query)
	default:
		return fmt.Errorf("datasource must be a URI or a query mapping, got %v", value.Kind)
	}
}

// Parameter describes one path or query parameter of a route.
type Parameter struct {
	Name        string `yaml:"name"`
	In          string `yaml:"in"` // "path" or "query"
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`

	// Flattened from the OpenAPI-style schema block
	Type    string
	Minimum *int
	Maximum *int
}

// UnmarshalYAML flattens the nested schema block into the parameter.
func (p *Parameter) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Name        string `yaml:"name"`
		In          string `yaml:"in"`
		Required    bool   `yaml:"required"`
		Description string `yaml:"description"`
		Schema      struct {
			Type    string `yaml:"type"`
			Minimum *int   `yaml:"minimum"`
			Maximum *int   `yaml:"maximum"`
		} `yaml:"schema"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.In = raw.In
	p.Required = raw.Required
	p.Description = raw.Description
	p.Type = raw.Schema.Type
	if p.Type == "" {
		p.Type = "string"
	}
	p.Minimum = raw.Schema.Minimum
	p.Maximum = raw.Schema.Maximum
	return nil
}

// SortSelector orders rows by the value at a path, ascending unless Order
// is "desc".
type SortSelector struct {
	Value string `yaml:"value"`
	Order string `yaml:"order"`
}

// Descending reports whether this selector sorts in descending order.
func (s SortSelector) Descending() bool {
	return s.Order == "desc" || s.Order == "descending"
}

// UnmarshalYAML accepts a bare path string as shorthand for an ascending
// selector.
func (s *SortSelector) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.Value)
	}
	var raw struct {
		Value string `yaml:"value"`
		Order string `yaml:"order"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Value = raw.Value
	s.Order = raw.Order
	return nil
}

// SortSpec selects a sub-structure of each row and orders rows by one or
// more selectors.
type SortSpec struct {
	Object    string         `yaml:"object"`
	Selectors []SortSelector `yaml:"selectors"`
}

// DedupSpec keeps only the first row for each distinct value at a path.
type DedupSpec struct {
	Object string `yaml:"object"`
	Value  string `yaml:"value"`
}

// NamedQuery is one query template with its postprocessing options.
type NamedQuery struct {
	Text             string     `yaml:"text"`
	Sort             *SortSpec  `yaml:"sort"`
	RemoveDuplicates *DedupSpec `yaml:"remove-duplicates"`
}

// UnmarshalYAML accepts a bare query string as shorthand for a query with
// no options.
func (nq *NamedQuery) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&nq.Text)
	}
	var raw struct {
		Text             string     `yaml:"text"`
		Sort             *SortSpec  `yaml:"sort"`
		RemoveDuplicates *DedupSpec `yaml:"remove-duplicates"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	nq.Text = raw.Text
	nq.Sort = raw.Sort
	nq.RemoveDuplicates = raw.RemoveDuplicates
	return nil
}

// DefaultQueryKey is the result key used for a route that declares a single
// unnamed query.
const DefaultQueryKey = "data"

// QueryInfo binds a route (or an embedded data source) to its queries.
type QueryInfo struct {
	Dialect Dialect

	// Queries maps query key to template; QueryOrder preserves the
	// declaration order, which multi-query responses and tests rely on.
	Queries    map[string]*NamedQuery
	QueryOrder []string

	// Unnamed is true when the route used the single-query shorthand;
	// such results are served as a bare array rather than keyed by
	// DefaultQueryKey.
	Unnamed bool

	Context     map[string]any
	Frame       map[string]any
	DataSources []DataSource
	Cache       bool
	Lenient     bool

	// Postprocessing applies when this QueryInfo is an embedded data
	// source; route-level postprocessing lives on the Route.
	Postprocessing []PipeCall
}

// UnmarshalYAML decodes the query block, preserving the declaration order
// of named queries and defaulting Cache to true.
func (qi *QueryInfo) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Dialect        Dialect        `yaml:"dialect"`
		Query          *NamedQuery    `yaml:"query"`
		Queries        yaml.Node      `yaml:"queries"`
		Context        map[string]any `yaml:"context"`
		Frame          map[string]any `yaml:"frame"`
		DataSources    []DataSource   `yaml:"datasources"`
		Cache          *bool          `yaml:"cache"`
		Lenient        bool           `yaml:"lenient"`
		Postprocessing []PipeCall     `yaml:"postprocessing"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	qi.Dialect = raw.Dialect
	if qi.Dialect == "" {
		qi.Dialect = DialectGraphQLLD
	}
	qi.Context = raw.Context
	qi.Frame = raw.Frame
	qi.DataSources = raw.DataSources
	qi.Lenient = raw.Lenient
	qi.Postprocessing = raw.Postprocessing
	qi.Cache = true
	if raw.Cache != nil {
		qi.Cache = *raw.Cache
	}

	qi.Queries = make(map[string]*NamedQuery)
	if raw.Query != nil {
		qi.Queries[DefaultQueryKey] = raw.Query
		qi.QueryOrder = []string{DefaultQueryKey}
		qi.Unnamed = true
	}
	if raw.Queries.Kind == yaml.MappingNode {
		// Walk the mapping node pairwise to keep declaration order
		for i := 0; i+1 < len(raw.Queries.Content); i += 2 {
			keyNode := raw.Queries.Content[i]
			valNode := raw.Queries.Content[i+1]
			var key string
			if err := keyNode.Decode(&key); err != nil {
				return err
			}
			nq := &NamedQuery{}
			if err := valNode.Decode(nq); err != nil {
				return err
			}
			qi.Queries[key] = nq
			qi.QueryOrder = append(qi.QueryOrder, key)
		}
	}

	return nil
}

// PipeCall names a registered pipe module and its static parameters.
type PipeCall struct {
	Pipe       string `yaml:"pipe"`
	Parameters []any  `yaml:"parameters"`
}

// UnmarshalYAML accepts a bare pipe name as shorthand for a call without
// parameters.
func (pc *PipeCall) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&pc.Pipe)
	}
	var raw struct {
		Pipe       string `yaml:"pipe"`
		Parameters []any  `yaml:"parameters"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	pc.Pipe = raw.Pipe
	pc.Parameters = raw.Parameters
	return nil
}

// Route is one (path, method) binding. Immutable once parsed.
type Route struct {
	Method  string `yaml:"-"`
	Path    string `yaml:"-"`
	Summary string `yaml:"summary"`

	Parameters     []Parameter    `yaml:"parameters"`
	Query          *QueryInfo     `yaml:"query"`
	Postprocessing []PipeCall     `yaml:"postprocessing"`
	Responses      map[int]string `yaml:"responses"`
}

// Parameter returns the descriptor for a parameter name, if declared.
func (r *Route) Parameter(name string) (Parameter, bool) {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Template returns the response template configured for a status code.
func (r *Route) Template(status int) (string, bool) {
	t, ok := r.Responses[status]
	return t, ok
}
