package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/knakk/rdf"

	"github.com/c360/semserve/errors"
	"github.com/c360/semserve/pkg/cache"
	"github.com/c360/semserve/pkg/retry"
)

// maxResponseBytes bounds a single endpoint response.
const maxResponseBytes = 64 << 20

// Client is the shipped Engine implementation. It delegates query
// evaluation to remote SPARQL endpoints over HTTP and merges the quads
// returned by each configured source. Responses are held in a TTL cache
// that InvalidateHTTPCache clears.
type Client struct {
	sources []string
	lenient bool
	httpc   *http.Client
	resp    cache.Cache[[]rdf.Quad]
	retry   retry.Config
	log     *slog.Logger
}

// ClientOption configures the endpoint client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	httpc    *http.Client
	cacheTTL time.Duration
	retry    retry.Config
	log      *slog.Logger
}

// WithHTTPClient substitutes the HTTP client used for endpoint requests.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cfg *clientConfig) {
		if c != nil {
			cfg.httpc = c
		}
	}
}

// WithResponseTTL sets how long endpoint responses stay cached.
func WithResponseTTL(ttl time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		if ttl > 0 {
			cfg.cacheTTL = ttl
		}
	}
}

// WithRetry overrides the retry policy for endpoint requests.
func WithRetry(rc retry.Config) ClientOption {
	return func(cfg *clientConfig) {
		cfg.retry = rc
	}
}

// WithClientLogger sets the logger for per-source warnings in lenient mode.
func WithClientLogger(log *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if log != nil {
			cfg.log = log
		}
	}
}

// NewClient creates an endpoint-backed engine over the given sources.
func NewClient(sources []string, lenient bool, options ...ClientOption) (*Client, error) {
	if len(sources) == 0 {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "engine", "NewClient",
			"at least one data source is required")
	}

	cfg := &clientConfig{
		httpc:    &http.Client{Timeout: 30 * time.Second},
		cacheTTL: time.Minute,
		retry:    retry.Fetch(),
		log:      slog.Default(),
	}
	for _, opt := range options {
		opt(cfg)
	}

	resp, err := cache.NewTTL[[]rdf.Quad](cfg.cacheTTL, cfg.cacheTTL)
	if err != nil {
		return nil, err
	}

	return &Client{
		sources: sources,
		lenient: lenient,
		httpc:   cfg.httpc,
		resp:    resp,
		retry:   cfg.retry,
		log:     cfg.log,
	}, nil
}

// ConstructQuads executes a CONSTRUCT query against every source and
// materializes the merged quad stream, each quad tagged with its source as
// graph name.
func (c *Client) ConstructQuads(ctx context.Context, query string) ([]rdf.Quad, error) {
	if quads, ok := c.resp.Get(query); ok {
		return quads, nil
	}

	var all []rdf.Quad
	answered := 0
	var firstErr error

	for _, src := range c.sources {
		quads, err := c.fetchConstruct(ctx, src, query)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("source %s: %w", src, err)
			}
			if !c.lenient {
				return nil, firstErr
			}
			c.log.Warn("skipping failed data source", "source", src, "error", err)
			continue
		}
		answered++
		all = append(all, quads...)
	}

	// Lenient mode tolerates per-source failures only while at least one
	// source answered
	if answered == 0 && firstErr != nil {
		return nil, firstErr
	}

	if _, err := c.resp.Set(query, all); err != nil {
		return nil, err
	}
	return all, nil
}

func (c *Client) fetchConstruct(ctx context.Context, source, query string) ([]rdf.Quad, error) {
	endpoint, err := url.Parse(source)
	if err != nil {
		return nil, retry.NonRetryable(err)
	}
	q := endpoint.Query()
	q.Set("query", query)
	endpoint.RawQuery = q.Encode()

	body, err := retry.DoWithResult(ctx, c.retry, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, retry.NonRetryable(err)
		}
		req.Header.Set("Accept", "application/n-triples, text/plain;q=0.5")

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("endpoint returned %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			// Client errors will not improve on retry
			return nil, retry.NonRetryable(fmt.Errorf("endpoint returned %s: %s", resp.Status, truncate(data, 200)))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return triplesToQuads(body, source)
}

func triplesToQuads(ntriples []byte, source string) ([]rdf.Quad, error) {
	graph, err := rdf.NewIRI(source)
	if err != nil {
		return nil, err
	}

	dec := rdf.NewTripleDecoder(bytes.NewReader(ntriples), rdf.NTriples)
	triples, err := dec.DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("decode N-Triples from %s: %w", source, err)
	}

	quads := make([]rdf.Quad, 0, len(triples))
	for _, t := range triples {
		quads = append(quads, rdf.Quad{Triple: t, Ctx: rdf.Context(graph)})
	}
	return quads, nil
}

// QueryGraph executes a GraphQL-LD query by translating it to a SPARQL
// CONSTRUCT over the same sources and grouping the resulting quads into
// tree-shaped rows. Evaluation stays in the endpoint; only the translation
// lives here.
func (c *Client) QueryGraph(ctx context.Context, query string, jsonldContext map[string]any) ([]map[string]any, error) {
	sparql, projection, err := translateGraphQLLD(query, jsonldContext)
	if err != nil {
		return nil, err
	}

	quads, err := c.ConstructQuads(ctx, sparql)
	if err != nil {
		return nil, err
	}

	return groupBySubject(quads, projection), nil
}

// InvalidateHTTPCache drops all cached endpoint responses.
func (c *Client) InvalidateHTTPCache(_ context.Context) error {
	return c.resp.Clear()
}

// Close releases the response cache.
func (c *Client) Close() error {
	return c.resp.Close()
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
