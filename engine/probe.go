package engine

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// connectivitySignatures are the message fragments of known transient
// network and certificate failures. Engines and HTTP stacks word these
// differently, so both typed checks and message inspection are applied.
var connectivitySignatures = []string{
	"certificate has expired",
	"self signed certificate",
	"self-signed certificate",
	"unknown authority",
	"no such host",
	"connection refused",
	"connection reset",
	"fetch failed",
	"handshake failure",
	"i/o timeout",
}

// IsConnectivityFailure reports whether an error looks like a data source
// network or certificate failure rather than a query problem.
func IsConnectivityFailure(err error) bool {
	if err == nil {
		return false
	}

	var certErr x509.CertificateInvalidError
	if errors.As(err, &certErr) {
		return true
	}
	var authErr x509.UnknownAuthorityError
	if errors.As(err, &authErr) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range connectivitySignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// Prober issues lightweight requests against data sources to identify which
// one is unreachable or serving an invalid certificate. It only runs on the
// already-failed path, so sequential probing is acceptable.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a prober with the given per-source timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// IdentifyFaultySource probes each source in order and returns the first
// one that fails, with the probe error. Returns ok=false when every source
// answered, meaning the offender could not be identified.
func (p *Prober) IdentifyFaultySource(ctx context.Context, sources []string) (source string, probeErr error, ok bool) {
	for _, src := range sources {
		if err := p.probe(ctx, src); err != nil {
			return src, err, true
		}
	}
	return "", nil, false
}

func (p *Prober) probe(ctx context.Context, source string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, source, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err == nil {
		resp.Body.Close()
		return nil
	}

	// Some endpoints reject HEAD outright; fall back to a ranged GET
	// before declaring the source faulty
	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if reqErr != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, getErr := p.client.Do(req)
	if getErr != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
