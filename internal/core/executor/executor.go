// Package executor performs the GeoServer calls behind the API, either
// buffering the body or streaming it back to the caller.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/mohammed-shakir/dealmap/internal/core/observability"
)

// upstream bodies above this size are rejected by Fetch
const maxFetchBody = 64 << 20

var ErrBodyTooLarge = errors.New("upstream body too large")

type Interface interface {
	Fetch(ctx context.Context, endpoint string, params url.Values, accept string) ([]byte, string, error)
	Forward(w http.ResponseWriter, r *http.Request, endpoint string, params url.Values, accept string)
}

type Executor struct {
	logger   *slog.Logger
	client   *http.Client
	startNow func() time.Time // for tests
}

func New(logger *slog.Logger, client *http.Client) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Executor{
		logger:   logger,
		client:   client,
		startNow: time.Now,
	}
}

// Fetch runs a GET against endpoint and returns the body and its content type.
// Non-2xx answers become errors carrying the start of the upstream body.
func (e *Executor) Fetch(ctx context.Context, endpoint string, params url.Values, accept string) ([]byte, string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, "", fmt.Errorf("parse endpoint: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	if accept = strings.TrimSpace(accept); accept != "" {
		req.Header.Set("Accept", accept)
	}

	start := e.startNow()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	dur := time.Since(start)
	observability.ObserveUpstreamLatency("geoserver", requestName(params), dur.Seconds())
	e.logger.Debug("upstream fetch",
		"request", requestName(params),
		"status", resp.StatusCode,
		"duration", dur.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, "", fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody+1))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	if len(b) > maxFetchBody {
		return nil, "", ErrBodyTooLarge
	}
	return b, resp.Header.Get("Content-Type"), nil
}

// Forward proxies the request to endpoint with the given query and streams
// the answer (typically a PNG) to w.
func (e *Executor) Forward(w http.ResponseWriter, r *http.Request, endpoint string, params url.Values, accept string) {
	target, err := url.Parse(endpoint)
	if err != nil {
		e.logger.Error("bad upstream endpoint", "endpoint", endpoint, "err", err)
		http.Error(w, "bad upstream endpoint", http.StatusInternalServerError)
		return
	}
	start := e.startNow()
	name := requestName(params)

	rt := http.RoundTripper(http.DefaultTransport)
	if e.client != nil && e.client.Transport != nil {
		rt = e.client.Transport
	}

	proxy := &httputil.ReverseProxy{
		Transport: rt,
		Rewrite: func(p *httputil.ProxyRequest) {
			p.Out.URL.Scheme = target.Scheme
			p.Out.URL.Host = target.Host
			p.Out.URL.Path = target.Path
			p.Out.URL.RawPath = target.EscapedPath()
			p.Out.URL.RawQuery = params.Encode()
			p.Out.Host = target.Host
			if accept != "" {
				p.Out.Header.Set("Accept", accept)
			}
			p.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			dur := time.Since(start)
			e.logger.Debug("forward done",
				"request", name,
				"status", resp.StatusCode,
				"duration", dur.String())
			observability.ObserveUpstreamLatency("geoserver", name, dur.Seconds())
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, _ *http.Request, err error) {
			e.logger.Error("reverse proxy error", "request", name, "err", err)
			http.Error(w, "upstream proxy error: "+err.Error(), http.StatusBadGateway)
		},
	}

	e.logger.Debug("forward", "request", name, "endpoint", target.String())
	proxy.ServeHTTP(w, r)
}

// OGC parameter names are case-insensitive
func requestName(params url.Values) string {
	for k, vs := range params {
		if strings.EqualFold(k, "request") && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}
