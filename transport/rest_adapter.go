package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-processes/core"
	"github.com/hashicorp/go-cleanhttp"
)

const KindREST = "rest"

const defaultRESTResponseBodyLimit int64 = 32 << 20 // 32 MiB, batch responses can be large

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter is the single HTTP exchange used by the entity-store client.
// It applies the per-request timeout and a response size limit; it does not
// retry and does not interpret status codes.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Timeout              time.Duration
}

func NewRESTAdapter(client HTTPDoer) *RESTAdapter {
	if client == nil {
		pooled := cleanhttp.DefaultPooledClient()
		pooled.Timeout = core.DefaultRequestTimeout
		client = pooled
	}
	return &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
	}
}

// NewRESTAdapterFromConfig builds a pooled adapter bounded by the configured
// request timeout.
func NewRESTAdapterFromConfig(cfg core.EndpointConfig) *RESTAdapter {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = core.DefaultRequestTimeout
	}
	pooled := cleanhttp.DefaultPooledClient()
	pooled.Timeout = timeout
	adapter := NewRESTAdapter(pooled)
	adapter.Timeout = timeout
	return adapter
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, failure(nil, goerrors.CategoryInternal,
			"transport: rest adapter requires an http client", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	httpReq, cancel, err := a.newRequest(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	defer cancel()

	target := map[string]any{"method": httpReq.Method, "url": httpReq.URL.String()}
	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, failure(err, goerrors.CategoryExternal,
			"transport: execute http request", target)
	}
	defer httpRes.Body.Close()

	payload, err := a.readBody(httpRes)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       payload,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

// newRequest validates req and builds the outbound request. The returned
// cancel func releases the per-request timeout and must always be called.
func (a *RESTAdapter) newRequest(ctx context.Context, req core.TransportRequest) (*http.Request, context.CancelFunc, error) {
	noop := func() {}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, noop, failure(nil, goerrors.CategoryBadInput, "transport: request url is required", nil)
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || !parsedURL.IsAbs() {
		return nil, noop, failure(err, goerrors.CategoryBadInput, "transport: invalid request url",
			map[string]any{"url": rawURL})
	}
	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = a.Timeout
	}
	cancel := noop
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, parsedURL.String(), body)
	if err != nil {
		cancel()
		return nil, noop, failure(err, goerrors.CategoryBadInput, "transport: create http request",
			map[string]any{"method": method, "url": parsedURL.String()})
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	return httpReq, cancel, nil
}

func (a *RESTAdapter) readBody(res *http.Response) ([]byte, error) {
	limit := a.MaxResponseBodyBytes
	if limit <= 0 {
		limit = defaultRESTResponseBodyLimit
	}
	payload, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, failure(err, goerrors.CategoryExternal, "transport: read response body",
			map[string]any{"status_code": res.StatusCode})
	}
	if int64(len(payload)) > limit {
		return nil, failure(nil, goerrors.CategoryExternal,
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			map[string]any{"status_code": res.StatusCode, "response_limit_b": limit})
	}
	return payload, nil
}

func setHeaders(target http.Header, headers map[string]string) {
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			target.Set(key, strings.TrimSpace(value))
		}
	}
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
