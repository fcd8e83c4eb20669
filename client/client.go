package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/core"
)

const (
	HeaderCallerID = "MSCRMCallerID"

	formattedValueAnnotation = "OData.Community.Display.V1.FormattedValue"
	fetchPagingAnnotations   = "Microsoft.Dynamics.CRM.fetchxmlpagingcookie,Microsoft.Dynamics.CRM.morerecords"
)

// TokenSource yields a bearer token for a service identity.
type TokenSource interface {
	FetchToken(ctx context.Context, identity core.ServiceIdentity) (string, error)
}

// Request is one directed HTTP intent. URI may be relative to the CRUD base
// or absolute. It is built per call and consumed once.
type Request struct {
	Method  string
	URI     string
	Headers map[string]string
	Body    []byte
}

type Response = core.TransportResponse

type Option func(*Client)

func WithLogger(logger core.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(c *Client) {
		c.loggerProvider = provider
	}
}

// Client issues entity-store operations on behalf of a service identity. It
// never retries and never interprets status codes; callers decide what a
// non-2xx response means.
type Client struct {
	cfg            core.EndpointConfig
	tokens         TokenSource
	adapter        core.TransportAdapter
	logger         core.Logger
	loggerProvider core.LoggerProvider
}

func New(cfg core.EndpointConfig, tokens TokenSource, adapter core.TransportAdapter, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, core.ValidationFailed("tokens", "token source is required")
	}
	if adapter == nil {
		return nil, core.ValidationFailed("adapter", "transport adapter is required")
	}
	defaults := core.DefaultConfig().Endpoints
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = defaults.APIVersion
	}
	if strings.TrimSpace(cfg.SearchVersion) == "" {
		cfg.SearchVersion = defaults.SearchVersion
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = defaults.DefaultPageSize
	}
	c := &Client{cfg: cfg, tokens: tokens, adapter: adapter}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	provider, logger := glog.Resolve("processes.client", c.loggerProvider, c.logger)
	c.loggerProvider = provider
	c.logger = glog.Ensure(logger)
	return c, nil
}

func (c *Client) CRUDBase(identity core.ServiceIdentity) string {
	return fmt.Sprintf("%s/api/data/%s/", strings.TrimRight(identity.BaseURL, "/"), c.cfg.APIVersion)
}

func (c *Client) BatchURL(identity core.ServiceIdentity) string {
	return c.CRUDBase(identity) + "$batch"
}

func (c *Client) SearchURL(identity core.ServiceIdentity) string {
	return fmt.Sprintf("%s/api/search/%s/query", strings.TrimRight(identity.BaseURL, "/"), c.cfg.SearchVersion)
}

// ResolveURI returns absolute URIs unchanged and resolves the rest against
// the CRUD base.
func (c *Client) ResolveURI(identity core.ServiceIdentity, uri string) string {
	uri = strings.TrimSpace(uri)
	lowered := strings.ToLower(uri)
	if strings.HasPrefix(lowered, "https://") || strings.HasPrefix(lowered, "http://") {
		return uri
	}
	return c.CRUDBase(identity) + strings.TrimLeft(uri, "/")
}

type retrieveOptions struct {
	pageSize    int
	annotations []string
}

type RetrieveOption func(*retrieveOptions)

func WithPageSize(size int) RetrieveOption {
	return func(o *retrieveOptions) {
		if size > 0 {
			o.pageSize = size
		}
	}
}

func WithFormattedValues() RetrieveOption {
	return func(o *retrieveOptions) {
		o.annotations = append(o.annotations, formattedValueAnnotation)
	}
}

func withFetchPaging() RetrieveOption {
	return func(o *retrieveOptions) {
		o.annotations = append(o.annotations, fetchPagingAnnotations)
	}
}

func (c *Client) Retrieve(ctx context.Context, identity core.ServiceIdentity, query string, opts ...RetrieveOption) (Response, error) {
	options := retrieveOptions{pageSize: c.cfg.DefaultPageSize}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	prefer := []string{fmt.Sprintf("odata.maxpagesize=%d", options.pageSize)}
	if len(options.annotations) > 0 {
		prefer = append(prefer, `odata.include-annotations="`+strings.Join(options.annotations, ",")+`"`)
	}
	return c.Do(ctx, identity, Request{
		Method:  http.MethodGet,
		URI:     query,
		Headers: map[string]string{"Prefer": strings.Join(prefer, ",")},
	})
}

func (c *Client) Create(ctx context.Context, identity core.ServiceIdentity, collection string, body any) (Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return Response{}, err
	}
	return c.Do(ctx, identity, Request{
		Method:  http.MethodPost,
		URI:     collection,
		Headers: jsonHeaders(),
		Body:    payload,
	})
}

func (c *Client) Update(ctx context.Context, identity core.ServiceIdentity, resourcePath string, body any) (Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return Response{}, err
	}
	return c.Do(ctx, identity, Request{
		Method:  http.MethodPatch,
		URI:     resourcePath,
		Headers: jsonHeaders(),
		Body:    payload,
	})
}

func (c *Client) Delete(ctx context.Context, identity core.ServiceIdentity, resourcePath string) (Response, error) {
	return c.Do(ctx, identity, Request{Method: http.MethodDelete, URI: resourcePath})
}

func (c *Client) Search(ctx context.Context, identity core.ServiceIdentity, body any) (Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return Response{}, err
	}
	return c.Do(ctx, identity, Request{
		Method:  http.MethodPost,
		URI:     c.SearchURL(identity),
		Headers: jsonHeaders(),
		Body:    payload,
	})
}

// SendBatch posts a composed multipart body to the batch endpoint. The
// store is asked to continue past failed parts.
func (c *Client) SendBatch(ctx context.Context, identity core.ServiceIdentity, body []byte, boundary string, callerID string) (Response, error) {
	if strings.TrimSpace(boundary) == "" {
		return Response{}, core.ValidationFailed("boundary", "batch boundary is required")
	}
	headers := map[string]string{
		"Content-Type": "multipart/mixed; boundary=" + boundary,
		"Prefer":       "odata.continue-on-error",
	}
	if callerID = strings.TrimSpace(callerID); callerID != "" {
		headers[HeaderCallerID] = callerID
	}
	return c.Do(ctx, identity, Request{
		Method:  http.MethodPost,
		URI:     c.BatchURL(identity),
		Headers: headers,
		Body:    body,
	})
}

// Do attaches the identity's bearer token and the OData headers and sends
// the request. Token failures are returned unchanged.
func (c *Client) Do(ctx context.Context, identity core.ServiceIdentity, req Request) (Response, error) {
	if c == nil {
		return Response{}, core.InternalError("client: client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(req.URI) == "" {
		return Response{}, core.ValidationFailed("uri", "request uri is required")
	}
	token, err := c.tokens.FetchToken(ctx, identity)
	if err != nil {
		return Response{}, err
	}

	headers := map[string]string{
		"Accept":           "application/json",
		"OData-Version":    "4.0",
		"OData-MaxVersion": "4.0",
	}
	for key, value := range req.Headers {
		headers[key] = value
	}
	headers["Authorization"] = "Bearer " + token

	uri := c.ResolveURI(identity, req.URI)
	res, err := c.adapter.Do(ctx, core.TransportRequest{
		Method:  req.Method,
		URL:     uri,
		Headers: headers,
		Body:    req.Body,
		Timeout: c.cfg.RequestTimeout,
	})
	if err != nil {
		c.logger.Warn("entity-store request failed", "method", req.Method, "uri", uri, "identity_id", identity.ID, "error", err.Error())
		return Response{}, err
	}
	c.logger.Debug("entity-store request completed", "method", req.Method, "uri", uri, "identity_id", identity.ID, "status_code", res.StatusCode)
	return res, nil
}

func jsonHeaders() map[string]string {
	return map[string]string{"Content-Type": "application/json; charset=utf-8"}
}

func encodeBody(body any) ([]byte, error) {
	switch typed := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case json.RawMessage:
		return []byte(typed), nil
	case string:
		return []byte(typed), nil
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(body); err != nil {
		return nil, core.ValidationFailed("body", "request body is not serializable: "+err.Error())
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
