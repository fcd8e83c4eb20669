package devkit

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/goliatone/go-processes/core"
)

type TransportScript struct {
	Response core.TransportResponse
	Err      error
}

// Route answers every request whose method and URL match. An empty Method
// matches any method; URLContains is a substring of the full URL.
type Route struct {
	Method      string
	URLContains string
	Script      TransportScript
}

func (r Route) matches(req core.TransportRequest) bool {
	if method := strings.TrimSpace(r.Method); method != "" && !strings.EqualFold(method, req.Method) {
		return false
	}
	return strings.Contains(req.URL, r.URLContains)
}

// FakeTransportAdapter replays scripted responses. Routes are tried first;
// otherwise scripts are consumed in order and the last one repeats.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	kind     string
	routes   []Route
	scripts  []TransportScript
	requests []core.TransportRequest
}

func NewFakeTransportAdapter(kind string, scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:    strings.TrimSpace(strings.ToLower(kind)),
		scripts: append([]TransportScript(nil), scripts...),
	}
}

// NewRoutedTransportAdapter answers unmatched requests with 404.
func NewRoutedTransportAdapter(routes ...Route) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		kind:   "rest",
		routes: append([]Route(nil), routes...),
		scripts: []TransportScript{{Response: core.TransportResponse{
			StatusCode: http.StatusNotFound,
			Body:       []byte(`{"error":{"message":"no route"}}`),
		}}},
	}
}

func (a *FakeTransportAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *FakeTransportAdapter) Do(_ context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil {
		return core.TransportResponse{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneTransportRequest(req))
	for _, route := range a.routes {
		if route.matches(req) {
			return cloneTransportResponse(route.Script.Response), route.Script.Err
		}
	}
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneTransportResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneTransportResponse(last.Response), last.Err
	}
	return core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{},
		Metadata:   map[string]any{"kind": a.kind},
	}, nil
}

func (a *FakeTransportAdapter) Requests() []core.TransportRequest {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]core.TransportRequest, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneTransportRequest(item))
	}
	return out
}

// RequestsTo returns the captured requests for one method whose URL contains
// fragment.
func (a *FakeTransportAdapter) RequestsTo(method string, fragment string) []core.TransportRequest {
	out := make([]core.TransportRequest, 0)
	for _, item := range a.Requests() {
		if strings.EqualFold(item.Method, method) && strings.Contains(item.URL, fragment) {
			out = append(out, item)
		}
	}
	return out
}

func cloneTransportRequest(in core.TransportRequest) core.TransportRequest {
	out := core.TransportRequest{
		Method:  in.Method,
		URL:     in.URL,
		Headers: map[string]string{},
		Body:    append([]byte(nil), in.Body...),
		Timeout: in.Timeout,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	return out
}

func cloneTransportResponse(in core.TransportResponse) core.TransportResponse {
	out := core.TransportResponse{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ core.TransportAdapter = (*FakeTransportAdapter)(nil)
