package devkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
	"time"

	"github.com/goliatone/go-processes/auth"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
)

const BatchResponseBoundary = "batchresponse_devkit"

// Identity returns a complete service identity pointing at a fake host.
func Identity(id string, role string) core.ServiceIdentity {
	return core.ServiceIdentity{
		ID:           id,
		Role:         role,
		TenantID:     "tenant-" + id,
		ClientID:     "client-" + id,
		ClientSecret: "secret-" + id,
		BaseURL:      "https://" + id + ".crm.example.test",
	}
}

// Registry builds a credential registry from identities and fails the test
// setup loudly when they are invalid.
func Registry(identities ...core.ServiceIdentity) *core.CredentialRegistry {
	registry, err := core.NewCredentialRegistry(identities...)
	if err != nil {
		panic(fmt.Sprintf("devkit: invalid identities: %v", err))
	}
	return registry
}

// ScriptedExchanger hands out tokens in order and counts exchanges.
type ScriptedExchanger struct {
	mu     sync.Mutex
	tokens []auth.Token
	err    error
	calls  int
}

func NewScriptedExchanger(tokens ...auth.Token) *ScriptedExchanger {
	return &ScriptedExchanger{tokens: append([]auth.Token(nil), tokens...)}
}

// FailingExchanger fails every exchange with err.
func FailingExchanger(err error) *ScriptedExchanger {
	return &ScriptedExchanger{err: err}
}

func (e *ScriptedExchanger) Exchange(ctx context.Context, _ core.ServiceIdentity) (auth.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := ctx.Err(); err != nil {
		return auth.Token{}, err
	}
	if e.err != nil {
		return auth.Token{}, e.err
	}
	if len(e.tokens) == 0 {
		return auth.Token{Value: fmt.Sprintf("token-%d", e.calls), ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
	idx := e.calls - 1
	if idx >= len(e.tokens) {
		idx = len(e.tokens) - 1
	}
	return e.tokens[idx], nil
}

func (e *ScriptedExchanger) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// NewClient wires a client over a fake transport and a token cache backed by
// exchanger.
func NewClient(adapter core.TransportAdapter, exchanger auth.Exchanger) (*client.Client, *auth.TokenCache) {
	if exchanger == nil {
		exchanger = NewScriptedExchanger()
	}
	cache := auth.NewTokenCache(auth.TokenCacheConfig{Exchanger: exchanger})
	c, err := client.New(core.DefaultConfig().Endpoints, cache, adapter)
	if err != nil {
		panic(fmt.Sprintf("devkit: client setup: %v", err))
	}
	return c, cache
}

func JSONResponse(status int, value any) core.TransportResponse {
	body, err := json.Marshal(value)
	if err != nil {
		panic(fmt.Sprintf("devkit: marshal fixture: %v", err))
	}
	return core.TransportResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json; odata.metadata=minimal"},
		Body:       body,
	}
}

// Collection is a 200 OData collection response.
func Collection(records ...any) TransportScript {
	if records == nil {
		records = []any{}
	}
	return TransportScript{Response: JSONResponse(http.StatusOK, map[string]any{"value": records})}
}

func Status(status int, body string) TransportScript {
	return TransportScript{Response: core.TransportResponse{StatusCode: status, Body: []byte(body)}}
}

func NoContent() TransportScript {
	return Status(http.StatusNoContent, "")
}

// BatchPart is one scripted part of a batch response.
type BatchPart struct {
	Status int
	Body   string
}

// BatchResponse renders a multipart/mixed batch response, one part per entry.
func BatchResponse(parts ...BatchPart) TransportScript {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(BatchResponseBoundary); err != nil {
		panic(err)
	}
	for idx, part := range parts {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/http")
		header.Set("Content-Transfer-Encoding", "binary")
		header.Set("Content-ID", fmt.Sprint(idx+1))
		w, err := writer.CreatePart(header)
		if err != nil {
			panic(err)
		}
		fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", part.Status, http.StatusText(part.Status))
		if part.Body == "" {
			fmt.Fprint(w, "\r\n")
			continue
		}
		fmt.Fprintf(w, "Content-Type: application/json\r\nContent-Length: %d\r\n\r\n%s", len(part.Body), part.Body)
	}
	if err := writer.Close(); err != nil {
		panic(err)
	}
	return TransportScript{Response: core.TransportResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "multipart/mixed; boundary=" + BatchResponseBoundary},
		Body:       buf.Bytes(),
	}}
}

// BatchStatuses is BatchResponse with empty bodies for 2xx parts and an
// OData error body otherwise.
func BatchStatuses(statuses ...int) TransportScript {
	parts := make([]BatchPart, 0, len(statuses))
	for _, status := range statuses {
		part := BatchPart{Status: status}
		if status >= 300 {
			part.Body = fmt.Sprintf(`{"error":{"message":"%s"}}`, http.StatusText(status))
		}
		parts = append(parts, part)
	}
	return BatchResponse(parts...)
}
