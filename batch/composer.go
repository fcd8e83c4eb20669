package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/google/uuid"
)

const boundaryPrefix = "batch_"

// MaxBatchOperations is the most operations the server accepts in one $batch.
const MaxBatchOperations = 1000

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

func (k Kind) method() string {
	switch k {
	case KindCreate:
		return http.MethodPost
	case KindUpdate:
		return http.MethodPatch
	case KindDelete:
		return http.MethodDelete
	default:
		return ""
	}
}

// Target addresses a collection (Create) or a single record (Update, Delete).
type Target struct {
	Set string
	ID  string
}

func (t Target) String() string {
	if strings.TrimSpace(t.ID) == "" {
		return t.Set
	}
	return client.EntityPath(t.Set, t.ID)
}

// Operation is one logical write inside a batch.
type Operation struct {
	Kind    Kind
	Target  Target
	Body    any
	Headers map[string]string
}

func Create(set string, body any) Operation {
	return Operation{Kind: KindCreate, Target: Target{Set: set}, Body: body}
}

func Update(set string, id string, body any) Operation {
	return Operation{Kind: KindUpdate, Target: Target{Set: set, ID: id}, Body: body}
}

func Delete(set string, id string) Operation {
	return Operation{Kind: KindDelete, Target: Target{Set: set, ID: id}}
}

// Part is the rendered form of one operation, kept for error reporting.
type Part struct {
	ContentID string
	Method    string
	URI       string
	Body      []byte
}

func (p Part) describe() string {
	line := p.Method + " " + p.URI
	if len(p.Body) == 0 {
		return line
	}
	return line + " " + string(p.Body)
}

// Request is a composed batch: the multipart payload and the parts it holds,
// in submission order.
type Request struct {
	Boundary string
	Body     []byte
	Parts    []Part
}

func (r Request) ContentType() string {
	return "multipart/mixed; boundary=" + r.Boundary
}

// Sender posts a composed batch. *client.Client satisfies it.
type Sender interface {
	SendBatch(ctx context.Context, identity core.ServiceIdentity, body []byte, boundary string, callerID string) (client.Response, error)
}

type Option func(*Composer)

func WithLogger(logger core.Logger) Option {
	return func(c *Composer) {
		c.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(c *Composer) {
		c.loggerProvider = provider
	}
}

// WithBoundaryFunc replaces the boundary generator.
func WithBoundaryFunc(fn func() string) Option {
	return func(c *Composer) {
		if fn != nil {
			c.boundary = fn
		}
	}
}

type Composer struct {
	sender         Sender
	logger         core.Logger
	loggerProvider core.LoggerProvider
	boundary       func() string
}

func NewComposer(sender Sender, opts ...Option) *Composer {
	c := &Composer{
		sender: sender,
		boundary: func() string {
			return boundaryPrefix + uuid.NewString()
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	provider, logger := glog.Resolve("processes.batch", c.loggerProvider, c.logger)
	c.loggerProvider = provider
	c.logger = glog.Ensure(logger)
	return c
}

// Compose renders ops into one multipart/mixed payload. Content-IDs are
// 1-based and follow the order of ops.
func (c *Composer) Compose(ops []Operation) (Request, error) {
	if len(ops) == 0 {
		return Request{}, core.ValidationFailed("operations", "batch requires at least one operation")
	}
	boundary := boundaryPrefix + uuid.NewString()
	if c != nil && c.boundary != nil {
		boundary = c.boundary()
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.SetBoundary(boundary); err != nil {
		return Request{}, core.ValidationFailed("boundary", "invalid batch boundary: "+err.Error())
	}

	parts := make([]Part, 0, len(ops))
	for idx, op := range ops {
		part, err := renderPart(idx, op)
		if err != nil {
			return Request{}, err
		}
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", "application/http")
		header.Set("Content-Transfer-Encoding", "binary")
		header.Set("Content-ID", part.ContentID)
		w, err := writer.CreatePart(header)
		if err != nil {
			return Request{}, core.InternalError("batch: create part: " + err.Error())
		}
		if _, err := w.Write(encodeHTTPRequest(part, op.Headers)); err != nil {
			return Request{}, core.InternalError("batch: write part: " + err.Error())
		}
		parts = append(parts, part)
	}
	if err := writer.Close(); err != nil {
		return Request{}, core.InternalError("batch: close payload: " + err.Error())
	}
	return Request{Boundary: boundary, Body: buf.Bytes(), Parts: parts}, nil
}

// Submit composes, sends and decomposes a batch. A non-2xx response for the
// whole batch counts every operation as failed and is also returned as a
// RemoteCallFailed error; the outcome is still populated.
func (c *Composer) Submit(ctx context.Context, identity core.ServiceIdentity, ops []Operation, callerID string) (core.BatchOutcome, error) {
	if c == nil || c.sender == nil {
		return core.BatchOutcome{}, core.InternalError("batch: composer requires a sender")
	}
	req, err := c.Compose(ops)
	if err != nil {
		return core.BatchOutcome{}, err
	}
	res, err := c.sender.SendBatch(ctx, identity, req.Body, req.Boundary, callerID)
	if err != nil {
		return core.BatchOutcome{}, err
	}
	if !res.Successful() {
		outcome := failAll(req, res.StatusCode, errorMessage(res.Body))
		c.logger.Warn("batch rejected",
			"identity_id", identity.ID,
			"status_code", res.StatusCode,
			"operations", len(req.Parts),
			"body", strings.TrimSpace(string(res.Body)),
		)
		return outcome, core.RemoteCallFailed(res.StatusCode, "$batch", res.Body)
	}
	outcome, err := Decompose(res, req)
	if err != nil {
		return core.BatchOutcome{}, err
	}
	for _, failure := range outcome.Errors {
		c.logger.Warn("batch operation failed",
			"identity_id", identity.ID,
			"content_id", failure.ContentID,
			"status_code", failure.StatusCode,
			"operation", failure.Operation,
			"message", failure.Message,
		)
	}
	c.logger.Debug("batch completed",
		"identity_id", identity.ID,
		"total_records", outcome.TotalRecords,
		"total_processed", outcome.TotalProcessed,
	)
	return outcome, nil
}

func renderPart(idx int, op Operation) (Part, error) {
	method := op.Kind.method()
	if method == "" {
		return Part{}, core.ValidationFailed("kind", fmt.Sprintf("operation %d has unsupported kind %q", idx+1, op.Kind))
	}
	set := strings.TrimSpace(op.Target.Set)
	if set == "" {
		return Part{}, core.ValidationFailed("target.set", fmt.Sprintf("operation %d requires an entity set", idx+1))
	}
	if op.Kind != KindCreate && strings.TrimSpace(op.Target.ID) == "" {
		return Part{}, core.ValidationFailed("target.id", fmt.Sprintf("operation %d requires a record id", idx+1))
	}
	uri := set
	if op.Kind != KindCreate {
		uri = client.EntityPath(set, op.Target.ID)
	}
	body, err := encodeOperationBody(op)
	if err != nil {
		return Part{}, err
	}
	return Part{
		ContentID: strconv.Itoa(idx + 1),
		Method:    method,
		URI:       uri,
		Body:      body,
	}, nil
}

func encodeOperationBody(op Operation) ([]byte, error) {
	if op.Kind == KindDelete || op.Body == nil {
		return nil, nil
	}
	switch typed := op.Body.(type) {
	case []byte:
		return typed, nil
	case json.RawMessage:
		return []byte(typed), nil
	}
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(op.Body); err != nil {
		return nil, core.ValidationFailed("body", "operation body is not serializable: "+err.Error())
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func encodeHTTPRequest(part Part, headers map[string]string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", part.Method, part.URI)
	if len(part.Body) > 0 {
		buf.WriteString("Content-Type: application/json; type=entry\r\n")
	}
	for key, value := range headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}
	buf.WriteString("\r\n")
	if len(part.Body) > 0 {
		buf.Write(part.Body)
		buf.WriteString("\r\n")
	}
	return buf.Bytes()
}

func failAll(req Request, statusCode int, message string) core.BatchOutcome {
	outcome := core.BatchOutcome{TotalRecords: len(req.Parts), Errors: make([]core.BatchError, 0, len(req.Parts))}
	for idx, part := range req.Parts {
		outcome.Errors = append(outcome.Errors, core.BatchError{
			Index:      idx,
			ContentID:  part.ContentID,
			Target:     part.URI,
			StatusCode: statusCode,
			Message:    message,
			Operation:  part.describe(),
		})
	}
	return outcome
}

// SubmitChunked sends ops as consecutive batches of at most size operations
// and merges the outcomes in order. A rejected chunk counts its operations as
// failed and later chunks are still sent; the first rejection is returned
// only when nothing was processed. Any other error stops at that chunk and is
// returned with the outcome gathered so far.
func (c *Composer) SubmitChunked(ctx context.Context, identity core.ServiceIdentity, ops []Operation, callerID string, size int) (core.BatchOutcome, error) {
	if size <= 0 || size > MaxBatchOperations {
		size = MaxBatchOperations
	}
	if len(ops) <= size {
		return c.Submit(ctx, identity, ops, callerID)
	}
	merged := core.BatchOutcome{Errors: []core.BatchError{}}
	var rejected error
	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))
		outcome, err := c.Submit(ctx, identity, ops[start:end], callerID)
		if err != nil && !core.IsRemoteCallFailed(err) {
			return merged, err
		}
		if err != nil && rejected == nil {
			rejected = err
		}
		merged = merged.Append(outcome)
	}
	c.logger.Debug("chunked batch completed",
		"identity_id", identity.ID,
		"chunks", (len(ops)+size-1)/size,
		"total_records", merged.TotalRecords,
		"total_processed", merged.TotalProcessed,
	)
	if rejected != nil && merged.TotalProcessed == 0 {
		return merged, rejected
	}
	return merged, nil
}
