package core

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type stubProcess struct {
	id      int
	name    string
	mu      sync.Mutex
	calls   int
	params  []ProcessParameter
	result  ProcessResult
	panicOn bool
}

func (p *stubProcess) ID() int { return p.id }

func (p *stubProcess) Name() string {
	if p.name == "" {
		return "stub-process"
	}
	return p.name
}

func (p *stubProcess) Run(_ context.Context, params ProcessParameter) ProcessResult {
	p.mu.Lock()
	p.calls++
	p.params = append(p.params, params)
	p.mu.Unlock()
	if p.panicOn {
		panic("stub exploded")
	}
	return p.result
}

func (p *stubProcess) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubBatch struct {
	typeID   int
	name     string
	document json.RawMessage
	out      any
	err      error
}

func (b *stubBatch) TypeID() int { return b.typeID }

func (b *stubBatch) Name() string { return b.name }

func (b *stubBatch) Run(_ context.Context, document json.RawMessage) (any, error) {
	b.document = document
	return b.out, b.err
}

type stubRecorder struct {
	mu      sync.Mutex
	records []RunRecord
	err     error
}

func (r *stubRecorder) RecordRun(_ context.Context, record RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return r.err
}

type stubPublisher struct {
	mu      sync.Mutex
	records []RunRecord
	err     error
}

func (p *stubPublisher) PublishResult(_ context.Context, record RunRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	return p.err
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	return l.values, nil
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func testIdentity(id string, role string) ServiceIdentity {
	return ServiceIdentity{
		ID:           id,
		Role:         role,
		TenantID:     "tenant-1",
		ClientID:     "client-" + id,
		ClientSecret: "secret-" + id,
		BaseURL:      "https://org.example.crm.dynamics.com",
	}
}
