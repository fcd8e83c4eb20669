// Package bulkupdate applies caller-supplied field updates to many records
// of one entity set in a single batch.
package bulkupdate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-processes/batch"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/processkit"
)

const (
	TypeID = 1
	Name   = "bulk-record-update"
)

// Document is the batch payload accepted by the provider.
type Document struct {
	EntitySet string         `json:"entitySet"`
	CallerID  string         `json:"callerId,omitempty"`
	Records   []RecordUpdate `json:"records"`
}

type RecordUpdate struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

func DecodeDocument(document json.RawMessage) (Document, error) {
	var doc Document
	if err := json.Unmarshal(document, &doc); err != nil {
		return Document{}, core.ValidationFailed("document", "document is not valid json: "+err.Error())
	}
	doc.EntitySet = strings.TrimSpace(doc.EntitySet)
	if doc.EntitySet == "" {
		return Document{}, core.ValidationFailed("entitySet", "entity set is required")
	}
	for idx, record := range doc.Records {
		if strings.TrimSpace(record.ID) == "" {
			return Document{}, core.ValidationFailed(fmt.Sprintf("records[%d].id", idx), "record id is required")
		}
		if len(record.Fields) == 0 {
			return Document{}, core.ValidationFailed(fmt.Sprintf("records[%d].fields", idx), "at least one field is required")
		}
	}
	return doc, nil
}

type Provider struct {
	base     processkit.Base
	composer *batch.Composer
}

func New(c *client.Client, registry *core.CredentialRegistry, opts ...processkit.Option) (*Provider, error) {
	base, err := processkit.NewBase(Name, c, registry, core.RoleSystem, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{base: base, composer: batch.NewComposer(c, batch.WithLogger(base.Logger))}, nil
}

func (*Provider) TypeID() int {
	return TypeID
}

func (*Provider) Name() string {
	return Name
}

// Run validates the document and returns a ProcessResult. Malformed
// documents are returned as validation errors; remote failures are reported
// in the result.
func (p *Provider) Run(ctx context.Context, document json.RawMessage) (any, error) {
	doc, err := DecodeDocument(document)
	if err != nil {
		return nil, err
	}
	if len(doc.Records) == 0 {
		p.base.Logger.Info("bulk update has no records", "entity_set", doc.EntitySet)
		return core.NewCompletedResult(TypeID, "bulk update: no records to process"), nil
	}
	ops := make([]batch.Operation, 0, len(doc.Records))
	for _, record := range doc.Records {
		ops = append(ops, batch.Update(doc.EntitySet, record.ID, record.Fields))
	}
	outcome, err := p.composer.Submit(ctx, p.base.Identity, ops, doc.CallerID)
	if err != nil && !outcome.HasErrors() {
		p.base.Logger.Error("bulk update failed", "entity_set", doc.EntitySet, "error", err.Error())
		return core.FailedResultFromError(TypeID, err), nil
	}
	policy := core.TolerateFailures
	if err != nil {
		policy = core.FailOnPartial
	}
	result := core.ResultFromOutcome(TypeID, outcome, policy, "bulk update of "+doc.EntitySet)
	p.base.Logger.Info("bulk update finished",
		"entity_set", doc.EntitySet,
		"status", string(result.Status),
		"total_processed", result.TotalProcessed,
		"total_records", result.TotalRecords,
	)
	return result, nil
}

var _ core.BatchProvider = (*Provider)(nil)
