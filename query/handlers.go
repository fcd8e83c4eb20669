package query

import (
	"context"

	"github.com/goliatone/go-processes/core"
)

type ProcessRunReader interface {
	GetRun(ctx context.Context, id string) (core.ProcessRun, error)
	ListRuns(ctx context.Context, filter core.ProcessRunFilter) (core.ProcessRunPage, error)
}

type ProcessCatalog interface {
	Processes() []core.ProcessDescriptor
	BatchTypes() []core.ProcessDescriptor
}

// Catalog lists registered processes and, when requested, batch types.
type Catalog struct {
	Processes  []core.ProcessDescriptor `json:"processes"`
	BatchTypes []core.ProcessDescriptor `json:"batchTypes,omitempty"`
}

type GetProcessRunQuery struct {
	reader ProcessRunReader
}

func NewGetProcessRunQuery(reader ProcessRunReader) *GetProcessRunQuery {
	return &GetProcessRunQuery{reader: reader}
}

func (q *GetProcessRunQuery) Query(ctx context.Context, msg GetProcessRunMessage) (core.ProcessRun, error) {
	if q == nil || q.reader == nil {
		return core.ProcessRun{}, missingDependency("process run reader")
	}
	if err := msg.Validate(); err != nil {
		return core.ProcessRun{}, err
	}
	return q.reader.GetRun(ctx, msg.RunID)
}

type ListProcessRunsQuery struct {
	reader ProcessRunReader
}

func NewListProcessRunsQuery(reader ProcessRunReader) *ListProcessRunsQuery {
	return &ListProcessRunsQuery{reader: reader}
}

func (q *ListProcessRunsQuery) Query(ctx context.Context, msg ListProcessRunsMessage) (core.ProcessRunPage, error) {
	if q == nil || q.reader == nil {
		return core.ProcessRunPage{}, missingDependency("process run reader")
	}
	if err := msg.Validate(); err != nil {
		return core.ProcessRunPage{}, err
	}
	return q.reader.ListRuns(ctx, msg.Filter)
}

type ListProcessesQuery struct {
	catalog ProcessCatalog
}

func NewListProcessesQuery(catalog ProcessCatalog) *ListProcessesQuery {
	return &ListProcessesQuery{catalog: catalog}
}

func (q *ListProcessesQuery) Query(_ context.Context, msg ListProcessesMessage) (Catalog, error) {
	if q == nil || q.catalog == nil {
		return Catalog{}, missingDependency("process catalog")
	}
	out := Catalog{Processes: q.catalog.Processes()}
	if msg.IncludeBatchTypes {
		out.BatchTypes = q.catalog.BatchTypes()
	}
	return out, nil
}
