package query

import (
	"strings"

	"github.com/goliatone/go-processes/core"
)

const (
	TypeGetProcessRun   = "processes.query.run.get"
	TypeListProcessRuns = "processes.query.run.list"
	TypeListProcesses   = "processes.query.process.list"
)

type GetProcessRunMessage struct {
	RunID string
}

func (GetProcessRunMessage) Type() string { return TypeGetProcessRun }

func (m GetProcessRunMessage) Validate() error {
	if strings.TrimSpace(m.RunID) == "" {
		return invalidMessage(TypeGetProcessRun, "run_id", "run id is required")
	}
	return nil
}

type ListProcessRunsMessage struct {
	Filter core.ProcessRunFilter
}

func (ListProcessRunsMessage) Type() string { return TypeListProcessRuns }

func (m ListProcessRunsMessage) Validate() error {
	if m.Filter.Page < 0 {
		return invalidMessage(TypeListProcessRuns, "page", "page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return invalidMessage(TypeListProcessRuns, "per_page", "per_page must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return invalidMessage(TypeListProcessRuns, "to", "to must not be before from")
	}
	return nil
}

type ListProcessesMessage struct {
	IncludeBatchTypes bool
}

func (ListProcessesMessage) Type() string { return TypeListProcesses }

func (ListProcessesMessage) Validate() error { return nil }
