package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-processes/core"
)

var (
	_ gocmd.Querier[GetProcessRunMessage, core.ProcessRun]       = (*GetProcessRunQuery)(nil)
	_ gocmd.Querier[ListProcessRunsMessage, core.ProcessRunPage] = (*ListProcessRunsQuery)(nil)
	_ gocmd.Querier[ListProcessesMessage, Catalog]               = (*ListProcessesQuery)(nil)

	_ ProcessCatalog = (*core.Dispatcher)(nil)
)
