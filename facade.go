package processes

import (
	"fmt"

	processcommand "github.com/goliatone/go-processes/command"
	"github.com/goliatone/go-processes/core"
	processquery "github.com/goliatone/go-processes/query"
)

// FacadeDispatcher is what the facade's commands and queries delegate to.
// *core.Dispatcher satisfies it.
type FacadeDispatcher interface {
	processcommand.Dispatcher
	processquery.ProcessCatalog
}

type Commands struct {
	RunProcess *processcommand.RunProcessCommand
	RunBatch   *processcommand.RunBatchCommand
}

// Queries holds the query handlers. GetRun and ListRuns are nil when no run
// reader is available.
type Queries struct {
	ListProcesses *processquery.ListProcessesQuery
	GetRun        *processquery.GetProcessRunQuery
	ListRuns      *processquery.ListProcessRunsQuery
}

type Facade struct {
	dispatcher FacadeDispatcher
	runs       processquery.ProcessRunReader
	commands   Commands
	queries    Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	runReader processquery.ProcessRunReader
}

func WithRunReader(reader processquery.ProcessRunReader) FacadeOption {
	return func(options *facadeOptions) {
		options.runReader = reader
	}
}

func NewFacade(dispatcher FacadeDispatcher, opts ...FacadeOption) (*Facade, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("processes: dispatcher is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.runReader
	if reader == nil {
		reader = resolveRunReader(dispatcher)
	}

	facade := &Facade{dispatcher: dispatcher, runs: reader}
	facade.commands = Commands{
		RunProcess: processcommand.NewRunProcessCommand(dispatcher),
		RunBatch:   processcommand.NewRunBatchCommand(dispatcher),
	}
	facade.queries = Queries{
		ListProcesses: processquery.NewListProcessesQuery(dispatcher),
	}
	if reader != nil {
		facade.queries.GetRun = processquery.NewGetProcessRunQuery(reader)
		facade.queries.ListRuns = processquery.NewListProcessRunsQuery(reader)
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Dispatcher() FacadeDispatcher {
	if f == nil {
		return nil
	}
	return f.dispatcher
}

// RunReader returns the reader backing the run queries, or nil.
func (f *Facade) RunReader() processquery.ProcessRunReader {
	if f == nil {
		return nil
	}
	return f.runs
}

// resolveRunReader reuses the dispatcher's run recorder when it can also read
// runs back, as the SQL ledger does.
func resolveRunReader(dispatcher FacadeDispatcher) processquery.ProcessRunReader {
	if reader, ok := dispatcher.(processquery.ProcessRunReader); ok {
		return reader
	}
	provider, ok := dispatcher.(interface{ RunRecorder() core.RunRecorder })
	if !ok {
		return nil
	}
	recorder := provider.RunRecorder()
	if recorder == nil {
		return nil
	}
	reader, ok := recorder.(processquery.ProcessRunReader)
	if !ok {
		return nil
	}
	return reader
}
