package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-processes/core"
)

var (
	_ gocmd.Commander[RunProcessMessage] = (*RunProcessCommand)(nil)
	_ gocmd.Commander[RunBatchMessage]   = (*RunBatchCommand)(nil)

	_ Dispatcher = (*core.Dispatcher)(nil)
)
