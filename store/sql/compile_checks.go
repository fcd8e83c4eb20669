package sqlstore

import (
	"github.com/goliatone/go-processes/core"
	processquery "github.com/goliatone/go-processes/query"
)

var (
	_ core.RunRecorder              = (*ProcessRunStore)(nil)
	_ processquery.ProcessRunReader = (*ProcessRunStore)(nil)
	_ processquery.ProcessRunReader = (*CachedProcessRunReader)(nil)
	_ ProcessRunReader              = (*ProcessRunStore)(nil)
)
