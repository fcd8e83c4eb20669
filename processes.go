// Package processes dispatches numbered business processes against a remote
// entity store on behalf of configured service identities.
package processes

import "github.com/goliatone/go-processes/core"

type Config = core.Config
type IdentityConfig = core.IdentityConfig
type EndpointConfig = core.EndpointConfig
type AuthConfig = core.AuthConfig

type Option = core.Option

type Dispatcher = core.Dispatcher
type ServiceIdentity = core.ServiceIdentity
type CredentialRegistry = core.CredentialRegistry
type ProcessProvider = core.ProcessProvider
type BatchProvider = core.BatchProvider
type ProcessDescriptor = core.ProcessDescriptor
type ProcessParameter = core.ProcessParameter
type ProcessResult = core.ProcessResult
type ProcessStatus = core.ProcessStatus
type RunProcessRequest = core.RunProcessRequest
type RunBatchRequest = core.RunBatchRequest
type RunRecord = core.RunRecord
type RunRecorder = core.RunRecorder
type ResultPublisher = core.ResultPublisher
type ProcessRun = core.ProcessRun
type ProcessRunFilter = core.ProcessRunFilter
type ProcessRunPage = core.ProcessRunPage

const (
	RoleSystem       = core.RoleSystem
	RolePortal       = core.RolePortal
	RoleNotification = core.RoleNotification
)

var (
	WithLogger           = core.WithLogger
	WithLoggerProvider   = core.WithLoggerProvider
	WithMetricsRecorder  = core.WithMetricsRecorder
	WithErrorMapper      = core.WithErrorMapper
	WithConfigProvider   = core.WithConfigProvider
	WithOptionsResolver  = core.WithOptionsResolver
	WithProcessProviders = core.WithProcessProviders
	WithBatchProviders   = core.WithBatchProviders
	WithRunRecorder      = core.WithRunRecorder
	WithResultPublisher  = core.WithResultPublisher
	WithClock            = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewDispatcher(cfg Config, opts ...Option) (*Dispatcher, error) {
	return core.NewDispatcher(cfg, opts...)
}

// DecodeRunProcessRequest parses a {processId, parameters} dispatch payload.
func DecodeRunProcessRequest(payload []byte) (RunProcessRequest, error) {
	return core.DecodeRunProcessRequest(payload)
}

// DecodeRunBatchRequest parses a {batchTypeId, document} dispatch payload.
func DecodeRunBatchRequest(payload []byte) (RunBatchRequest, error) {
	return core.DecodeRunBatchRequest(payload)
}
