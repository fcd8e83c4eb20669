package core

import (
	"encoding/json"
	"strings"
	"time"
)

type OrganizationVerificationParameters struct {
	OrganizationID string `json:"organizationId"`
	// ProgramYear scopes the requirement lookup. Zero means the current year.
	ProgramYear int `json:"programYear,omitempty"`
}

type FundingCalculationParameters struct {
	ApplicationID  string `json:"applicationId"`
	OrganizationID string `json:"organizationId,omitempty"`
}

type NotificationParameters struct {
	ProgramID string    `json:"programId"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message,omitempty"`
	DueOn     time.Time `json:"dueOn,omitzero"`
}

type InactiveClosureParameters struct {
	EntitySet    string `json:"entitySet"`
	InactiveDays int    `json:"inactiveDays"`
	// MaxRecords caps one invocation. Zero means no cap.
	MaxRecords int `json:"maxRecords,omitempty"`
}

// ProcessParameter is the envelope handed to every provider. Providers only
// read the sub-parameter shape they declare; it is passed by value.
type ProcessParameter struct {
	OrganizationVerification *OrganizationVerificationParameters `json:"organizationVerification,omitempty"`
	FundingCalculation       *FundingCalculationParameters       `json:"fundingCalculation,omitempty"`
	Notification             *NotificationParameters             `json:"notification,omitempty"`
	InactiveClosure          *InactiveClosureParameters          `json:"inactiveClosure,omitempty"`

	TriggeredBy string    `json:"triggeredBy,omitempty"`
	TriggeredOn time.Time `json:"triggeredOn,omitzero"`
	CallerID    string    `json:"callerId,omitempty"`
}

// Clone returns a deep copy so callers cannot observe provider mutations.
func (p ProcessParameter) Clone() ProcessParameter {
	out := p
	if p.OrganizationVerification != nil {
		value := *p.OrganizationVerification
		out.OrganizationVerification = &value
	}
	if p.FundingCalculation != nil {
		value := *p.FundingCalculation
		out.FundingCalculation = &value
	}
	if p.Notification != nil {
		value := *p.Notification
		out.Notification = &value
	}
	if p.InactiveClosure != nil {
		value := *p.InactiveClosure
		out.InactiveClosure = &value
	}
	return out
}

// ReferenceTime is TriggeredOn, or now when the caller left it empty.
func (p ProcessParameter) ReferenceTime(now func() time.Time) time.Time {
	if !p.TriggeredOn.IsZero() {
		return p.TriggeredOn.UTC()
	}
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

// RunProcessRequest is the wire shape of the process dispatch surface.
type RunProcessRequest struct {
	ProcessID  int              `json:"processId"`
	Parameters ProcessParameter `json:"parameters"`
}

func DecodeRunProcessRequest(payload []byte) (RunProcessRequest, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return RunProcessRequest{}, ValidationFailed("body", "request body is required")
	}
	var req RunProcessRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return RunProcessRequest{}, ValidationFailed("body", "request body is not valid json: "+err.Error())
	}
	if req.ProcessID <= 0 {
		return RunProcessRequest{}, ValidationFailed("processId", "process id must be positive")
	}
	return req, nil
}

// RunBatchRequest is the wire shape of the batch dispatch surface.
type RunBatchRequest struct {
	BatchTypeID int             `json:"batchTypeId"`
	Document    json.RawMessage `json:"document"`
}

func DecodeRunBatchRequest(payload []byte) (RunBatchRequest, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return RunBatchRequest{}, ValidationFailed("body", "request body is required")
	}
	var req RunBatchRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return RunBatchRequest{}, ValidationFailed("body", "request body is not valid json: "+err.Error())
	}
	if req.BatchTypeID <= 0 {
		return RunBatchRequest{}, ValidationFailed("batchTypeId", "batch type id must be positive")
	}
	return req, nil
}
