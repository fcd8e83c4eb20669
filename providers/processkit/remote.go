package processkit

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
)

// FetchAll retrieves every page of query and decodes the records. Non-2xx
// pages become RemoteCallFailed errors carrying the body.
func FetchAll[R any](ctx context.Context, base Base, query string, opts ...client.RetrieveOption) ([]R, error) {
	res, err := base.Client.RetrieveAll(ctx, base.Identity, query, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.CheckStatus(res, query); err != nil {
		base.Logger.Error("fetch failed", "uri", query, "status_code", res.StatusCode, "body", strings.TrimSpace(string(res.Body)))
		return nil, err
	}
	return client.DecodeCollection[R](res)
}

// FetchAllXML runs a FetchXML query across every paging-cookie page and
// decodes the records.
func FetchAllXML[R any](ctx context.Context, base Base, query client.FetchQuery, opts ...client.RetrieveOption) ([]R, error) {
	res, err := base.Client.RetrieveAllFetch(ctx, base.Identity, query, opts...)
	if err != nil {
		return nil, err
	}
	if err := client.CheckStatus(res, query.EntitySet); err != nil {
		base.Logger.Error("fetch failed", "entity_set", query.EntitySet, "status_code", res.StatusCode, "body", strings.TrimSpace(string(res.Body)))
		return nil, err
	}
	return client.DecodeCollection[R](res)
}

// PatchOne issues a single-record update and reports it as a one-record
// outcome. Transport and token errors are returned as errors.
func PatchOne(ctx context.Context, base Base, resourcePath string, body any) (core.BatchOutcome, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return core.BatchOutcome{}, core.ValidationFailed("body", "update body is not serializable: "+err.Error())
	}
	res, err := base.Client.Update(ctx, base.Identity, resourcePath, json.RawMessage(payload))
	if err != nil {
		return core.BatchOutcome{}, err
	}
	operation := http.MethodPatch + " " + resourcePath + " " + string(payload)
	if !res.Successful() {
		base.Logger.Error("write-back failed", "uri", resourcePath, "status_code", res.StatusCode, "body", strings.TrimSpace(string(res.Body)))
	}
	return core.SingleWriteOutcome(resourcePath, res.StatusCode, strings.TrimSpace(string(res.Body)), operation), nil
}
