package batch

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
)

const missingPartMessage = "no response part for operation"

type partResult struct {
	ContentID  string
	StatusCode int
	Body       []byte
}

// Decompose pairs the parts of a multipart batch response with the composed
// operations, by order. Changesets are flattened. Operations without a
// matching part count as failed.
func Decompose(res client.Response, req Request) (core.BatchOutcome, error) {
	results, err := parseResponse(res)
	if err != nil {
		return core.BatchOutcome{}, err
	}
	outcome := core.BatchOutcome{TotalRecords: len(req.Parts), Errors: []core.BatchError{}}
	for idx, part := range req.Parts {
		if idx >= len(results) {
			outcome.Errors = append(outcome.Errors, core.BatchError{
				Index:     idx,
				ContentID: part.ContentID,
				Target:    part.URI,
				Message:   missingPartMessage,
				Operation: part.describe(),
			})
			continue
		}
		result := results[idx]
		if result.StatusCode >= 200 && result.StatusCode < 300 {
			outcome.TotalProcessed++
			continue
		}
		outcome.Errors = append(outcome.Errors, core.BatchError{
			Index:      idx,
			ContentID:  part.ContentID,
			Target:     part.URI,
			StatusCode: result.StatusCode,
			Message:    errorMessage(result.Body),
			Operation:  part.describe(),
		})
	}
	return outcome, nil
}

func parseResponse(res client.Response) ([]partResult, error) {
	mediaType, params, err := mime.ParseMediaType(res.Header("Content-Type"))
	if err != nil {
		return nil, core.DeserializationFailed(err, "batch response")
	}
	if !strings.HasPrefix(mediaType, "multipart/") || strings.TrimSpace(params["boundary"]) == "" {
		return nil, core.DeserializationFailed(nil, "batch response")
	}
	results, err := readParts(bytes.NewReader(res.Body), params["boundary"])
	if err != nil {
		return nil, core.DeserializationFailed(err, "batch response")
	}
	return results, nil
}

func readParts(body io.Reader, boundary string) ([]partResult, error) {
	reader := multipart.NewReader(body, boundary)
	out := make([]partResult, 0)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		mediaType, params, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))
		if strings.HasPrefix(mediaType, "multipart/") {
			nested, err := readParts(part, params["boundary"])
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
			continue
		}
		result, err := readPart(part)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
}

func readPart(part *multipart.Part) (partResult, error) {
	resp, err := http.ReadResponse(bufio.NewReader(part), nil)
	if err != nil {
		return partResult{}, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return partResult{}, err
	}
	return partResult{
		ContentID:  part.Header.Get("Content-ID"),
		StatusCode: resp.StatusCode,
		Body:       payload,
	}, nil
}

// errorMessage prefers the OData error message and falls back to the raw body.
func errorMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return trimmed
}
