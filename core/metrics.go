package core

import (
	"context"
	"fmt"
	"strings"
)

const (
	MetricPrefix = "processes"

	metricSuffixTotal    = "total"
	metricSuffixDuration = "duration_ms"
)

// metricTagKeys are copied from operation fields onto metric tags when set.
var metricTagKeys = []string{"process_id", "batch_type_id", "result_status"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// MetricName returns "processes.<operation>.<suffix>".
func MetricName(operation string, suffix string) string {
	return MetricPrefix + "." + normalizeOperation(operation) + "." + strings.TrimSpace(suffix)
}

func operationTags(operation string, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range metricTagKeys {
		if value := strings.TrimSpace(fmt.Sprint(fields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
