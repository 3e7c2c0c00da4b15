// Package metrics provides standardised metric emission for the notification
// queue lifecycle.
package metrics

import (
	goerrors "errors"
	"reflect"
	"strings"
	"time"

	"github.com/andretaki/alliance-form-sub000/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// DeliveryMetric captures details about one delivery attempt for metric emission.
type DeliveryMetric struct {
	JobType  string
	Result   string
	Attempt  int
	Duration time.Duration
	Err      error
}

// EmitDelivery emits standardised delivery attempt metrics.
func EmitDelivery(sink statsd.Sink, in DeliveryMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type": in.JobType,
		"result":   in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("notify.delivery", 1, tags)

	if in.Duration > 0 {
		sink.Timing("notify.delivery_duration", in.Duration, CloneTags(tags))
	}
}

// DrainMetric captures the result of one drain pass.
type DrainMetric struct {
	Processed int
	Sent      int
	Failed    int
	Duration  time.Duration
	Err       error
}

// EmitDrain emits standardised drain pass metrics.
func EmitDrain(sink statsd.Sink, in DrainMetric) {
	if sink == nil {
		return
	}

	result := ResultSuccess
	switch {
	case in.Err != nil:
		result = ResultError
	case in.Processed == 0:
		result = ResultNoop
	}

	tags := map[string]string{"result": result}
	if in.Err != nil {
		if class := Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("notify.drain", 1, tags)
	if in.Processed > 0 {
		sink.Count("notify.drain_processed", int64(in.Processed), CloneTags(tags))
	}
	if in.Duration > 0 {
		sink.Timing("notify.drain_duration", in.Duration, CloneTags(tags))
	}
	if in.Err == nil {
		sink.Gauge("notify.drain_last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

// Classify returns a normalized error type name suitable for tagging metrics/logs.
// It unwraps errors until the innermost concrete type is found.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}
