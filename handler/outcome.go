package handler

import (
	"fmt"
	"reflect"

	"github.com/aws/aws-lambda-go/events"
)

// Outcome is one settled element of a fan-out: a value or an error.
type Outcome struct {
	Value any
	Err   error
}

// Failed reports whether the element was rejected.
func (o Outcome) Failed() bool {
	return o.Err != nil
}

// SettledResult is implemented by results that carry per-element failures
// while the invocation itself succeeds.
type SettledResult interface {
	Reasons() []error
}

// settledReasons extracts per-element failures from a result.
// ok is false when the result is not a settled collection, is a nil pointer,
// or its Reasons method panics.
func settledReasons(result any) (reasons []error, ok bool) {
	if isNilPointer(result) {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			reasons, ok = nil, false
		}
	}()

	switch r := result.(type) {
	case []Outcome:
		for _, o := range r {
			if o.Failed() {
				reasons = append(reasons, o.Err)
			}
		}
		return reasons, true
	case SettledResult:
		for _, err := range r.Reasons() {
			if err != nil {
				reasons = append(reasons, err)
			}
		}
		return reasons, true
	case events.SQSEventResponse:
		for _, f := range r.BatchItemFailures {
			reasons = append(reasons, batchItemError("sqs", f.ItemIdentifier))
		}
		return reasons, true
	case *events.SQSEventResponse:
		return settledReasons(*r)
	case *events.KinesisEventResponse:
		return settledReasons(*r)
	case *events.DynamoDBEventResponse:
		return settledReasons(*r)
	case events.KinesisEventResponse:
		for _, f := range r.BatchItemFailures {
			reasons = append(reasons, batchItemError("kinesis", f.ItemIdentifier))
		}
		return reasons, true
	case events.DynamoDBEventResponse:
		for _, f := range r.BatchItemFailures {
			reasons = append(reasons, batchItemError("dynamodb", f.ItemIdentifier))
		}
		return reasons, true
	}
	return nil, false
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func batchItemError(source, id string) error {
	return fmt.Errorf("%s batch item %s failed", source, id)
}
