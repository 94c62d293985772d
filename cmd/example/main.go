package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itsneelabh/lambdametrics"
	"github.com/itsneelabh/lambdametrics/handler"
)

type order struct {
	ID       string  `json:"id"`
	Quantity int     `json:"quantity"`
	Total    float64 `json:"total"`
}

func main() {
	ctx := context.Background()

	// Endpoint, tenant and identity come from the environment
	obs, err := lambdametrics.New(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize lambda metrics: %v", err)
	}

	// Custom series are pushed with the built-in ones and get the same labels
	ordersTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_processed_total",
		Help: "Orders processed by outcome",
	}, []string{"outcome"})
	if err := obs.Registry().Register(ordersTotal); err != nil {
		log.Fatalf("Failed to register collector: %v", err)
	}

	process := func(ctx context.Context, e events.SQSEvent) (events.SQSEventResponse, error) {
		var resp events.SQSEventResponse
		for _, msg := range e.Records {
			var o order
			if err := json.Unmarshal([]byte(msg.Body), &o); err != nil || o.Quantity <= 0 {
				ordersTotal.WithLabelValues("rejected").Inc()
				resp.BatchItemFailures = append(resp.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
				continue
			}
			ordersTotal.WithLabelValues("accepted").Inc()
		}
		if len(resp.BatchItemFailures) == len(e.Records) && len(e.Records) > 0 {
			return resp, fmt.Errorf("all %d records rejected", len(e.Records))
		}
		return resp, nil
	}

	// Each failed batch item counts as one error
	lambda.Start(lambdametrics.Wrap(obs, handler.Async(process),
		handler.WithCaptureAllSettledReasons(true)))
}
