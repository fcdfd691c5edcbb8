package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/addismarket/backend/internal/aws"
	"github.com/addismarket/backend/internal/orders"
)

// Processor consumes fulfillment events: orders a payment webhook moved to a
// terminal status. It notifies the customer (currently just logged) and
// counts the outcome.
type Processor struct {
	orderStore *orders.Store
	metrics    *aws.Metrics
}

// NewProcessor creates a worker processor with AWS clients injected.
func NewProcessor(clients *aws.AWSClients, ordersTable, metricsNamespace string) *Processor {
	return &Processor{
		orderStore: orders.NewStore(clients.DynamoDB, ordersTable),
		metrics:    aws.NewMetrics(clients.CloudWatch, metricsNamespace),
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg FulfillmentMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] received order=%s status=%s", msg.OrderID, msg.Status)

	order, err := p.orderStore.Get(ctx, msg.OrderID)
	if err != nil {
		// ErrNotFound included: the order was deleted after the event was
		// queued. DLQ it so the gap is visible.
		return fmt.Errorf("fetch order %s: %w", msg.OrderID, err)
	}

	switch order.Status {
	case orders.StatusPaid:
		// TODO: replace the log with the transactional-mail sender once the
		// templates land.
		log.Printf("[worker] sending payment confirmation to %s for order=%s", msg.CustomerEmail, msg.OrderID)
	case orders.StatusFailed:
		log.Printf("[worker] notifying %s of failed payment for order=%s", msg.CustomerEmail, msg.OrderID)
	case orders.StatusCancelled:
		log.Printf("[worker] order=%s cancelled, no customer notification", msg.OrderID)
	default:
		// A non-terminal status means a later webhook moved the order again
		// before we got here; nothing left to fulfill.
		log.Printf("[worker] order=%s no longer terminal (status=%s), skipping", msg.OrderID, order.Status)
		return nil
	}

	p.metrics.Count(ctx, "FulfillmentProcessed", 1, map[string]string{"Status": string(order.Status)})
	return nil
}
