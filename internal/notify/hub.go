// Package notify fans order lifecycle events out to per-order subscribers.
// The coordinator publishes through the orders.Notifier interface; the SSE
// endpoint subscribes to the matching topic. The transport is an in-process
// watermill pub/sub, so swapping in a broker-backed publisher is a
// constructor change, not a coordinator change.
package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/addismarket/backend/internal/orders"
)

// Event names pushed on the order channel.
const (
	EventPaymentStatus = "paymentStatus"
	EventOrderUpdate   = "orderUpdate"
)

// Hub is the watermill-backed order event fan-out.
type Hub struct {
	pubsub *gochannel.GoChannel
}

var _ orders.Notifier = (*Hub)(nil)

// NewHub creates an in-process hub.
func NewHub() *Hub {
	return &Hub{
		pubsub: gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false)),
	}
}

// Topic returns the logical channel name for one order.
func Topic(orderID string) string {
	return "order_" + orderID
}

// PaymentConfirmation pushes a paymentStatus event to the order's channel.
func (h *Hub) PaymentConfirmation(orderID string, status orders.Status) {
	h.publish(orderID, map[string]any{
		"event":   EventPaymentStatus,
		"orderId": orderID,
		"status":  status,
	})
}

// OrderUpdate pushes an orderUpdate event to the order's channel.
func (h *Hub) OrderUpdate(orderID string, update orders.OrderUpdate) {
	payload := map[string]any{
		"event":   EventOrderUpdate,
		"orderId": orderID,
		"status":  update.Status,
		"message": update.Message,
	}
	if update.PaymentDetails != nil {
		payload["paymentDetails"] = update.PaymentDetails
	}
	h.publish(orderID, payload)
}

// Subscribe returns the event stream for one order. The channel closes when
// ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, orderID string) (<-chan *message.Message, error) {
	return h.pubsub.Subscribe(ctx, Topic(orderID))
}

// Close shuts the pub/sub down and closes all subscriber channels.
func (h *Hub) Close() error {
	return h.pubsub.Close()
}

func (h *Hub) publish(orderID string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("notify: marshal event for %s: %v", orderID, err)
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	if err := h.pubsub.Publish(Topic(orderID), msg); err != nil {
		log.Printf("notify: publish to %s: %v", Topic(orderID), err)
	}
}
