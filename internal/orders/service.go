package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/addismarket/backend/internal/aws"
	"github.com/addismarket/backend/internal/catalog"
	"github.com/addismarket/backend/internal/pricing"
)

// ErrCheckoutFailed is the generic error surfaced when the checkout
// transaction aborts for a non-domain reason. The internal cause is logged,
// never exposed to the client.
var ErrCheckoutFailed = errors.New("failed to create order and payment link")

// CatalogResolver resolves checkout line references into authoritative
// snapshots.
type CatalogResolver interface {
	ResolveAll(ctx context.Context, reqs []catalog.Request) ([]*catalog.Snapshot, error)
}

// LinkRequester requests a hosted payment page link for an order.
type LinkRequester interface {
	RequestPaymentLink(ctx context.Context, order *Order) (*PaymentLink, error)
}

// Notifier pushes events to the real-time subscribers of a single order.
// Implementations fan out to whatever transport is wired in; the coordinator
// only knows the topic semantics.
type Notifier interface {
	PaymentConfirmation(orderID string, status Status)
	OrderUpdate(orderID string, update OrderUpdate)
}

// EventPublisher hands terminal-status orders to the fulfillment pipeline.
type EventPublisher interface {
	SendEvent(ctx context.Context, messageBody string, attributes map[string]string) error
}

// Service is the order lifecycle coordinator: it owns every status
// transition, from checkout through webhook reconciliation.
type Service struct {
	store    *Store
	catalog  CatalogResolver
	gateway  LinkRequester
	notifier Notifier
	events   EventPublisher
	metrics  *aws.Metrics
}

// NewService wires the coordinator's collaborators. events and metrics may be
// nil when the deployment has no fulfillment queue or metrics namespace.
func NewService(store *Store, catalog CatalogResolver, gateway LinkRequester, notifier Notifier, events EventPublisher, metrics *aws.Metrics) *Service {
	return &Service{
		store:    store,
		catalog:  catalog,
		gateway:  gateway,
		notifier: notifier,
		events:   events,
		metrics:  metrics,
	}
}

// GenerateSaleOrder runs the checkout flow: resolve every line item against
// the catalog, verify the declared total, rebuild the lines with
// authoritative prices, then create the order and its payment link inside a
// single transaction scope.
//
// orderID is generated up front so it can ride in the gateway payload as the
// correlation token echoed back by the webhook.
func (s *Service) GenerateSaleOrder(ctx context.Context, orderID string, co Checkout) (*CheckoutResult, error) {
	reqs := make([]catalog.Request, len(co.Items))
	quantities := make([]int, len(co.Items))
	for i, it := range co.Items {
		reqs[i] = catalog.Request{ID: it.ItemID, Kind: it.ItemType, Size: it.Size}
		quantities[i] = it.Quantity
	}

	snaps, err := s.catalog.ResolveAll(ctx, reqs)
	if err != nil {
		return nil, err
	}

	calculated := pricing.Total(snaps, quantities)
	if err := pricing.Verify(calculated, co.TotalPrice); err != nil {
		s.metrics.Count(ctx, "PriceMismatch", 1, nil)
		log.Printf("orders: price mismatch for %s: %v", co.Customer.Email, err)
		return nil, err
	}

	items := make([]Item, len(co.Items))
	for i, it := range co.Items {
		items[i] = Item{
			ItemID:   snaps[i].ID,
			ItemType: it.ItemType,
			Quantity: it.Quantity,
			Price:    snaps[i].Price, // catalog price, never the declared one
			Size:     it.Size,
			Name:     snaps[i].Name,
			Image:    snaps[i].Image,
		}
	}

	tx := s.store.Begin()
	defer tx.Release()

	order := tx.Create(&Order{
		OrderID:    orderID,
		Customer:   co.Customer,
		Items:      items,
		TotalPrice: calculated,
	})

	link, err := s.gateway.RequestPaymentLink(ctx, order)
	if err != nil {
		s.metrics.Count(ctx, "GatewayFailure", 1, nil)
		log.Printf("orders: payment link request failed for order %s: %v", orderID, err)
		return nil, errors.Join(ErrCheckoutFailed, err)
	}

	if err := tx.AttachPayment(orderID, &PaymentDetails{
		TransactionUID:      link.PageRequestUID,
		TransactionStatus:   "pending",
		TransactionAmount:   calculated,
		TransactionCurrency: "ILS",
	}); err != nil {
		return nil, errors.Join(ErrCheckoutFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		log.Printf("orders: checkout commit failed for order %s: %v", orderID, err)
		return nil, errors.Join(ErrCheckoutFailed, err)
	}

	s.notifier.OrderUpdate(orderID, OrderUpdate{
		Status:  StatusPending,
		Message: StatusPending.Message(),
	})
	s.metrics.Count(ctx, "CheckoutSucceeded", 1, nil)

	return &CheckoutResult{
		Order:          order,
		PaymentLink:    link.PaymentPageLink,
		PageRequestUID: link.PageRequestUID,
	}, nil
}

// HandlePaymentWebhook reconciles a gateway notification into an order status
// transition. Duplicate deliveries of a successful payment are a no-op: the
// order is returned unchanged and no notification is re-emitted.
func (s *Service) HandlePaymentWebhook(ctx context.Context, hook Webhook) (*Order, error) {
	orderID := hook.MoreInfo
	log.Printf("orders: webhook for order %s status %q", orderID, hook.Status)

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	mapped, recognized := FromProviderStatus(hook.Status)
	if !recognized {
		log.Printf("orders: unrecognized provider status %q for order %s, treating as processing", hook.Status, orderID)
	}

	// Duplicate-delivery guard. Scoped to successful payments only: a failed
	// or cancelled webhook arriving after paid still overwrites (chargeback
	// path, pending product-owner confirmation).
	if order.Status == StatusPaid && mapped == StatusPaid {
		log.Printf("orders: order %s already marked as paid", orderID)
		s.metrics.Count(ctx, "WebhookDuplicate", 1, nil)
		return order, nil
	}

	details := mergePaymentDetails(order.PaymentDetails, hook.Transaction)

	updated, err := s.store.UpdateStatusAndPayment(ctx, orderID, mapped, details)
	if err != nil {
		return nil, err
	}

	s.notifier.PaymentConfirmation(orderID, mapped)
	s.notifier.OrderUpdate(orderID, OrderUpdate{
		Status:         mapped,
		Message:        mapped.Message(),
		PaymentDetails: details,
	})

	if mapped.Terminal() {
		s.publishFulfillment(ctx, updated)
	}
	s.metrics.Count(ctx, "WebhookProcessed", 1, map[string]string{"Status": string(mapped)})

	log.Printf("orders: order %s status updated to %s", orderID, mapped)
	return updated, nil
}

// UpdatePaymentStatus accepts the legacy bare webhook shape and funnels it
// through the same reconciliation path.
func (s *Service) UpdatePaymentStatus(ctx context.Context, orderID, status string, tx WebhookTransaction) (*Order, error) {
	return s.HandlePaymentWebhook(ctx, Webhook{
		MoreInfo:    orderID,
		Status:      status,
		Transaction: tx,
	})
}

// FindAll returns one page of orders, newest first.
func (s *Service) FindAll(ctx context.Context, page, limit int) (*Page, error) {
	return s.store.List(ctx, page, limit)
}

// FindOne returns an order by id.
func (s *Service) FindOne(ctx context.Context, orderID string) (*Order, error) {
	return s.store.Get(ctx, orderID)
}

// FindByCustomerEmail returns a customer's orders, newest first.
func (s *Service) FindByCustomerEmail(ctx context.Context, email string) ([]*Order, error) {
	return s.store.FindByCustomerEmail(ctx, email)
}

// Update applies an administrative partial update and notifies subscribers.
func (s *Service) Update(ctx context.Context, orderID string, fields UpdateFields) (*Order, error) {
	updated, err := s.store.Update(ctx, orderID, fields)
	if err != nil {
		return nil, err
	}
	s.notifier.OrderUpdate(orderID, OrderUpdate{
		Status:  updated.Status,
		Message: "Order updated",
	})
	return updated, nil
}

// Remove deletes an order by explicit request.
func (s *Service) Remove(ctx context.Context, orderID string) error {
	return s.store.Delete(ctx, orderID)
}

// mergePaymentDetails overlays the webhook transaction onto the existing
// payment details, overwriting only fields the gateway actually sent.
func mergePaymentDetails(existing *PaymentDetails, tx WebhookTransaction) *PaymentDetails {
	details := PaymentDetails{}
	if existing != nil {
		details = *existing
	}

	details.TransactionUID = tx.TransactionUID
	details.TransactionStatus = tx.TransactionStatus
	details.TransactionAmount = tx.TransactionAmount
	details.TransactionCurrency = tx.TransactionCurrency
	details.TransactionType = tx.TransactionType
	if ts, err := parseTransactionDate(tx.TransactionDate); err == nil {
		details.TransactionDate = ts
	} else if tx.TransactionDate != "" {
		log.Printf("orders: unparseable transaction_date %q", tx.TransactionDate)
	}
	if tx.NumberOfPayments != nil {
		details.NumberOfPayments = *tx.NumberOfPayments
	}
	if tx.FirstPaymentAmount != nil {
		details.FirstPaymentAmount = *tx.FirstPaymentAmount
	}
	if tx.RestPaymentsAmount != nil {
		details.RestPaymentsAmount = *tx.RestPaymentsAmount
	}
	if tx.CardHolderName != nil {
		details.CardHolderName = *tx.CardHolderName
	}
	if tx.CustomerUID != nil {
		details.CustomerUID = *tx.CustomerUID
	}
	if tx.TerminalUID != nil {
		details.TerminalUID = *tx.TerminalUID
	}
	return &details
}

// parseTransactionDate accepts the two timestamp layouts the gateway has been
// observed to send.
func parseTransactionDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

// publishFulfillment enqueues a terminal-status order for the fulfillment
// worker. Best effort: a queue outage must not fail the webhook, the
// provider would retry and re-trigger reconciliation.
func (s *Service) publishFulfillment(ctx context.Context, order *Order) {
	if s.events == nil {
		return
	}
	payload, err := json.Marshal(map[string]string{
		"order_id":       order.OrderID,
		"status":         string(order.Status),
		"customer_email": order.Customer.Email,
	})
	if err != nil {
		log.Printf("orders: marshal fulfillment event for %s: %v", order.OrderID, err)
		return
	}
	attrs := map[string]string{
		"order_id": order.OrderID,
		"status":   string(order.Status),
	}
	if err := s.events.SendEvent(ctx, string(payload), attrs); err != nil {
		log.Printf("orders: publish fulfillment event for %s: %v", order.OrderID, err)
	}
}
