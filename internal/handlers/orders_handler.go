package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/addismarket/backend/internal/aws"
	"github.com/addismarket/backend/internal/catalog"
	"github.com/addismarket/backend/internal/notify"
	"github.com/addismarket/backend/internal/orders"
	"github.com/addismarket/backend/internal/payments"
	"github.com/addismarket/backend/internal/pricing"
	"github.com/addismarket/backend/internal/validation"
)

// signatureHeader carries the gateway's optional webhook HMAC.
const signatureHeader = "X-PayPlus-Signature"

// PaymentGateway is the slice of the payments client the handlers and the
// coordinator need. payments.Client implements it; tests substitute fakes.
type PaymentGateway interface {
	RequestPaymentLink(ctx context.Context, order *orders.Order) (*orders.PaymentLink, error)
	VerifySignature(rawPayload []byte, signature string) bool
}

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	DynamoDBClient   aws.DynamoDBAPI
	SQSClient        aws.SQSAPI
	CloudWatchClient aws.CloudWatchAPI
	OrdersTable      string
	ProductsTable    string
	PackagesTable    string
	QueueURL         string
	MetricsNamespace string
	Gateway          PaymentGateway
	Hub              *notify.Hub
}

// RegisterOrdersRoutes registers the order API routes.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	store := orders.NewStore(cfg.DynamoDBClient, cfg.OrdersTable)
	lookup := catalog.NewLookup(cfg.DynamoDBClient, cfg.ProductsTable, cfg.PackagesTable)

	var events orders.EventPublisher
	if cfg.SQSClient != nil && cfg.QueueURL != "" {
		events = aws.NewPublisher(cfg.SQSClient, cfg.QueueURL)
	}
	metrics := aws.NewMetrics(cfg.CloudWatchClient, cfg.MetricsNamespace)

	svc := orders.NewService(store, lookup, cfg.Gateway, cfg.Hub, events, metrics)

	r.POST("/orders/generate-sale", func(c *gin.Context) {
		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		result, err := svc.GenerateSaleOrder(c.Request.Context(), uuid.NewString(), toCheckout(req))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	})

	r.POST("/orders/webhook/payment-notification", func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
			return
		}

		// Signature verification is only enforced when the gateway sent one.
		if sig := c.GetHeader(signatureHeader); sig != "" {
			if !cfg.Gateway.VerifySignature(raw, sig) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook signature"})
				return
			}
		}

		var req validation.WebhookRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
			return
		}
		if err := v.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
			return
		}

		order, err := svc.HandlePaymentWebhook(c.Request.Context(), orders.Webhook{
			MoreInfo:    req.MoreInfo,
			Status:      req.Status,
			Transaction: toWebhookTransaction(req.Transaction),
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"order":   order,
			"message": "Payment status updated successfully",
		})
	})

	// Deprecated alias kept for gateways still configured with the old
	// callback URL. Same reconciliation path, bare payload shape.
	r.POST("/orders/notify", func(c *gin.Context) {
		log.Printf("handlers: legacy notify endpoint used, migrate to webhook/payment-notification")

		var req validation.LegacyNotifyRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		order, err := svc.UpdatePaymentStatus(c.Request.Context(), req.OrderID, req.Status, orders.WebhookTransaction{
			TransactionUID:      req.TransactionUID,
			TransactionStatus:   req.TransactionStatus,
			TransactionAmount:   req.TransactionAmount,
			TransactionCurrency: req.TransactionCurrency,
			TransactionDate:     req.TransactionDate,
			TransactionType:     req.TransactionType,
			NumberOfPayments:    req.NumberOfPayments,
			FirstPaymentAmount:  req.FirstPaymentAmount,
			RestPaymentsAmount:  req.RestPaymentsAmount,
			CardHolderName:      req.CardHolderName,
			CustomerUID:         req.CustomerUID,
			TerminalUID:         req.TerminalUID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"order":   order,
			"message": "Payment status updated successfully",
		})
	})

	r.GET("/orders", func(c *gin.Context) {
		page := intQuery(c, "page", 1)
		limit := intQuery(c, "limit", 10)

		result, err := svc.FindAll(c.Request.Context(), page, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.GET("/orders/customer/:email", func(c *gin.Context) {
		result, err := svc.FindByCustomerEmail(c.Request.Context(), c.Param("email"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	})

	r.GET("/orders/:id", func(c *gin.Context) {
		order, err := svc.FindOne(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.GET("/orders/:id/events", func(c *gin.Context) {
		streamOrderEvents(c, cfg.Hub, c.Param("id"))
	})

	r.PATCH("/orders/:id", func(c *gin.Context) {
		var req validation.UpdateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		fields := orders.UpdateFields{}
		if req.Status != nil {
			st := orders.Status(*req.Status)
			fields.Status = &st
		}
		if req.Customer != nil {
			cust := toCustomer(*req.Customer)
			fields.Customer = &cust
		}

		order, err := svc.Update(c.Request.Context(), c.Param("id"), fields)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.DELETE("/orders/:id", func(c *gin.Context) {
		if err := svc.Remove(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// streamOrderEvents serves the per-order real-time channel as an SSE stream.
func streamOrderEvents(c *gin.Context, hub *notify.Hub, orderID string) {
	ctx := c.Request.Context()
	msgs, err := hub.Subscribe(ctx, orderID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "subscribe_failed"})
		return
	}

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-msgs:
			if !ok {
				return false
			}
			var peek struct {
				Event string `json:"event"`
			}
			_ = json.Unmarshal(msg.Payload, &peek)
			if peek.Event == "" {
				peek.Event = "message"
			}
			c.SSEvent(peek.Event, string(msg.Payload))
			msg.Ack()
			return true
		}
	})
}

// writeError maps domain errors to HTTP responses. Gateway failures and
// unexpected transaction errors reach the client as the generic checkout
// failure message; their causes are logged here.
func writeError(c *gin.Context, err error) {
	var nf *catalog.NotFoundError
	if errors.As(err, &nf) {
		c.JSON(http.StatusNotFound, gin.H{"error": nf.Error()})
		return
	}
	if errors.Is(err, orders.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}

	var is *catalog.InvalidSizeError
	if errors.As(err, &is) {
		c.JSON(http.StatusBadRequest, gin.H{"error": is.Error()})
		return
	}

	var pm *pricing.MismatchError
	if errors.As(err, &pm) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    pm.Error(),
			"expected": pm.Expected,
			"received": pm.Received,
			"delta":    pm.Delta(),
		})
		return
	}

	var ge *payments.GatewayError
	if errors.Is(err, orders.ErrCheckoutFailed) || errors.As(err, &ge) {
		log.Printf("handlers: checkout failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": orders.ErrCheckoutFailed.Error()})
		return
	}

	log.Printf("handlers: internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func toCheckout(req validation.CheckoutRequest) orders.Checkout {
	items := make([]orders.CheckoutItem, len(req.OrderItems))
	for i, it := range req.OrderItems {
		items[i] = orders.CheckoutItem{
			ItemID:   it.ItemID,
			ItemType: catalog.ItemKind(it.ItemType),
			Quantity: it.Quantity,
			Size:     it.Size,
			Price:    it.Price,
		}
	}
	return orders.Checkout{
		TotalPrice: req.TotalPrice,
		Customer:   toCustomer(req.Customer),
		Items:      items,
	}
}

func toCustomer(req validation.CustomerRequest) orders.Customer {
	return orders.Customer{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Address: orders.Address{
			Street:     req.Address.Street,
			StreetNum:  req.Address.StreetNum,
			City:       req.Address.City,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		},
	}
}

func toWebhookTransaction(req validation.WebhookTransactionRequest) orders.WebhookTransaction {
	return orders.WebhookTransaction{
		TransactionUID:      req.TransactionUID,
		TransactionStatus:   req.TransactionStatus,
		TransactionAmount:   req.TransactionAmount,
		TransactionCurrency: req.TransactionCurrency,
		TransactionDate:     req.TransactionDate,
		TransactionType:     req.TransactionType,
		NumberOfPayments:    req.NumberOfPayments,
		FirstPaymentAmount:  req.FirstPaymentAmount,
		RestPaymentsAmount:  req.RestPaymentsAmount,
		CardHolderName:      req.CardHolderName,
		CustomerUID:         req.CustomerUID,
		TerminalUID:         req.TerminalUID,
	}
}
