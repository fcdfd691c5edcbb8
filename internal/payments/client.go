package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/addismarket/backend/internal/config"
	"github.com/addismarket/backend/internal/orders"
)

// vatRate is the Israeli VAT applied to the page amount.
const vatRate = 0.18

// requestTimeout bounds the link-generation call; a gateway hang surfaces as
// a GatewayError instead of stalling the checkout transaction.
const requestTimeout = 15 * time.Second

// GatewayError wraps any transport or provider-side failure of the payment
// gateway. Body carries the provider's error response for logging; handlers
// must not leak it to clients.
type GatewayError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway: status %d: %s", e.StatusCode, e.Body)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client talks to the PayPlus hosted-payment-pages API. Configuration is
// resolved through loadConfig on every call, so environment selection and
// key rotation take effect without a restart and tests can substitute
// settings freely.
type Client struct {
	http       *http.Client
	loadConfig func() config.PayPlus
}

// NewClient returns a Client resolving configuration through load.
func NewClient(load func() config.PayPlus) *Client {
	return &Client{
		http:       &http.Client{Timeout: requestTimeout},
		loadConfig: load,
	}
}

type linkRequest struct {
	PaymentPageUID string       `json:"payment_page_uid"`
	ChargeMethod   int          `json:"charge_method"`
	Amount         float64      `json:"amount"`
	VATAmount      float64      `json:"vat_amount"`
	CurrencyCode   string       `json:"currency_code"`
	MoreInfo       string       `json:"more_info"`
	RefURLSuccess  string       `json:"refURL_success"`
	RefURLFailure  string       `json:"refURL_failure"`
	RefURLCancel   string       `json:"refURL_cancel"`
	RefURLCallback string       `json:"refURL_callback"`
	Customer       linkCustomer `json:"customer"`
	Items          []linkItem   `json:"items"`
}

type linkCustomer struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
}

type linkItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type linkResponse struct {
	Results struct {
		Status      string `json:"status"`
		Description string `json:"description"`
	} `json:"results"`
	Data struct {
		PageRequestUID  string `json:"page_request_uid"`
		PaymentPageLink string `json:"payment_page_link"`
	} `json:"data"`
}

// RequestPaymentLink builds the hosted-page payload for the order and asks
// the gateway for a payment link. The order id rides in more_info as the
// correlation token echoed back by the payment webhook.
func (c *Client) RequestPaymentLink(ctx context.Context, order *orders.Order) (*orders.PaymentLink, error) {
	cfg := c.loadConfig()

	payload := linkRequest{
		PaymentPageUID: cfg.PageUID,
		ChargeMethod:   1, // immediate charge
		Amount:         order.TotalPrice,
		VATAmount:      round2(order.TotalPrice * vatRate),
		CurrencyCode:   "ILS",
		MoreInfo:       order.OrderID,
		RefURLSuccess:  fmt.Sprintf("%s/checkout/success?orderId=%s", cfg.FrontendBaseURL, order.OrderID),
		RefURLFailure:  fmt.Sprintf("%s/checkout/failure?orderId=%s", cfg.FrontendBaseURL, order.OrderID),
		RefURLCancel:   fmt.Sprintf("%s/checkout/cancel?orderId=%s", cfg.FrontendBaseURL, order.OrderID),
		RefURLCallback: fmt.Sprintf("%s/orders/webhook/payment-notification", cfg.CallbackBaseURL),
		Customer: linkCustomer{
			CustomerName: order.Customer.FirstName + " " + order.Customer.LastName,
			Email:        order.Customer.Email,
			Phone:        order.Customer.Phone,
			Address:      order.Customer.Address.Street + " " + order.Customer.Address.StreetNum,
			City:         order.Customer.Address.City,
			PostalCode:   order.Customer.Address.PostalCode,
			Country:      order.Customer.Address.Country,
		},
	}
	for _, it := range order.Items {
		payload.Items = append(payload.Items, linkItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    it.Price,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GatewayError{Err: fmt.Errorf("marshal payload: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cfg.BaseURL()+"/PaymentPages/generateLink", bytes.NewReader(body))
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", cfg.APIKey, cfg.SecretKey))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &GatewayError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var parsed linkResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(respBody), Err: err}
	}
	if parsed.Results.Status != "success" || parsed.Data.PaymentPageLink == "" {
		return nil, &GatewayError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return &orders.PaymentLink{
		PageRequestUID:  parsed.Data.PageRequestUID,
		PaymentPageLink: parsed.Data.PaymentPageLink,
	}, nil
}

// VerifySignature recomputes the base64 HMAC-SHA256 digest of the raw webhook
// payload and compares it to the supplied signature. Verification is
// advisory: when no shared secret is configured the result is false with a
// configuration warning, never an error, because some provider environments
// deliver webhooks before per-tenant keys are distributed.
func (c *Client) VerifySignature(rawPayload []byte, signature string) bool {
	cfg := c.loadConfig()
	if cfg.WebhookSecret == "" {
		log.Printf("payments: webhook secret not configured, cannot verify signature")
		return false
	}

	mac := hmac.New(sha256.New, []byte(cfg.WebhookSecret))
	mac.Write(rawPayload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
