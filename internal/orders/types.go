package orders

import (
	"time"

	"github.com/addismarket/backend/internal/catalog"
)

// Address is the customer's postal address as captured at checkout.
type Address struct {
	Street     string `dynamodbav:"street" json:"street"`
	StreetNum  string `dynamodbav:"street_num" json:"streetNum"`
	City       string `dynamodbav:"city" json:"city"`
	PostalCode string `dynamodbav:"postal_code,omitempty" json:"postal_code,omitempty"`
	Country    string `dynamodbav:"country,omitempty" json:"country,omitempty"`
}

// Customer identifies who placed the order.
type Customer struct {
	FirstName string  `dynamodbav:"first_name" json:"firstName"`
	LastName  string  `dynamodbav:"last_name" json:"lastName"`
	Email     string  `dynamodbav:"email" json:"email"`
	Phone     string  `dynamodbav:"phone" json:"phone"`
	Address   Address `dynamodbav:"address" json:"address"`
}

// Item is one ordered line. Price is the catalog price captured at order
// time; it is never the client-declared price.
type Item struct {
	ItemID   string           `dynamodbav:"item_id" json:"item"`
	ItemType catalog.ItemKind `dynamodbav:"item_type" json:"itemType"`
	Quantity int              `dynamodbav:"quantity" json:"quantity"`
	Price    float64          `dynamodbav:"price" json:"price"`
	Size     string           `dynamodbav:"size" json:"size"`
	Name     string           `dynamodbav:"name" json:"name"`
	Image    string           `dynamodbav:"image,omitempty" json:"image,omitempty"`
}

// PaymentDetails mirrors the gateway's transaction record. Attached in the
// same transaction as order creation (holding just the page request uid),
// then filled in by webhook reconciliation.
type PaymentDetails struct {
	TransactionUID      string    `dynamodbav:"transaction_uid,omitempty" json:"transaction_uid,omitempty"`
	TransactionStatus   string    `dynamodbav:"transaction_status,omitempty" json:"transaction_status,omitempty"`
	TransactionAmount   float64   `dynamodbav:"transaction_amount,omitempty" json:"transaction_amount,omitempty"`
	TransactionCurrency string    `dynamodbav:"transaction_currency,omitempty" json:"transaction_currency,omitempty"`
	TransactionDate     time.Time `dynamodbav:"transaction_date,omitempty" json:"transaction_date,omitempty"`
	TransactionType     string    `dynamodbav:"transaction_type,omitempty" json:"transaction_type,omitempty"`
	NumberOfPayments    int       `dynamodbav:"number_of_payments,omitempty" json:"number_of_payments,omitempty"`
	FirstPaymentAmount  float64   `dynamodbav:"first_payment_amount,omitempty" json:"first_payment_amount,omitempty"`
	RestPaymentsAmount  float64   `dynamodbav:"rest_payments_amount,omitempty" json:"rest_payments_amount,omitempty"`
	CardHolderName      string    `dynamodbav:"card_holder_name,omitempty" json:"card_holder_name,omitempty"`
	CustomerUID         string    `dynamodbav:"customer_uid,omitempty" json:"customer_uid,omitempty"`
	TerminalUID         string    `dynamodbav:"terminal_uid,omitempty" json:"terminal_uid,omitempty"`
}

// Order is the document persisted in the orders table.
// CustomerEmail duplicates customer.email at the top level for the
// customer_email-index GSI (DynamoDB cannot index nested attributes).
type Order struct {
	OrderID        string          `dynamodbav:"order_id" json:"id"` // PK
	Customer       Customer        `dynamodbav:"customer" json:"customer"`
	CustomerEmail  string          `dynamodbav:"customer_email" json:"-"`
	Items          []Item          `dynamodbav:"items" json:"items"`
	TotalPrice     float64         `dynamodbav:"total_price" json:"totalPrice"`
	Status         Status          `dynamodbav:"status" json:"status"`
	PaymentDetails *PaymentDetails `dynamodbav:"payment_details,omitempty" json:"paymentDetails"`
	CreatedAt      time.Time       `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt      time.Time       `dynamodbav:"updated_at" json:"updatedAt"`
}

// Checkout is the verified-input form of a client checkout request. Declared
// prices and total are advisory; the coordinator re-derives both from the
// catalog.
type Checkout struct {
	TotalPrice float64
	Customer   Customer
	Items      []CheckoutItem
}

// CheckoutItem is one minimal cart line reference.
type CheckoutItem struct {
	ItemID   string
	ItemType catalog.ItemKind
	Quantity int
	Size     string
	Price    float64 // client-declared, advisory only
}

// CheckoutResult is what a successful checkout returns to the client.
type CheckoutResult struct {
	Order          *Order `json:"order"`
	PaymentLink    string `json:"paymentLink"`
	PageRequestUID string `json:"pageRequestUid"`
}

// PaymentLink is the gateway's answer to a hosted-page link request.
type PaymentLink struct {
	PageRequestUID  string
	PaymentPageLink string
}

// Webhook is the gateway's payment notification envelope. MoreInfo carries
// the order id we embedded as the correlation token.
type Webhook struct {
	MoreInfo    string             `json:"more_info"`
	Status      string             `json:"status"`
	Transaction WebhookTransaction `json:"transaction"`
}

// WebhookTransaction carries the transaction details of a webhook. Optional
// fields are pointers so reconciliation only overwrites what the gateway
// actually sent.
type WebhookTransaction struct {
	TransactionUID      string   `json:"transaction_uid"`
	TransactionStatus   string   `json:"transaction_status"`
	TransactionAmount   float64  `json:"transaction_amount"`
	TransactionCurrency string   `json:"transaction_currency"`
	TransactionDate     string   `json:"transaction_date"`
	TransactionType     string   `json:"transaction_type"`
	NumberOfPayments    *int     `json:"number_of_payments,omitempty"`
	FirstPaymentAmount  *float64 `json:"first_payment_amount,omitempty"`
	RestPaymentsAmount  *float64 `json:"rest_payments_amount,omitempty"`
	CardHolderName      *string  `json:"card_holder_name,omitempty"`
	CustomerUID         *string  `json:"customer_uid,omitempty"`
	TerminalUID         *string  `json:"terminal_uid,omitempty"`
}

// OrderUpdate is the payload pushed to subscribers of an order's channel.
type OrderUpdate struct {
	Status         Status          `json:"status"`
	Message        string          `json:"message"`
	PaymentDetails *PaymentDetails `json:"paymentDetails,omitempty"`
}

// Page is one page of the order listing.
type Page struct {
	Orders     []*Order `json:"orders"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	TotalPages int      `json:"totalPages"`
}
