package validation

// AddressRequest is the postal address block of a checkout request.
type AddressRequest struct {
	Street     string `json:"street" validate:"required"`
	StreetNum  string `json:"streetNum" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// CustomerRequest is the customer block of a checkout request.
type CustomerRequest struct {
	FirstName string         `json:"firstName" validate:"required"`
	LastName  string         `json:"lastName" validate:"required"`
	Email     string         `json:"email" validate:"required,email"`
	Phone     string         `json:"phone" validate:"required"`
	Address   AddressRequest `json:"address" validate:"required"`
}

// CartItemRequest is one minimal cart line. Price is client-declared and
// advisory only; the server re-reads the catalog before charging anything.
type CartItemRequest struct {
	ItemID   string  `json:"itemId" validate:"required"`
	Quantity int     `json:"quantity" validate:"required,min=1"`
	Size     string  `json:"size" validate:"required"`
	Price    float64 `json:"price" validate:"gte=0"`
	ItemType string  `json:"itemType" validate:"required,oneof=Product Package"`
}

// CheckoutRequest is the payload for POST /orders/generate-sale.
type CheckoutRequest struct {
	TotalPrice float64           `json:"totalPrice" validate:"required,gt=0"`
	Customer   CustomerRequest   `json:"customer" validate:"required"`
	OrderItems []CartItemRequest `json:"orderItems" validate:"required,min=1,dive"`
}

// WebhookTransactionRequest mirrors the gateway's transaction block.
type WebhookTransactionRequest struct {
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

// WebhookRequest is the structured payment notification envelope.
// more_info carries the order id correlation token.
type WebhookRequest struct {
	MoreInfo    string                    `json:"more_info" validate:"required"`
	Status      string                    `json:"status" validate:"required"`
	Transaction WebhookTransactionRequest `json:"transaction"`
}

// LegacyNotifyRequest is the older bare webhook shape still sent to
// POST /orders/notify: orderId/status plus flat transaction fields.
type LegacyNotifyRequest struct {
	OrderID             string   `json:"orderId" validate:"required"`
	Status              string   `json:"status" validate:"required"`
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

// UpdateOrderRequest is the administrative PATCH surface. The total price is
// immutable after checkout verification, so it cannot be patched.
type UpdateOrderRequest struct {
	Status   *string          `json:"status" validate:"omitempty,oneof=pending processing paid failed cancelled"`
	Customer *CustomerRequest `json:"customer" validate:"omitempty"`
}
