package main

// FulfillmentMessage is the payload the coordinator publishes when a webhook
// drives an order to a terminal status.
type FulfillmentMessage struct {
	OrderID       string `json:"order_id"`
	Status        string `json:"status"`
	CustomerEmail string `json:"customer_email"`
}
