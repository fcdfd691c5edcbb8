package config

import "os"

// App carries the process-level settings read once at startup: table names,
// queue URL and the metrics namespace.
type App struct {
	OrdersTable      string
	ProductsTable    string
	PackagesTable    string
	FulfillmentQueue string
	MetricsNamespace string
}

// LoadApp reads the application settings from the environment.
func LoadApp() App {
	return App{
		OrdersTable:      getenv("ORDERS_TABLE", "orders"),
		ProductsTable:    getenv("PRODUCTS_TABLE", "products"),
		PackagesTable:    getenv("PACKAGES_TABLE", "packages"),
		FulfillmentQueue: os.Getenv("FULFILLMENT_QUEUE_URL"),
		MetricsNamespace: getenv("METRICS_NAMESPACE", "AddisMarket/Orders"),
	}
}

// PayPlus holds the payment gateway settings. Callers load it per request
// rather than once per process so key rotation or flipping the sandbox
// toggle takes effect without a restart.
type PayPlus struct {
	APIKey          string
	SecretKey       string
	PageUID         string
	Sandbox         bool
	APIBaseURL      string // overrides the sandbox/production endpoint when set
	FrontendBaseURL string
	CallbackBaseURL string
	WebhookSecret   string
}

// LoadPayPlus reads the gateway settings from the environment.
func LoadPayPlus() PayPlus {
	return PayPlus{
		APIKey:          os.Getenv("PAYPLUS_API_KEY"),
		SecretKey:       os.Getenv("PAYPLUS_SECRET_KEY"),
		PageUID:         os.Getenv("PAYPLUS_PAGE_UID"),
		Sandbox:         os.Getenv("PAYPLUS_SANDBOX") == "true",
		APIBaseURL:      os.Getenv("PAYPLUS_API_BASE_URL"),
		FrontendBaseURL: os.Getenv("FRONTEND_BASE_URL"),
		CallbackBaseURL: os.Getenv("CALLBACK_BASE_URL"),
		WebhookSecret:   os.Getenv("PAYPLUS_WEBHOOK_SECRET"),
	}
}

// BaseURL resolves the PayPlus REST endpoint for the configured environment.
func (p PayPlus) BaseURL() string {
	if p.APIBaseURL != "" {
		return p.APIBaseURL
	}
	if p.Sandbox {
		return "https://restapidev.payplus.co.il/api/v1.0"
	}
	return "https://restapi.payplus.co.il/api/v1.0"
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
