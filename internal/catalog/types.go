package catalog

import (
	"fmt"
	"strings"
)

// ItemKind discriminates the two purchasable catalog collections.
type ItemKind string

const (
	KindProduct ItemKind = "Product"
	KindPackage ItemKind = "Package"
)

// Snapshot is the authoritative view of a catalog item at lookup time:
// the price the order will actually be charged, regardless of what the
// client declared. Snapshots are never persisted; order line items capture
// their values.
type Snapshot struct {
	ID    string
	Name  string
	Price float64
	Image string
}

// Request identifies one line item to resolve.
type Request struct {
	ID   string
	Kind ItemKind
	Size string
}

// NotFoundError indicates the id does not resolve to a catalog entry.
type NotFoundError struct {
	Kind ItemKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Kind, e.ID)
}

// InvalidSizeError indicates the product exists but carries no pricing entry
// for the requested size. Available enumerates the size names the client can
// correct to.
type InvalidSizeError struct {
	Size      string
	Name      string
	Available []string
}

func (e *InvalidSizeError) Error() string {
	return fmt.Sprintf("size %s not available for %s. Available sizes: %s",
		e.Size, e.Name, strings.Join(e.Available, ", "))
}

// productDoc mirrors the products table document.
type productDoc struct {
	ProductID string           `dynamodbav:"product_id"`
	Name      string           `dynamodbav:"name"`
	Image     string           `dynamodbav:"image,omitempty"`
	Pricing   []productPricing `dynamodbav:"pricing"`
}

type productPricing struct {
	Size  productSize `dynamodbav:"size"`
	Price float64     `dynamodbav:"price"`
}

type productSize struct {
	SizeName     string `dynamodbav:"size_name"`
	SizeQuantity int    `dynamodbav:"size_quantity"`
}

// packageDoc mirrors the packages table document. Packages carry a flat
// price; the descriptive fields ride along for completeness.
type packageDoc struct {
	PackageID           string  `dynamodbav:"package_id"`
	Name                string  `dynamodbav:"name"`
	Image               string  `dynamodbav:"image,omitempty"`
	Price               float64 `dynamodbav:"price"`
	CookingTime         int     `dynamodbav:"cooking_time,omitempty"`
	IngredientsQuantity int     `dynamodbav:"ingredients_quantity,omitempty"`
	PeoplesQuantity     int     `dynamodbav:"peoples_quantity,omitempty"`
}
