package catalog

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/addismarket/backend/internal/aws"
)

// Lookup reads authoritative pricing from the products and packages tables.
// It has no side effects.
type Lookup struct {
	client        aws.DynamoDBAPI
	productsTable string
	packagesTable string
}

// NewLookup creates a Lookup over the two catalog tables.
func NewLookup(client aws.DynamoDBAPI, productsTable, packagesTable string) *Lookup {
	return &Lookup{
		client:        client,
		productsTable: productsTable,
		packagesTable: packagesTable,
	}
}

// Resolve returns the snapshot for one item: the flat price for a Package,
// or the price of the pricing entry matching size for a Product.
func (l *Lookup) Resolve(ctx context.Context, req Request) (*Snapshot, error) {
	switch req.Kind {
	case KindProduct:
		return l.resolveProduct(ctx, req.ID, req.Size)
	case KindPackage:
		return l.resolvePackage(ctx, req.ID)
	default:
		return nil, fmt.Errorf("invalid item type: %s", req.Kind)
	}
}

// ResolveAll resolves every request concurrently. A single failure cancels
// the remaining lookups and fails the whole batch: a partially resolved
// cart is not a valid order. Snapshots are returned in request order.
func (l *Lookup) ResolveAll(ctx context.Context, reqs []Request) ([]*Snapshot, error) {
	snaps := make([]*Snapshot, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			s, err := l.Resolve(ctx, req)
			if err != nil {
				return err
			}
			snaps[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snaps, nil
}

func (l *Lookup) resolveProduct(ctx context.Context, id, size string) (*Snapshot, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.productsTable,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, &NotFoundError{Kind: KindProduct, ID: id}
	}

	var doc productDoc
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}

	for _, p := range doc.Pricing {
		if p.Size.SizeName == size {
			return &Snapshot{ID: doc.ProductID, Name: doc.Name, Price: p.Price, Image: doc.Image}, nil
		}
	}

	available := make([]string, 0, len(doc.Pricing))
	for _, p := range doc.Pricing {
		available = append(available, p.Size.SizeName)
	}
	return nil, &InvalidSizeError{Size: size, Name: doc.Name, Available: available}
}

func (l *Lookup) resolvePackage(ctx context.Context, id string) (*Snapshot, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &l.packagesTable,
		Key: map[string]types.AttributeValue{
			"package_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, &NotFoundError{Kind: KindPackage, ID: id}
	}

	var doc packageDoc
	if err := attributevalue.UnmarshalMap(out.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal package: %w", err)
	}
	return &Snapshot{ID: doc.PackageID, Name: doc.Name, Price: doc.Price, Image: doc.Image}, nil
}
