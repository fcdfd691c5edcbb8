package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/addismarket/backend/internal/aws"
)

// emailIndex is the GSI on the top-level customer_email attribute.
const emailIndex = "customer_email-index"

// ErrNotFound indicates the target order id does not resolve.
var ErrNotFound = errors.New("order not found")

// Store encapsulates operations on the orders table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Tx is a scoped checkout transaction. Writes are staged in memory and
// flushed in a single TransactWriteItems on Commit, so aborting between
// Create and Commit persists nothing: if the gateway call fails after
// Create, no order document exists afterwards.
//
// Callers defer Release on every path; Release after Commit is a no-op.
type Tx struct {
	store  *Store
	staged []*Order
	done   bool
}

// Begin opens a staged transaction scope.
func (s *Store) Begin() *Tx {
	return &Tx{store: s}
}

// Create stages a new order in pending status with null payment details and
// stamps its timestamps. The order's OrderID must be set by the caller — it
// is the correlation token embedded in the gateway payload.
func (tx *Tx) Create(order *Order) *Order {
	now := tx.store.nowFunc().UTC()
	order.Status = StatusPending
	order.PaymentDetails = nil
	order.CustomerEmail = order.Customer.Email
	order.CreatedAt = now
	order.UpdatedAt = now
	tx.staged = append(tx.staged, order)
	return order
}

// AttachPayment sets the payment reference on an order staged in this
// transaction. It mutates the staged document so the reference commits
// atomically with the creation.
func (tx *Tx) AttachPayment(orderID string, details *PaymentDetails) error {
	for _, o := range tx.staged {
		if o.OrderID == orderID {
			o.PaymentDetails = details
			return nil
		}
	}
	return ErrNotFound
}

// Commit flushes every staged order in one TransactWriteItems call. Each put
// is guarded by attribute_not_exists(order_id) so a replayed commit can never
// clobber an existing order.
func (tx *Tx) Commit(ctx context.Context) error {
	if tx.done {
		return errors.New("transaction already finished")
	}
	if len(tx.staged) == 0 {
		tx.done = true
		return nil
	}

	items := make([]types.TransactWriteItem, 0, len(tx.staged))
	for _, o := range tx.staged {
		m, err := attributevalue.MarshalMap(o)
		if err != nil {
			return fmt.Errorf("marshal order: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           &tx.store.tableName,
				Item:                m,
				ConditionExpression: awsString("attribute_not_exists(order_id)"),
			},
		})
	}

	_, err := tx.store.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			return fmt.Errorf("transaction canceled: %w", err)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	tx.done = true
	return nil
}

// Release discards any uncommitted staged writes. Safe to call more than
// once and after Commit.
func (tx *Tx) Release() {
	tx.staged = nil
	tx.done = true
}

// Get fetches an order by id.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateStatusAndPayment writes the reconciled status and payment details in
// one conditional update and returns the updated order. The condition fails
// with ErrNotFound if the order was deleted between the caller's read and
// this write.
func (s *Store) UpdateStatusAndPayment(ctx context.Context, orderID string, status Status, details *PaymentDetails) (*Order, error) {
	detailsAttr, err := attributevalue.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal payment details: %w", err)
	}

	now := s.nowFunc().UTC()
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:         awsString("SET #s = :s, payment_details = :pd, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":s":  &types.AttributeValueMemberS{Value: string(status)},
			":pd": detailsAttr,
			":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// UpdateFields carries the administrative PATCH surface. The total price is
// immutable once verified at creation so it is deliberately absent.
type UpdateFields struct {
	Status   *Status
	Customer *Customer
}

// Update applies an administrative partial update and returns the updated
// order.
func (s *Store) Update(ctx context.Context, orderID string, fields UpdateFields) (*Order, error) {
	now := s.nowFunc().UTC()
	expr := "SET updated_at = :ua"
	names := map[string]string{}
	values := map[string]types.AttributeValue{
		":ua": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
	}

	if fields.Status != nil {
		expr += ", #s = :s"
		names["#s"] = "status"
		values[":s"] = &types.AttributeValueMemberS{Value: string(*fields.Status)}
	}
	if fields.Customer != nil {
		custAttr, err := attributevalue.Marshal(fields.Customer)
		if err != nil {
			return nil, fmt.Errorf("marshal customer: %w", err)
		}
		expr += ", customer = :c, customer_email = :ce"
		values[":c"] = custAttr
		values[":ce"] = &types.AttributeValueMemberS{Value: fields.Customer.Email}
	}

	input := &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &expr,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("attribute_exists(order_id)"),
		ReturnValues:              types.ReturnValueAllNew,
	}
	if len(names) > 0 {
		input.ExpressionAttributeNames = names
	}

	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update item: %w", err)
	}

	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// List returns one page of orders, newest first. The table is scanned and
// sliced server-side; fine at this store's volume, a cursor API is the
// scaling path.
func (s *Store) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	all, err := s.scanAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	totalPages := (total + limit - 1) / limit
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	return &Page{
		Orders:     all[start:end],
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

func (s *Store) scanAll(ctx context.Context) ([]*Order, error) {
	var all []*Order
	var lastKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		for _, item := range out.Items {
			var o Order
			if err := attributevalue.UnmarshalMap(item, &o); err != nil {
				return nil, fmt.Errorf("unmarshal order: %w", err)
			}
			all = append(all, &o)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		lastKey = out.LastEvaluatedKey
	}
	return all, nil
}

// FindByCustomerEmail queries the email GSI, newest first. An empty result is
// not an error.
func (s *Store) FindByCustomerEmail(ctx context.Context, email string) ([]*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(emailIndex),
		KeyConditionExpression: awsString("customer_email = :e"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":e": &types.AttributeValueMemberS{Value: email},
		},
		ScanIndexForward: awsBool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query by email: %w", err)
	}

	orders := make([]*Order, 0, len(out.Items))
	for _, item := range out.Items {
		var o Order
		if err := attributevalue.UnmarshalMap(item, &o); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		orders = append(orders, &o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

// Delete removes an order by id.
func (s *Store) Delete(ctx context.Context, orderID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// isConditionalCheckFailed detects the SDK's conditional failure in both its
// typed and generic API-error forms.
func isConditionalCheckFailed(err error) bool {
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return true
	}
	var api smithy.APIError
	return errors.As(err, &api) && api.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
