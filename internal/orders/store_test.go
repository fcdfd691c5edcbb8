package orders

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small in-memory mock of the DynamoDB operations the store
// uses. It stores items per table in a nested map: table -> pkValue -> item.
type mockDynamo struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]types.AttributeValue
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		tables: map[string]map[string]map[string]types.AttributeValue{},
	}
}

func (m *mockDynamo) ensureTable(tbl string) {
	if _, ok := m.tables[tbl]; !ok {
		m.tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
}

func pkOf(attrs map[string]types.AttributeValue) (string, error) {
	for _, key := range []string{"order_id", "product_id", "package_id"} {
		if v, ok := attrs[key]; ok {
			return v.(*types.AttributeValueMemberS).Value, nil
		}
	}
	return "", errors.New("no primary key attribute")
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	m.tables[table][pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[table][pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][pk]
	if !exists {
		if params.ConditionExpression != nil && strings.Contains(*params.ConditionExpression, "attribute_exists") {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item = map[string]types.AttributeValue{}
		for k, v := range params.Key {
			item[k] = v
		}
	}
	// naive SET application for the expressions the store builds
	valueToAttr := map[string]string{
		":s":  "status",
		":pd": "payment_details",
		":ua": "updated_at",
		":c":  "customer",
		":ce": "customer_email",
	}
	for placeholder, attr := range valueToAttr {
		if v, ok := params.ExpressionAttributeValues[placeholder]; ok {
			item[attr] = v
		}
	}
	m.tables[table][pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	if _, ok := m.tables[table][pk]; !ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	delete(m.tables[table], pk)
	return &dyn.DeleteItemOutput{}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	// emulate the customer_email-index key condition
	want := params.ExpressionAttributeValues[":e"].(*types.AttributeValueMemberS).Value
	out := &dyn.QueryOutput{}
	for _, item := range m.tables[table] {
		if v, ok := item["customer_email"]; ok {
			if v.(*types.AttributeValueMemberS).Value == want {
				out.Items = append(out.Items, item)
			}
		}
	}
	return out, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := *params.TableName
	m.ensureTable(table)
	out := &dyn.ScanOutput{}
	for _, item := range m.tables[table] {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// check all conditions before writing anything
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		if p.ConditionExpression != nil && strings.Contains(*p.ConditionExpression, "attribute_not_exists") {
			pk, err := pkOf(p.Item)
			if err != nil {
				return nil, err
			}
			m.ensureTable(*p.TableName)
			if _, exists := m.tables[*p.TableName][pk]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		pk, err := pkOf(p.Item)
		if err != nil {
			return nil, err
		}
		m.ensureTable(*p.TableName)
		m.tables[*p.TableName][pk] = p.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// seedItem marshals a struct directly into a mock table.
func (m *mockDynamo) seedItem(t *testing.T, table, pk string, v interface{}) {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		t.Fatalf("marshal seed item: %v", err)
	}
	m.ensureTable(table)
	m.tables[table][pk] = item
}

func testOrder(id, email string) *Order {
	return &Order{
		OrderID: id,
		Customer: Customer{
			FirstName: "Dana",
			LastName:  "Levi",
			Email:     email,
			Phone:     "050-1234567",
			Address:   Address{Street: "Herzl", StreetNum: "12", City: "Tel Aviv"},
		},
		Items: []Item{
			{ItemID: "p1", ItemType: "Product", Quantity: 2, Price: 25.0, Size: "500g", Name: "Berbere"},
		},
		TotalPrice: 50.0,
	}
}

func TestTxCommitPersistsOrderWithPayment(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	tx := store.Begin()
	defer tx.Release()

	order := tx.Create(testOrder("order-1", "dana@example.com"))
	if order.Status != StatusPending {
		t.Fatalf("expected pending after Create, got %s", order.Status)
	}
	if order.PaymentDetails != nil {
		t.Fatalf("expected nil payment details after Create")
	}

	if err := tx.AttachPayment("order-1", &PaymentDetails{
		TransactionUID:      "page-req-1",
		TransactionStatus:   "pending",
		TransactionAmount:   50.0,
		TransactionCurrency: "ILS",
	}); err != nil {
		t.Fatalf("attach payment: %v", err)
	}

	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := store.Get(context.Background(), "order-1")
	if err != nil {
		t.Fatalf("get after commit: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.PaymentDetails == nil || got.PaymentDetails.TransactionUID != "page-req-1" {
		t.Fatalf("expected payment reference persisted, got %+v", got.PaymentDetails)
	}
	if got.CustomerEmail != "dana@example.com" {
		t.Fatalf("expected customer_email duplicated for GSI, got %q", got.CustomerEmail)
	}
}

func TestTxReleaseWithoutCommitPersistsNothing(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	tx := store.Begin()
	tx.Create(testOrder("order-2", "dana@example.com"))
	tx.Release()

	_, err := store.Get(context.Background(), "order-2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after abort, got %v", err)
	}
}

func TestTxCommitAfterReleaseFails(t *testing.T) {
	store := NewStore(newMockDynamo(), "orders")

	tx := store.Begin()
	tx.Create(testOrder("order-3", "dana@example.com"))
	tx.Release()

	if err := tx.Commit(context.Background()); err == nil {
		t.Fatal("expected error committing a released transaction")
	}
}

func TestUpdateStatusAndPayment(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	tx := store.Begin()
	tx.Create(testOrder("order-4", "dana@example.com"))
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	updated, err := store.UpdateStatusAndPayment(context.Background(), "order-4", StatusPaid, &PaymentDetails{
		TransactionUID:    "txn-9",
		TransactionStatus: "approved",
		TransactionAmount: 50.0,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != StatusPaid {
		t.Fatalf("expected paid, got %s", updated.Status)
	}
	if updated.PaymentDetails == nil || updated.PaymentDetails.TransactionUID != "txn-9" {
		t.Fatalf("expected payment details written, got %+v", updated.PaymentDetails)
	}
}

func TestUpdateStatusAndPayment_NotFound(t *testing.T) {
	store := NewStore(newMockDynamo(), "orders")

	_, err := store.UpdateStatusAndPayment(context.Background(), "missing", StatusPaid, &PaymentDetails{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	tx := store.Begin()
	tx.Create(testOrder("order-5", "dana@example.com"))
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if err := store.Delete(context.Background(), "order-5"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(context.Background(), "order-5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(context.Background(), "order-5"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting twice, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		store.nowFunc = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		tx := store.Begin()
		tx.Create(testOrder(id, "dana@example.com"))
		if err := tx.Commit(context.Background()); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
	}

	page, err := store.List(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 {
		t.Fatalf("expected total=3 totalPages=2, got %d/%d", page.Total, page.TotalPages)
	}
	if len(page.Orders) != 2 || page.Orders[0].OrderID != "new" || page.Orders[1].OrderID != "mid" {
		t.Fatalf("expected newest first [new mid], got %+v", page.Orders)
	}

	page2, err := store.List(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page2.Orders) != 1 || page2.Orders[0].OrderID != "old" {
		t.Fatalf("expected [old] on page 2, got %+v", page2.Orders)
	}
}

func TestFindByCustomerEmail(t *testing.T) {
	mock := newMockDynamo()
	store := NewStore(mock, "orders")

	for id, email := range map[string]string{
		"a1": "dana@example.com",
		"a2": "dana@example.com",
		"b1": "noam@example.com",
	} {
		tx := store.Begin()
		tx.Create(testOrder(id, email))
		if err := tx.Commit(context.Background()); err != nil {
			t.Fatalf("commit %s: %v", id, err)
		}
	}

	got, err := store.FindByCustomerEmail(context.Background(), "dana@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders for dana@example.com, got %d", len(got))
	}
	for _, o := range got {
		if o.Customer.Email != "dana@example.com" {
			t.Fatalf("unexpected order %s for %s", o.OrderID, o.Customer.Email)
		}
	}
}
