package order

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

// fakeRemote keeps orders with a version counter and honours If-Match semantics.
type fakeRemote struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	versions  map[string]int
	customers map[string]domain.Customer
	deleteErr error

	idempotencyKeys []string
}

func newFakeRemote(orders ...domain.Order) *fakeRemote {
	f := &fakeRemote{
		orders:   make(map[string]domain.Order),
		versions: make(map[string]int),
		customers: map[string]domain.Customer{
			"ann": {Key: "cust-1", Username: "ann"},
			"bob": {Key: "cust-2", Username: "bob"},
		},
	}
	for _, o := range orders {
		f.orders[o.Key] = o
		f.versions[o.Key] = 1
	}
	return f
}

func (f *fakeRemote) etag(key string) string {
	return `"` + strconv.Itoa(f.versions[key]) + `"`
}

func (f *fakeRemote) GetOrder(_ context.Context, key string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[key]
	if !ok {
		return domain.Order{}, domain.NewNotFound("order", key)
	}
	o.Version = f.etag(key)
	return o, nil
}

func (f *fakeRemote) ListOrders(_ context.Context, customerKey string) ([]domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Order
	for _, o := range f.orders {
		if customerKey == "" || o.CustomerKey == customerKey {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRemote) UpdateOrderStatus(_ context.Context, key string, status domain.OrderStatus, version string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[key]
	if !ok {
		return domain.Order{}, domain.NewNotFound("order", key)
	}
	if version != f.etag(key) {
		return domain.Order{}, domain.ErrConcurrentModification
	}
	o.Status = status
	f.orders[key] = o
	f.versions[key]++
	o.Version = f.etag(key)
	return o, nil
}

func (f *fakeRemote) DeleteOrder(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.orders[key]; !ok {
		return domain.NewNotFound("order", key)
	}
	delete(f.orders, key)
	return nil
}

func (f *fakeRemote) GetCustomerByUsername(_ context.Context, username string) (domain.Customer, error) {
	c, ok := f.customers[username]
	if !ok {
		return domain.Customer{}, domain.NewNotFound("customer", username)
	}
	return c, nil
}

func (f *fakeRemote) GetCustomer(_ context.Context, key string) (domain.Customer, error) {
	for _, c := range f.customers {
		if c.Key == key {
			return c, nil
		}
	}
	return domain.Customer{}, domain.NewNotFound("customer", key)
}

func (f *fakeRemote) CreateOrder(_ context.Context, customerKey, productKey string, quantity int, idempotencyKey string) (domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idempotencyKeys = append(f.idempotencyKeys, idempotencyKey)
	key := "o-new-" + strconv.Itoa(len(f.orders)+1)
	o := domain.Order{Key: key, CustomerKey: customerKey, ProductKey: productKey, Quantity: quantity, Status: domain.OrderStatusSubmitted}
	f.orders[key] = o
	f.versions[key] = 1
	return o, nil
}

type stubProducts struct {
	stock       map[string]int
	invalidated []string
}

func (s *stubProducts) Live(_ context.Context, key string) (domain.Product, error) {
	n, ok := s.stock[key]
	if !ok {
		return domain.Product{}, domain.NewNotFound("product", key)
	}
	return domain.Product{Key: key, StockAvailable: n}, nil
}

func (s *stubProducts) Invalidate(_ context.Context, keys ...string) {
	s.invalidated = append(s.invalidated, keys...)
}

func sample(key, customer string, day int) domain.Order {
	return domain.Order{
		Key:          key,
		CustomerKey:  customer,
		Status:       domain.OrderStatusSubmitted,
		OrderDateUTC: time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestUpdateStatus_UsesReadVersion(t *testing.T) {
	remote := newFakeRemote(sample("o-1", "cust-1", 1))
	svc := New(remote, nil, nil)

	updated, err := svc.UpdateStatus(context.Background(), "o-1", "Shipped", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusShipped, updated.Status)
	assert.Equal(t, `"2"`, updated.Version)

	// any status may follow any other
	updated, err = svc.UpdateStatus(context.Background(), "o-1", " Submitted ", "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusSubmitted, updated.Status)
}

func TestUpdateStatus_RejectsUnknownStatus(t *testing.T) {
	remote := newFakeRemote(sample("o-1", "cust-1", 1))
	svc := New(remote, nil, nil)

	for _, raw := range []string{"shipped", "Lost", "", "1"} {
		_, err := svc.UpdateStatus(context.Background(), "o-1", raw, "")
		assert.ErrorIs(t, err, domain.ErrValidation, raw)
	}
	assert.Equal(t, 1, remote.versions["o-1"])
}

func TestUpdateStatus_MissingOrder(t *testing.T) {
	svc := New(newFakeRemote(), nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "nope", "Delivered", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatus_StaleExpectedVersion(t *testing.T) {
	remote := newFakeRemote(sample("o-1", "cust-1", 1))
	svc := New(remote, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "o-1", "Processing", `"1"`)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), "o-1", "Cancelled", `"1"`)
	assert.ErrorIs(t, err, domain.ErrConcurrentModification)

	o, _ := remote.GetOrder(context.Background(), "o-1")
	assert.Equal(t, domain.OrderStatusProcessing, o.Status)
}

func TestUpdateStatus_ConcurrentWritersOneWins(t *testing.T) {
	remote := newFakeRemote(sample("o-1", "cust-1", 1))
	svc := New(remote, nil, nil)

	current, err := svc.Get(context.Background(), "o-1")
	require.NoError(t, err)

	statuses := []string{"Shipped", "Cancelled"}
	errs := make([]error, len(statuses))
	var wg sync.WaitGroup
	for i, st := range statuses {
		wg.Add(1)
		go func(i int, st string) {
			defer wg.Done()
			_, errs[i] = svc.UpdateStatus(context.Background(), "o-1", st, current.Version)
		}(i, st)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConcurrentModification):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestDeleteOrder_Idempotent(t *testing.T) {
	remote := newFakeRemote(sample("o-1", "cust-1", 1))
	svc := New(remote, nil, nil)

	require.NoError(t, svc.DeleteOrder(context.Background(), "o-1"))
	require.NoError(t, svc.DeleteOrder(context.Background(), "o-1"))

	remote.deleteErr = domain.ErrRemoteUnavailable
	assert.ErrorIs(t, svc.DeleteOrder(context.Background(), "o-2"), domain.ErrRemoteUnavailable)
}

func TestListForUser_NewestFirstAndOwnOnly(t *testing.T) {
	remote := newFakeRemote(
		sample("o-1", "cust-1", 1),
		sample("o-2", "cust-2", 5),
		sample("o-3", "cust-1", 9),
		sample("o-4", "cust-1", 3),
	)
	svc := New(remote, nil, nil)

	orders, err := svc.ListForUser(context.Background(), "ann")
	require.NoError(t, err)
	keys := make([]string, 0, len(orders))
	for _, o := range orders {
		keys = append(keys, o.Key)
	}
	assert.Equal(t, []string{"o-3", "o-4", "o-1"}, keys)

	all, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "o-3", all[0].Key)
	assert.Equal(t, "o-1", all[3].Key)

	_, err = svc.ListForUser(context.Background(), "carol")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_CustomerOrdersForOwnAccount(t *testing.T) {
	remote := newFakeRemote()
	products := &stubProducts{stock: map[string]int{"kettle": 3}}
	svc := New(remote, products, nil)

	o, err := svc.Create(context.Background(), "ann", domain.RoleCustomer, "", "kettle", 2)
	require.NoError(t, err)
	assert.Equal(t, "cust-1", o.CustomerKey)
	assert.Equal(t, 2, o.Quantity)
	assert.Equal(t, []string{"kettle"}, products.invalidated)
	require.Len(t, remote.idempotencyKeys, 1)
	assert.NotEmpty(t, remote.idempotencyKeys[0])

	_, err = svc.Create(context.Background(), "ann", domain.RoleCustomer, "cust-2", "kettle", 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Len(t, remote.orders, 1)
}

func TestCreate_AdminOrdersForAnyCustomer(t *testing.T) {
	remote := newFakeRemote()
	svc := New(remote, &stubProducts{stock: map[string]int{"kettle": 3}}, nil)

	o, err := svc.Create(context.Background(), "boss", domain.RoleAdmin, "cust-2", "kettle", 1)
	require.NoError(t, err)
	assert.Equal(t, "cust-2", o.CustomerKey)

	_, err = svc.Create(context.Background(), "boss", domain.RoleAdmin, "", "kettle", 1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Create(context.Background(), "boss", domain.RoleAdmin, "cust-9", "kettle", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreate_RejectsQuantityAboveStock(t *testing.T) {
	remote := newFakeRemote()
	svc := New(remote, &stubProducts{stock: map[string]int{"kettle": 2}}, nil)

	_, err := svc.Create(context.Background(), "ann", domain.RoleCustomer, "", "kettle", 3)
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	_, err = svc.Create(context.Background(), "ann", domain.RoleCustomer, "", "ghost", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Create(context.Background(), "ann", domain.RoleCustomer, "", "kettle", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, remote.orders)
}

func TestCustomerByUsername(t *testing.T) {
	svc := New(newFakeRemote(), nil, nil)

	c, err := svc.CustomerByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, "cust-2", c.Key)

	_, err = svc.CustomerByUsername(context.Background(), "carol")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
