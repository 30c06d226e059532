package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) GetCustomerByUsername(ctx context.Context, username string) (domain.Customer, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(domain.Customer), args.Error(1)
}

func (m *mockRemote) CreateOrder(ctx context.Context, customerKey, productKey string, quantity int, idempotencyKey string) (domain.Order, error) {
	args := m.Called(ctx, customerKey, productKey, quantity, idempotencyKey)
	return args.Get(0).(domain.Order), args.Error(1)
}

type fakeProducts struct {
	mu          sync.Mutex
	products    map[string]domain.Product
	invalidated []string
}

func (f *fakeProducts) Live(_ context.Context, key string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[key]
	if !ok {
		return domain.Product{}, domain.NewNotFound("product", key)
	}
	return p, nil
}

func (f *fakeProducts) Invalidate(_ context.Context, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, keys...)
}

// fakeStore backs both the cart lines and the ledger so Complete can clear them together.
type fakeStore struct {
	mu          sync.Mutex
	lines       []domain.CartLine
	ledger      map[int64]domain.OrderConfirmation
	events      []domain.OutboxEvent
	completeErr error
	recordErr   error
}

func (f *fakeStore) ListByCustomer(_ context.Context, customerKey string) ([]domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.CartLine
	for _, l := range f.lines {
		if l.CustomerKey == customerKey {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) Record(_ context.Context, _, _ string, c domain.OrderConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return f.recordErr
	}
	if _, ok := f.ledger[c.CartLineID]; ok {
		return domain.ErrAlreadyExists
	}
	f.ledger[c.CartLineID] = c
	return nil
}

type ledgerView struct{ *fakeStore }

func (v ledgerView) ListByCustomer(_ context.Context, _ string) ([]domain.OrderConfirmation, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.OrderConfirmation, 0, len(v.ledger))
	for _, c := range v.ledger {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) Complete(_ context.Context, _ string, lineIDs []int64, events []domain.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	drop := make(map[int64]bool, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = true
		delete(f.ledger, id)
	}
	kept := f.lines[:0]
	for _, l := range f.lines {
		if !drop[l.ID] {
			kept = append(kept, l)
		}
	}
	f.lines = kept
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) lineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines)
}

type fixture struct {
	svc      *Service
	remote   *mockRemote
	products *fakeProducts
	store    *fakeStore
}

var ann = domain.Customer{Key: "cust-1", Username: "ann"}

func newFixture(t *testing.T, lines ...domain.CartLine) *fixture {
	t.Helper()
	remote := &mockRemote{}
	products := &fakeProducts{products: map[string]domain.Product{
		"kettle": {Key: "kettle", Name: "Kettle", PriceCents: 2500, StockAvailable: 5},
		"mug":    {Key: "mug", Name: "Mug", PriceCents: 800, StockAvailable: 2},
		"teapot": {Key: "teapot", Name: "Teapot", PriceCents: 4000, StockAvailable: 1},
	}}
	store := &fakeStore{lines: lines, ledger: make(map[int64]domain.OrderConfirmation)}
	svc := New(remote, products, store, ledgerView{store}, Options{Topic: "orders"})
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return &fixture{svc: svc, remote: remote, products: products, store: store}
}

func line(id int64, product string, qty int) domain.CartLine {
	return domain.CartLine{
		ID:          id,
		CustomerKey: "ann",
		ProductKey:  product,
		Quantity:    qty,
		CreatedAt:   time.Unix(id, 0),
	}
}

func order(key, product string, qty int, unit int64) domain.Order {
	return domain.Order{
		Key:            key,
		CustomerKey:    ann.Key,
		ProductKey:     product,
		Quantity:       qty,
		UnitPriceCents: unit,
		TotalCents:     unit * int64(qty),
		OrderDateUTC:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:         domain.OrderStatusSubmitted,
	}
}

func (f *fixture) expectCustomer() {
	f.remote.On("GetCustomerByUsername", mock.Anything, "ann").Return(ann, nil)
}

func TestCheckout_OrdersEveryLineAndClearsCart(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 2), line(2, "mug", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 2, "line-1").Return(order("o-1", "kettle", 2, 2500), nil).Once()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "mug", 1, "line-2").Return(order("o-2", "mug", 1, 800), nil).Once()

	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 2)
	assert.Equal(t, "o-1", confs[0].OrderKey)
	assert.Equal(t, int64(5000), confs[0].TotalCents)
	assert.Equal(t, "o-2", confs[1].OrderKey)
	assert.False(t, confs[0].Reused)

	assert.Zero(t, f.store.lineCount())
	assert.Empty(t, f.store.ledger)
	require.Len(t, f.store.events, 2)
	for _, ev := range f.store.events {
		assert.Equal(t, domain.EventOrderCreated, ev.Type)
		assert.Equal(t, "orders", ev.Topic)
	}
	var payload domain.OrderCreated
	require.NoError(t, json.Unmarshal(f.store.events[0].Payload, &payload))
	assert.Equal(t, "o-1", payload.OrderKey)
	assert.Equal(t, "ann", payload.Username)
	assert.Equal(t, "cust-1", payload.CustomerKey)
	assert.ElementsMatch(t, []string{"kettle", "mug"}, f.products.invalidated)
	f.remote.AssertExpectations(t)
}

func TestCheckout_OverStockLineCreatesNoOrders(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "teapot", 2))
	f.expectCustomer()

	_, err := f.svc.Checkout(context.Background(), "ann")
	var stockErr *domain.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "teapot", stockErr.ProductKey)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 2, stockErr.Requested)

	f.remote.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2, f.store.lineCount())
	assert.Empty(t, f.store.events)
}

func TestCheckout_MissingProductCreatesNoOrders(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "ghost", 1))
	f.expectCustomer()

	_, err := f.svc.Checkout(context.Background(), "ann")
	require.ErrorIs(t, err, domain.ErrNotFound)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "product", nf.Kind)
	assert.Equal(t, "ghost", nf.Key)
	f.remote.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 2, f.store.lineCount())
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.expectCustomer()

	_, err := f.svc.Checkout(context.Background(), "ann")
	require.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.Empty(t, f.store.events)
}

func TestCheckout_UnknownCustomer(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1))
	f.remote.On("GetCustomerByUsername", mock.Anything, "ann").Return(domain.Customer{}, domain.NewNotFound("customer", "ann"))

	_, err := f.svc.Checkout(context.Background(), "ann")
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "customer", nf.Kind)
	assert.Equal(t, 1, f.store.lineCount())
}

func TestCheckout_RequiresUsername(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), "  ")
	require.ErrorIs(t, err, domain.ErrValidation)
	f.remote.AssertNotCalled(t, "GetCustomerByUsername", mock.Anything, mock.Anything)
}

func TestCheckout_PartialFailureThenRetryOrdersOnlyRemainingLines(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "mug", 2), line(3, "teapot", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(order("o-1", "kettle", 1, 2500), nil).Once()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "mug", 2, "line-2").Return(domain.Order{}, domain.ErrRemoteUnavailable).Once()

	_, err := f.svc.Checkout(context.Background(), "ann")
	var partial *domain.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, domain.ErrPartialCheckout)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	require.Len(t, partial.Succeeded, 1)
	assert.Equal(t, "o-1", partial.Succeeded[0].OrderKey)
	assert.Equal(t, int64(2), partial.Failed.ID)
	assert.Equal(t, "id-1", partial.AttemptID)

	assert.Equal(t, 3, f.store.lineCount(), "cart untouched after partial failure")
	assert.Contains(t, f.store.ledger, int64(1))
	assert.Empty(t, f.store.events)

	f.remote.On("CreateOrder", mock.Anything, "cust-1", "mug", 2, "line-2").Return(order("o-2", "mug", 2, 800), nil).Once()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "teapot", 1, "line-3").Return(order("o-3", "teapot", 1, 4000), nil).Once()

	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 3)
	assert.Equal(t, []string{"o-1", "o-2", "o-3"}, []string{confs[0].OrderKey, confs[1].OrderKey, confs[2].OrderKey})
	assert.True(t, confs[0].Reused)
	assert.False(t, confs[1].Reused)

	f.remote.AssertNumberOfCalls(t, "CreateOrder", 4)
	f.remote.AssertExpectations(t)
	assert.Zero(t, f.store.lineCount())
	assert.Len(t, f.store.events, 3)
}

func TestCheckout_LedgerLinesAreNotRevalidated(t *testing.T) {
	f := newFixture(t, line(1, "teapot", 1), line(2, "mug", 1))
	f.store.ledger[1] = domain.ConfirmationFromOrder(1, order("o-1", "teapot", 1, 4000))
	// teapot sold out after the earlier attempt ordered it
	f.products.products["teapot"] = domain.Product{Key: "teapot", StockAvailable: 0}
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "mug", 1, "line-2").Return(order("o-2", "mug", 1, 800), nil).Once()

	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 2)
	assert.Equal(t, "o-1", confs[0].OrderKey)
	assert.True(t, confs[0].Reused)
	f.remote.AssertExpectations(t)
}

func TestCheckout_CancelledBeforeCreationHasNoSideEffects(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1))
	f.expectCustomer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Checkout(ctx, "ann")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrPartialCheckout)
	f.remote.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.store.lineCount())
	assert.Empty(t, f.store.ledger)
}

func TestCheckout_CancelMidLoopKeepsCreatedOrders(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "mug", 1))
	f.expectCustomer()
	ctx, cancel := context.WithCancel(context.Background())
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").
		Run(func(mock.Arguments) { cancel() }).
		Return(order("o-1", "kettle", 1, 2500), nil).Once()

	_, err := f.svc.Checkout(ctx, "ann")
	var partial *domain.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, partial.Succeeded, 1)
	assert.Equal(t, "mug", partial.Failed.ProductKey)
	assert.Contains(t, f.store.ledger, int64(1), "created order is recorded despite cancellation")
	assert.Equal(t, 2, f.store.lineCount())
	f.remote.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCheckout_FinalizeFailureKeepsLedgerForRetry(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(order("o-1", "kettle", 1, 2500), nil).Once()
	f.store.completeErr = errors.New("db down")

	_, err := f.svc.Checkout(context.Background(), "ann")
	require.ErrorContains(t, err, "finalize checkout")
	assert.Equal(t, 1, f.store.lineCount())

	f.store.completeErr = nil
	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.True(t, confs[0].Reused)
	f.remote.AssertNumberOfCalls(t, "CreateOrder", 1)
	assert.Zero(t, f.store.lineCount())
}

func TestCheckout_FillsConfirmationFromProductWhenOrderIsSparse(t *testing.T) {
	f := newFixture(t, line(1, "mug", 2))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "mug", 2, "line-1").Return(domain.Order{Key: "o-9", Status: domain.OrderStatusSubmitted}, nil).Once()

	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.Equal(t, "Mug", confs[0].ProductName)
	assert.Equal(t, int64(800), confs[0].UnitPriceCents)
	assert.Equal(t, int64(1600), confs[0].TotalCents)
	assert.Equal(t, 2, confs[0].Quantity)
}

func TestCheckout_FirstCreateFailureIsNotPartial(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "mug", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(domain.Order{}, domain.ErrRemoteUnavailable).Once()

	_, err := f.svc.Checkout(context.Background(), "ann")
	require.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	assert.NotErrorIs(t, err, domain.ErrPartialCheckout)
	assert.Equal(t, 2, f.store.lineCount())
	assert.Empty(t, f.store.ledger)
	f.remote.AssertNumberOfCalls(t, "CreateOrder", 1)
}

func TestCheckout_FirstCreateFailureWithLedgerOrdersIsPartial(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "mug", 1))
	f.store.ledger[2] = domain.ConfirmationFromOrder(2, order("o-2", "mug", 1, 800))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(domain.Order{}, domain.ErrRemoteUnavailable).Once()

	_, err := f.svc.Checkout(context.Background(), "ann")
	var partial *domain.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Succeeded, 1)
	assert.Equal(t, "o-2", partial.Succeeded[0].OrderKey)
	assert.Equal(t, int64(1), partial.Failed.ID)
}

func TestCheckout_LedgerWriteFailureStopsBeforeNextOrder(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1), line(2, "mug", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(order("o-1", "kettle", 1, 2500), nil).Once()
	dbDown := errors.New("db down")
	f.store.recordErr = dbDown

	_, err := f.svc.Checkout(context.Background(), "ann")
	var partial *domain.PartialCheckoutError
	require.ErrorAs(t, err, &partial)
	assert.ErrorIs(t, err, dbDown)
	require.Len(t, partial.Succeeded, 1)
	assert.Equal(t, "o-1", partial.Succeeded[0].OrderKey)
	assert.Equal(t, int64(1), partial.Failed.ID)
	f.remote.AssertNumberOfCalls(t, "CreateOrder", 1)
	assert.Equal(t, 2, f.store.lineCount())
	assert.Empty(t, f.store.events)
}

func TestCheckout_LedgerWriteFailureOnLastLineStillCompletes(t *testing.T) {
	f := newFixture(t, line(1, "kettle", 1))
	f.expectCustomer()
	f.remote.On("CreateOrder", mock.Anything, "cust-1", "kettle", 1, "line-1").Return(order("o-1", "kettle", 1, 2500), nil).Once()
	f.store.recordErr = errors.New("db hiccup")

	confs, err := f.svc.Checkout(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, confs, 1)
	assert.Zero(t, f.store.lineCount())
	assert.Len(t, f.store.events, 1)
}
