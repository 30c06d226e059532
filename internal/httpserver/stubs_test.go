package httpserver

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	cartsvc "storefront/internal/service/cart"
	usersvc "storefront/internal/service/user"
)

func logDiscard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stubAuthSvc maps bearer tokens to users.
type stubAuthSvc struct {
	users       map[string]*domain.User
	loginErr    error
	registerErr error
	loggedOut   []string
}

func (s *stubAuthSvc) Register(_ context.Context, username, _ string, role string) (*domain.User, error) {
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &domain.User{ID: 9, Username: username, Role: role}, nil
}

func (s *stubAuthSvc) Login(_ context.Context, username, _ string) (*domain.User, string, error) {
	if s.loginErr != nil {
		return nil, "", s.loginErr
	}
	return &domain.User{Username: username, Role: domain.RoleCustomer}, "tok-" + username, nil
}

func (s *stubAuthSvc) LookupByToken(_ context.Context, token string) (*domain.User, error) {
	u, ok := s.users[token]
	if !ok {
		return nil, usersvc.ErrInvalidToken
	}
	return u, nil
}

func (s *stubAuthSvc) Logout(_ context.Context, token string) error {
	s.loggedOut = append(s.loggedOut, token)
	return nil
}

func (s *stubAuthSvc) AccessTTLSeconds() int { return 3600 }

type stubCatalogSvc struct {
	product domain.Product
	err     error
}

func (s *stubCatalogSvc) Get(_ context.Context, key string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	p := s.product
	p.Key = key
	return p, nil
}

func (s *stubCatalogSvc) List(_ context.Context) ([]domain.Product, error) {
	return []domain.Product{s.product}, s.err
}

type stubCartSvc struct {
	lastCustomer string
	lastProduct  string
	lastUpdates  []cartsvc.QuantityUpdate
	updateResult cartsvc.UpdateResult
	err          error
}

func (s *stubCartSvc) AddToCart(_ context.Context, customerKey, productKey string) (*domain.CartLine, error) {
	s.lastCustomer, s.lastProduct = customerKey, productKey
	if s.err != nil {
		return nil, s.err
	}
	return &domain.CartLine{ID: 1, CustomerKey: customerKey, ProductKey: productKey, Quantity: 1}, nil
}

func (s *stubCartSvc) RemoveFromCart(_ context.Context, customerKey, productKey string) (cartsvc.RemoveResult, error) {
	s.lastCustomer, s.lastProduct = customerKey, productKey
	return cartsvc.RemoveResult{ProductKey: productKey, Removed: productKey == "kettle"}, s.err
}

func (s *stubCartSvc) UpdateQuantities(_ context.Context, customerKey string, updates []cartsvc.QuantityUpdate) (cartsvc.UpdateResult, error) {
	s.lastCustomer, s.lastUpdates = customerKey, updates
	return s.updateResult, s.err
}

func (s *stubCartSvc) ViewCart(_ context.Context, customerKey string) (domain.CartView, error) {
	s.lastCustomer = customerKey
	if s.err != nil {
		return domain.CartView{}, s.err
	}
	return domain.CartView{
		CustomerKey: customerKey,
		Lines:       []domain.CartViewLine{{ProductKey: "kettle", ProductName: "Kettle", Quantity: 2, UnitPriceCents: 2500, TotalCents: 5000}},
		TotalCents:  5000,
	}, nil
}

type stubCheckoutSvc struct {
	confs        []domain.OrderConfirmation
	err          error
	lastUsername string
}

func (s *stubCheckoutSvc) Checkout(_ context.Context, username string) ([]domain.OrderConfirmation, error) {
	s.lastUsername = username
	return s.confs, s.err
}

type stubOrderSvc struct {
	order        domain.Order
	orders       []domain.Order
	err          error
	lastKey      string
	lastStatus   string
	lastVersion  string
	lastUsername string
	deleted      []string

	lastActor    string
	lastRole     string
	lastCustomer string
	lastProduct  string
	lastQuantity int
	customer     domain.Customer
}

func (s *stubOrderSvc) Create(_ context.Context, actorUsername, role, customerKey, productKey string, quantity int) (domain.Order, error) {
	s.lastActor, s.lastRole, s.lastCustomer, s.lastProduct, s.lastQuantity = actorUsername, role, customerKey, productKey, quantity
	if s.err != nil {
		return domain.Order{}, s.err
	}
	return domain.Order{Key: "o-new", CustomerKey: customerKey, ProductKey: productKey, Quantity: quantity}, nil
}

func (s *stubOrderSvc) CustomerByUsername(_ context.Context, username string) (domain.Customer, error) {
	s.lastUsername = username
	return s.customer, s.err
}

func (s *stubOrderSvc) UpdateStatus(_ context.Context, orderKey, status, expectedVersion string) (domain.Order, error) {
	s.lastKey, s.lastStatus, s.lastVersion = orderKey, status, expectedVersion
	if s.err != nil {
		return domain.Order{}, s.err
	}
	o := s.order
	o.Status = domain.OrderStatus(status)
	return o, nil
}

func (s *stubOrderSvc) DeleteOrder(_ context.Context, orderKey string) error {
	s.deleted = append(s.deleted, orderKey)
	return s.err
}

func (s *stubOrderSvc) Get(_ context.Context, orderKey string) (domain.Order, error) {
	s.lastKey = orderKey
	return s.order, s.err
}

func (s *stubOrderSvc) List(_ context.Context) ([]domain.Order, error) {
	return s.orders, s.err
}

func (s *stubOrderSvc) ListForUser(_ context.Context, username string) ([]domain.Order, error) {
	s.lastUsername = username
	return s.orders, s.err
}

type testEnv struct {
	router   *gin.Engine
	auth     *stubAuthSvc
	catalog  *stubCatalogSvc
	cart     *stubCartSvc
	checkout *stubCheckoutSvc
	orders   *stubOrderSvc
}

const (
	customerToken = "customer-token"
	adminToken    = "admin-token"
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		auth: &stubAuthSvc{users: map[string]*domain.User{
			customerToken: {ID: 1, Username: "ann", Role: domain.RoleCustomer},
			adminToken:    {ID: 2, Username: "boss", Role: domain.RoleAdmin},
		}},
		catalog:  &stubCatalogSvc{product: domain.Product{Name: "Kettle", PriceCents: 2500, StockAvailable: 4}},
		cart:     &stubCartSvc{},
		checkout: &stubCheckoutSvc{},
		orders:   &stubOrderSvc{},
	}
	router, err := buildRouter(logDiscard(), nil, Deps{
		AuthSvc:     env.auth,
		CatalogSvc:  env.catalog,
		CartSvc:     env.cart,
		CheckoutSvc: env.checkout,
		OrderSvc:    env.orders,
	})
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

func (e *testEnv) do(method, path, token, body string, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d body=%s", want, rec.Code, rec.Body.String())
	}
}
