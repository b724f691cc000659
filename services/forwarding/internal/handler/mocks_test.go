package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	gojwt "github.com/golang-jwt/jwt/v5"

	"example.com/shipforward/pkg/jwt"
	"example.com/shipforward/services/forwarding/internal/auth"
	"example.com/shipforward/services/forwarding/internal/domain"
	"example.com/shipforward/services/forwarding/internal/middleware"
	"example.com/shipforward/services/forwarding/internal/saga"
	"example.com/shipforward/services/forwarding/internal/webhook"
)

// MockOrderService — мок OrderService.
type MockOrderService struct {
	CreateDraftFunc func(ctx context.Context, customerID string, in saga.DraftInput) (*domain.Order, error)
	GetOrderFunc    func(ctx context.Context, orderID, customerID string) (*domain.Order, error)
	DeleteDraftFunc func(ctx context.Context, orderID, customerID string) error
	ConfirmFunc     func(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error)
	PayShipmentFunc func(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error)
}

func (m *MockOrderService) CreateDraft(ctx context.Context, customerID string, in saga.DraftInput) (*domain.Order, error) {
	if m.CreateDraftFunc != nil {
		return m.CreateDraftFunc(ctx, customerID, in)
	}
	return nil, errors.New("CreateDraftFunc not set")
}

func (m *MockOrderService) GetOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error) {
	if m.GetOrderFunc != nil {
		return m.GetOrderFunc(ctx, orderID, customerID)
	}
	return nil, errors.New("GetOrderFunc not set")
}

func (m *MockOrderService) DeleteDraft(ctx context.Context, orderID, customerID string) error {
	if m.DeleteDraftFunc != nil {
		return m.DeleteDraftFunc(ctx, orderID, customerID)
	}
	return nil
}

func (m *MockOrderService) Confirm(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, orderID, customerID)
	}
	return nil, errors.New("ConfirmFunc not set")
}

func (m *MockOrderService) PayShipment(ctx context.Context, orderID, customerID string) (*domain.CheckoutSession, error) {
	if m.PayShipmentFunc != nil {
		return m.PayShipmentFunc(ctx, orderID, customerID)
	}
	return nil, errors.New("PayShipmentFunc not set")
}

// MockHostService — мок HostService.
type MockHostService struct {
	GetHostOrderFunc       func(ctx context.Context, orderID, hostID string) (*domain.Order, error)
	SetAvailabilityFunc    func(ctx context.Context, hostID string, available bool) error
	ReceiveItemFunc        func(ctx context.Context, hostID, orderID, itemID string) error
	AddItemPhotosFunc      func(ctx context.Context, hostID, orderID, itemID string, urls []string) error
	SubmitShipmentInfoFunc func(ctx context.Context, hostID, orderID string, info domain.ShipmentInfo) error
}

func (m *MockHostService) GetHostOrder(ctx context.Context, orderID, hostID string) (*domain.Order, error) {
	if m.GetHostOrderFunc != nil {
		return m.GetHostOrderFunc(ctx, orderID, hostID)
	}
	return nil, errors.New("GetHostOrderFunc not set")
}

func (m *MockHostService) SetAvailability(ctx context.Context, hostID string, available bool) error {
	if m.SetAvailabilityFunc != nil {
		return m.SetAvailabilityFunc(ctx, hostID, available)
	}
	return nil
}

func (m *MockHostService) ReceiveItem(ctx context.Context, hostID, orderID, itemID string) error {
	if m.ReceiveItemFunc != nil {
		return m.ReceiveItemFunc(ctx, hostID, orderID, itemID)
	}
	return nil
}

func (m *MockHostService) AddItemPhotos(ctx context.Context, hostID, orderID, itemID string, urls []string) error {
	if m.AddItemPhotosFunc != nil {
		return m.AddItemPhotosFunc(ctx, hostID, orderID, itemID, urls)
	}
	return nil
}

func (m *MockHostService) SubmitShipmentInfo(ctx context.Context, hostID, orderID string, info domain.ShipmentInfo) error {
	if m.SubmitShipmentInfoFunc != nil {
		return m.SubmitShipmentInfoFunc(ctx, hostID, orderID, info)
	}
	return nil
}

// MockAuthService — мок AuthService.
type MockAuthService struct {
	RequestCustomerAuthFunc func(ctx context.Context, email string) error
	RequestHostAuthFunc     func(ctx context.Context, email string) error
	VerifyFunc              func(ctx context.Context, token string) (*auth.Session, error)
	LogoutFunc              func(ctx context.Context, token string) error
}

func (m *MockAuthService) RequestCustomerAuth(ctx context.Context, email string) error {
	if m.RequestCustomerAuthFunc != nil {
		return m.RequestCustomerAuthFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) RequestHostAuth(ctx context.Context, email string) error {
	if m.RequestHostAuthFunc != nil {
		return m.RequestHostAuthFunc(ctx, email)
	}
	return nil
}

func (m *MockAuthService) Verify(ctx context.Context, token string) (*auth.Session, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, token)
	}
	return nil, auth.ErrUnauthorized
}

func (m *MockAuthService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

// MockVerifier и MockDispatcher — вебхук.
type MockVerifier struct {
	VerifyFunc func(payload []byte, signature string) (*domain.CompletedCheckout, error)
}

func (m *MockVerifier) Verify(payload []byte, signature string) (*domain.CompletedCheckout, error) {
	return m.VerifyFunc(payload, signature)
}

type MockDispatcher struct {
	Calls        int
	DispatchFunc func(ctx context.Context, checkout *domain.CompletedCheckout) (webhook.Result, error)
}

func (m *MockDispatcher) Dispatch(ctx context.Context, checkout *domain.CompletedCheckout) (webhook.Result, error) {
	m.Calls++
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, checkout)
	}
	return webhook.ResultApplied, nil
}

// tokenAuthenticator: "customer:<id>" и "host:<id>".
type tokenAuthenticator struct{}

func (tokenAuthenticator) Authenticate(_ context.Context, token string) (*jwt.Claims, error) {
	role, subject, ok := strings.Cut(token, ":")
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return &jwt.Claims{RegisteredClaims: gojwt.RegisteredClaims{ID: "jti", Subject: subject}, Kind: jwt.KindSession, Role: role}, nil
}

type testDeps struct {
	orders     *MockOrderService
	hosts      *MockHostService
	auth       *MockAuthService
	verifier   *MockVerifier
	dispatcher *MockDispatcher
	ready      error
}

func newTestDeps() *testDeps {
	return &testDeps{
		orders:     &MockOrderService{},
		hosts:      &MockHostService{},
		auth:       &MockAuthService{},
		verifier:   &MockVerifier{},
		dispatcher: &MockDispatcher{},
	}
}

func (d *testDeps) router() *gin.Engine {
	r := NewRouter(RouterConfig{
		Orders:         d.orders,
		Hosts:          d.hosts,
		Auth:           d.auth,
		Verifier:       d.verifier,
		Dispatcher:     d.dispatcher,
		AuthMW:         middleware.NewAuthMiddleware(tokenAuthenticator{}, "sf_token"),
		Cookie:         CookieConfig{Name: "sf_token"},
		AllowedOrigins: []string{"http://localhost:3000"},
		ReadinessCheck: func(context.Context) error { return d.ready },
	})
	gin.SetMode(gin.TestMode)
	return r.Engine()
}

func do(r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
