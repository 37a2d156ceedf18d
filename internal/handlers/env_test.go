package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kmalinin/shoply/internal/auth"
	"github.com/kmalinin/shoply/internal/cache"
	"github.com/kmalinin/shoply/internal/config"
	"github.com/kmalinin/shoply/internal/events"
	"github.com/kmalinin/shoply/internal/hash"
	"github.com/kmalinin/shoply/internal/mailer"
	"github.com/kmalinin/shoply/internal/models"
	"github.com/kmalinin/shoply/internal/payments"
	"github.com/kmalinin/shoply/internal/search"
	"github.com/kmalinin/shoply/internal/web"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	fail bool
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() *mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return nil
	}
	return &m.sent[len(m.sent)-1]
}

type fakeProvider struct {
	intents    int
	refunds    int
	lastAmount int64
	nextEvent  *payments.Event
}

func (p *fakeProvider) CreateIntent(_ context.Context, amountCents int64, currency string, metadata map[string]string) (*payments.Intent, error) {
	p.intents++
	p.lastAmount = amountCents
	return &payments.Intent{
		ID:           fmt.Sprintf("pi_test_%d", p.intents),
		ClientSecret: fmt.Sprintf("pi_test_%d_secret", p.intents),
	}, nil
}

func (p *fakeProvider) Refund(_ context.Context, intentID string, metadata map[string]string) (string, error) {
	p.refunds++
	return fmt.Sprintf("re_test_%d", p.refunds), nil
}

func (p *fakeProvider) VerifyWebhook(payload []byte, signature string) (*payments.Event, error) {
	if signature != "t=valid" {
		return nil, fmt.Errorf("bad signature")
	}
	return p.nextEvent, nil
}

type fakeIndex struct {
	docs map[uint]models.Product
}

func (f *fakeIndex) IndexProduct(_ context.Context, p *models.Product) error {
	if f.docs == nil {
		f.docs = map[uint]models.Product{}
	}
	f.docs[p.ID] = *p
	return nil
}

func (f *fakeIndex) Search(_ context.Context, query string) ([]models.Product, error) {
	var out []models.Product
	for _, p := range f.docs {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

var _ search.ProductIndex = (*fakeIndex)(nil)

type testEnv struct {
	T        *testing.T
	E        *echo.Echo
	DB       *gorm.DB
	Codes    *cache.MemoryStore
	Mail     *fakeMailer
	Provider *fakeProvider
	Index    *fakeIndex

	Auth     *AuthHandler
	Users    *UserHandler
	Products *ProductHandler
	Cart     *CartHandler
	Orders   *OrderHandler
	Payments *PaymentHandler
	Reviews  *ReviewHandler
	Wishlist *WishlistHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	env := &testEnv{
		T:        t,
		E:        echo.New(),
		DB:       db,
		Codes:    cache.NewMemoryStore(),
		Mail:     &fakeMailer{},
		Provider: &fakeProvider{},
		Index:    &fakeIndex{},
	}

	secret := []byte("test-secret")
	env.Auth = &AuthHandler{DB: db, JWTSecret: secret, Codes: env.Codes, Mail: env.Mail, Producer: events.Nop{}, BaseURL: "http://localhost:8080"}
	env.Users = &UserHandler{DB: db}
	env.Products = &ProductHandler{DB: db, Producer: events.Nop{}, Index: env.Index}
	env.Cart = &CartHandler{DB: db}
	env.Orders = &OrderHandler{DB: db, Mail: env.Mail, Producer: events.Nop{}}
	env.Payments = &PaymentHandler{DB: db, Provider: env.Provider, Dedupe: env.Codes, Mail: env.Mail, Producer: events.Nop{}}
	env.Reviews = &ReviewHandler{DB: db}
	env.Wishlist = &WishlistHandler{DB: db}

	return env
}

func (env *testEnv) createUser(email string, role models.Role) *models.User {
	env.T.Helper()
	passwordHash, err := hash.HashPassword("password123")
	require.NoError(env.T, err)
	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    "Test",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func (env *testEnv) createProduct(name string, price float64, stock int) *models.Product {
	env.T.Helper()
	p := &models.Product{
		Name:     name,
		Category: "misc",
		Price:    price,
		Stock:    stock,
		Active:   true,
	}
	require.NoError(env.T, env.DB.Create(p).Error)
	return p
}

// doJSON builds an echo context for a handler call; as mimics an
// authenticated request when non-nil.
func (env *testEnv) doJSON(method, path string, body interface{}, as *models.User) (*httptest.ResponseRecorder, echo.Context) {
	env.T.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if as != nil {
		auth.SetCurrentUser(c, as)
	}
	return rec, c
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Status string                 `json:"status"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	return resp.Data
}

func requireAppError(t *testing.T, err error, code int) *web.AppError {
	t.Helper()
	require.Error(t, err)
	appErr, ok := web.AsAppError(err)
	require.True(t, ok, "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code)
	return appErr
}
