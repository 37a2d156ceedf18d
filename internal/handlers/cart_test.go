package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmalinin/shoply/internal/models"
)

func decodeCart(t *testing.T, rec *httptest.ResponseRecorder) cartView {
	t.Helper()
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Cart cartView `json:"cart"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	return resp.Data.Cart
}

func TestAddToCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{
		"product_id": p.ID,
		"quantity":   2,
	}, user)
	require.NoError(t, env.Cart.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 2, cart.Items[0].Quantity)
	require.Equal(t, 49.90, cart.Items[0].Price)
	require.InDelta(t, 99.80, cart.TotalAmount, 0.001)
}

func TestAddToCartDefaultsQuantity(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID}, user)
	require.NoError(t, env.Cart.AddToCart(c))
	cart := decodeCart(t, rec)
	require.Equal(t, 1, cart.Items[0].Quantity)
}

func TestAddToCartMergesDuplicate(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 2}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	rec, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 3}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	cart := decodeCart(t, rec)
	require.Len(t, cart.Items, 1)
	require.Equal(t, 5, cart.Items[0].Quantity)
}

func TestAddToCartStockLimit(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 3)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 2}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	// 2 already held, 2 more would exceed the 3 in stock.
	_, c = env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 2}, user)
	err := env.Cart.AddToCart(c)
	appErr := requireAppError(t, err, http.StatusConflict)
	require.Equal(t, "only 3 items available", appErr.Message)
}

func TestAddToCartInactiveProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)
	require.NoError(t, env.DB.Model(p).Update("active", false).Error)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID}, user)
	requireAppError(t, env.Cart.AddToCart(c), http.StatusBadRequest)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": 9999}, user)
	requireAppError(t, env.Cart.AddToCart(c), http.StatusNotFound)
}

func TestUpdateCartItem(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 2}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	rec, c := env.doJSON(http.MethodPut, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 5}, user)
	require.NoError(t, env.Cart.UpdateCartItem(c))
	cart := decodeCart(t, rec)
	require.Equal(t, 5, cart.Items[0].Quantity)

	// Quantity above stock is refused.
	_, c = env.doJSON(http.MethodPut, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 11}, user)
	requireAppError(t, env.Cart.UpdateCartItem(c), http.StatusConflict)

	// Negative quantity is refused.
	_, c = env.doJSON(http.MethodPut, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": -1}, user)
	requireAppError(t, env.Cart.UpdateCartItem(c), http.StatusBadRequest)

	// Zero removes the line.
	rec, c = env.doJSON(http.MethodPut, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 0}, user)
	require.NoError(t, env.Cart.UpdateCartItem(c))
	cart = decodeCart(t, rec)
	require.Empty(t, cart.Items)
}

func TestUpdateCartItemMissing(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)

	_, c := env.doJSON(http.MethodPut, "/api/v1/cart", map[string]interface{}{"product_id": 9999, "quantity": 1}, user)
	requireAppError(t, env.Cart.UpdateCartItem(c), http.StatusNotFound)
}

func TestCartTotalUsesSnapshotPrice(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 10, 10)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 3}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	// A later catalog price change does not move the existing line.
	require.NoError(t, env.DB.Model(p).Update("price", 99.0).Error)

	rec, c := env.doJSON(http.MethodGet, "/api/v1/cart", nil, user)
	require.NoError(t, env.Cart.GetCart(c))
	cart := decodeCart(t, rec)
	require.InDelta(t, 30.0, cart.TotalAmount, 0.001)
}

func TestRemoveFromCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID}, user)
	require.NoError(t, env.Cart.AddToCart(c))

	rec, c := env.doJSON(http.MethodDelete, "/", nil, user)
	c.SetParamNames("productId")
	c.SetParamValues(itoa(p.ID))
	require.NoError(t, env.Cart.RemoveFromCart(c))
	cart := decodeCart(t, rec)
	require.Empty(t, cart.Items)
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("anna@example.com", models.RoleUser)
	p1 := env.createProduct("keyboard", 49.90, 10)
	p2 := env.createProduct("mouse", 19.90, 10)

	for _, p := range []*models.Product{p1, p2} {
		_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID}, user)
		require.NoError(t, env.Cart.AddToCart(c))
	}

	rec, c := env.doJSON(http.MethodDelete, "/api/v1/cart/clear", nil, user)
	require.NoError(t, env.Cart.ClearCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestCartsAreIsolatedPerUser(t *testing.T) {
	env := newTestEnv(t)
	anna := env.createUser("anna@example.com", models.RoleUser)
	boris := env.createUser("boris@example.com", models.RoleUser)
	p := env.createProduct("keyboard", 49.90, 10)

	_, c := env.doJSON(http.MethodPost, "/api/v1/cart", map[string]interface{}{"product_id": p.ID, "quantity": 2}, anna)
	require.NoError(t, env.Cart.AddToCart(c))

	rec, c := env.doJSON(http.MethodGet, "/api/v1/cart", nil, boris)
	require.NoError(t, env.Cart.GetCart(c))
	cart := decodeCart(t, rec)
	require.Empty(t, cart.Items)
}
