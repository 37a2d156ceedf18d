package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kmalinin/shoply/internal/models"
)

func listProducts(t *testing.T, env *testEnv, query string) ([]models.Product, map[string]interface{}) {
	t.Helper()
	rec, c := env.doJSON(http.MethodGet, "/api/v1/products?"+query, nil, nil)
	require.NoError(t, env.Products.GetProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Products   []models.Product       `json:"products"`
			Pagination map[string]interface{} `json:"pagination"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "success", resp.Status)
	return resp.Data.Products, resp.Data.Pagination
}

func TestGetProductsOnlyActive(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct("keyboard", 49.90, 10)
	hidden := env.createProduct("mouse", 19.90, 10)
	require.NoError(t, env.DB.Model(hidden).Update("active", false).Error)

	products, pagination := listProducts(t, env, "")
	require.Len(t, products, 1)
	require.Equal(t, "keyboard", products[0].Name)
	require.EqualValues(t, 1, pagination["total"])
}

func TestGetProductsFilters(t *testing.T) {
	env := newTestEnv(t)
	cheap := env.createProduct("usb cable", 5, 100)
	require.NoError(t, env.DB.Model(cheap).Update("category", "cables").Error)
	env.createProduct("keyboard", 49.90, 10)
	env.createProduct("monitor", 250, 0)

	products, _ := listProducts(t, env, "category=cables")
	require.Len(t, products, 1)
	require.Equal(t, "usb cable", products[0].Name)

	products, _ = listProducts(t, env, "minPrice=10&maxPrice=100")
	require.Len(t, products, 1)
	require.Equal(t, "keyboard", products[0].Name)

	products, _ = listProducts(t, env, "minStock=1")
	require.Len(t, products, 2)

	products, _ = listProducts(t, env, "search=KEY")
	require.Len(t, products, 1)
	require.Equal(t, "keyboard", products[0].Name)
}

func TestGetProductsSortAndPaginate(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct("a", 30, 1)
	env.createProduct("b", 10, 1)
	env.createProduct("c", 20, 1)

	products, _ := listProducts(t, env, "sortBy=price&order=asc")
	require.Len(t, products, 3)
	require.Equal(t, "b", products[0].Name)
	require.Equal(t, "a", products[2].Name)

	products, pagination := listProducts(t, env, "sortBy=price&order=asc&page=2&limit=2")
	require.Len(t, products, 1)
	require.Equal(t, "a", products[0].Name)
	require.EqualValues(t, 3, pagination["total"])
	require.EqualValues(t, 2, pagination["pages"])
}

func TestGetProductsIgnoresUnknownSortColumn(t *testing.T) {
	env := newTestEnv(t)
	env.createProduct("a", 30, 1)

	// A hostile sort key must not reach the SQL string.
	products, _ := listProducts(t, env, "sortBy=price%3BDROP+TABLE+products")
	require.Len(t, products, 1)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("keyboard", 49.90, 10)

	rec, c := env.doJSON(http.MethodGet, "/", nil, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	require.NoError(t, env.Products.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSON(http.MethodGet, "/", nil, nil)
	c.SetParamNames("id")
	c.SetParamValues("9999")
	requireAppError(t, env.Products.GetProduct(c), http.StatusNotFound)
}

func TestCreateProduct(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSON(http.MethodPost, "/api/v1/products", map[string]interface{}{
		"name":     "keyboard",
		"category": "peripherals",
		"price":    49.90,
		"stock":    10,
		"images":   []string{"front.jpg", "side.jpg"},
	}, nil)
	require.NoError(t, env.Products.CreateProduct(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var p models.Product
	require.NoError(t, env.DB.Where("name = ?", "keyboard").First(&p).Error)
	require.True(t, p.Active)
	require.Equal(t, "front.jpg,side.jpg", p.Images)
	require.Contains(t, env.Index.docs, p.ID)
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSON(http.MethodPost, "/api/v1/products", map[string]interface{}{"price": 10.0}, nil)
	requireAppError(t, env.Products.CreateProduct(c), http.StatusBadRequest)

	_, c = env.doJSON(http.MethodPost, "/api/v1/products", map[string]interface{}{"name": "x", "price": -1.0}, nil)
	requireAppError(t, env.Products.CreateProduct(c), http.StatusBadRequest)

	_, c = env.doJSON(http.MethodPost, "/api/v1/products", map[string]interface{}{"name": "x", "stock": -1}, nil)
	requireAppError(t, env.Products.CreateProduct(c), http.StatusBadRequest)
}

func TestUpdateProductWhitelist(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("keyboard", 49.90, 10)

	// Fields outside the whitelist (id, rating) must be ignored.
	rec, c := env.doJSON(http.MethodPut, "/", map[string]interface{}{
		"price":  59.90,
		"id":     777,
		"rating": 5.0,
	}, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	require.NoError(t, env.Products.UpdateProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Product
	require.NoError(t, env.DB.First(&got, p.ID).Error)
	require.Equal(t, 59.90, got.Price)
	require.Equal(t, float64(0), got.Rating)
	require.Equal(t, 10, got.Stock)
}

func TestUpdateProductRejectsNegative(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("keyboard", 49.90, 10)

	_, c := env.doJSON(http.MethodPut, "/", map[string]interface{}{"price": -0.01}, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	requireAppError(t, env.Products.UpdateProduct(c), http.StatusBadRequest)

	_, c = env.doJSON(http.MethodPut, "/", map[string]interface{}{"stock": -1}, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	requireAppError(t, env.Products.UpdateProduct(c), http.StatusBadRequest)
}

func TestDeleteProductIsSoft(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("keyboard", 49.90, 10)

	rec, c := env.doJSON(http.MethodDelete, "/", nil, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	require.NoError(t, env.Products.DeleteProduct(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	var got models.Product
	require.NoError(t, env.DB.First(&got, p.ID).Error)
	require.False(t, got.Active)

	// Still directly addressable for order history readers.
	rec, c = env.doJSON(http.MethodGet, "/", nil, nil)
	c.SetParamNames("id")
	c.SetParamValues(itoa(p.ID))
	require.NoError(t, env.Products.GetProduct(c))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchProducts(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("mechanical keyboard", 120, 5)
	require.NoError(t, env.Index.IndexProduct(t.Context(), p))

	rec, c := env.doJSON(http.MethodGet, "/api/v1/products/search?q=keyboard", nil, nil)
	require.NoError(t, env.Products.SearchProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	require.EqualValues(t, 1, data["results"])
}

func TestSearchProductsRequiresQuery(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSON(http.MethodGet, "/api/v1/products/search", nil, nil)
	requireAppError(t, env.Products.SearchProducts(c), http.StatusBadRequest)
}

func TestSearchProductsWithoutIndex(t *testing.T) {
	env := newTestEnv(t)
	env.Products.Index = nil

	_, c := env.doJSON(http.MethodGet, "/api/v1/products/search?q=x", nil, nil)
	requireAppError(t, env.Products.SearchProducts(c), http.StatusInternalServerError)
}
