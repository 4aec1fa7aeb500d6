package cart_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cartkit/internal/cache"
	"github.com/noah-isme/cartkit/internal/cart"
	"github.com/noah-isme/cartkit/internal/obs"
	"github.com/noah-isme/cartkit/internal/repo"
)

type line struct {
	Kind string `json:"kind"`
	Item struct {
		RowID string  `json:"rowId"`
		ID    string  `json:"id"`
		Qty   float64 `json:"qty"`
	} `json:"item"`
}

type cartView struct {
	Instance       string                       `json:"instance"`
	Items          []line                       `json:"items"`
	Count          float64                      `json:"count"`
	Lines          int                          `json:"lines"`
	Totals         cart.Totals                  `json:"totals"`
	Formatted      map[string]string            `json:"formatted"`
	FormattedItems map[string]map[string]string `json:"formattedItems"`
	Discounts      cart.DiscountCounters        `json:"discounts"`
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	sessions := cache.NewMemorySessions()
	factory := cart.SessionFactory(cart.Config{
		Saved:   repo.NewMemorySavedCarts(),
		TaxRate: 21,
	}, func(id string) cart.SessionStore { return sessions.Session(id) })
	h := &cart.Handler{Carts: factory, Logger: zerolog.Nop()}
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(obs.SessionHeader, session)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeData[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Data
}

func TestHandlerRequiresSession(t *testing.T) {
	rr := do(t, newRouter(t), http.MethodGet, "/cart/", "", nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerRejectsSessionWithPatternCharacters(t *testing.T) {
	r := newRouter(t)
	for _, session := range []string{"*", "s?", "[s]1", "s1:cart.x"} {
		rr := do(t, r, http.MethodGet, "/cart/", session, nil)
		require.Equal(t, http.StatusBadRequest, rr.Code, session)
	}
}

func TestHandlerAddAndGet(t *testing.T) {
	r := newRouter(t)

	rr := do(t, r, http.MethodPost, "/cart/items", "s1", map[string]any{
		"id": "293ad", "name": "Product 1", "qty": 2, "price": 10.00,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	added := decodeData[line](t, rr)
	require.Equal(t, "product", added.Kind)
	require.Equal(t, 2.0, added.Item.Qty)

	rr = do(t, r, http.MethodGet, "/cart/", "s1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	view := decodeData[cartView](t, rr)
	require.Equal(t, cart.DefaultInstance, view.Instance)
	require.Len(t, view.Items, 1)
	require.Equal(t, 2.0, view.Count)
	require.Equal(t, 1, view.Lines)
	require.InDelta(t, 24.20, view.Totals.Total, 1e-9)
	require.Equal(t, "24.20", view.Formatted["total"])
	require.Equal(t, "10.00", view.FormattedItems[added.Item.RowID]["price"])
	require.Equal(t, "2.10", view.FormattedItems[added.Item.RowID]["tax"])
	require.Equal(t, "24.20", view.FormattedItems[added.Item.RowID]["total"])

	rr = do(t, r, http.MethodGet, "/cart/", "s2", nil)
	require.Empty(t, decodeData[cartView](t, rr).Items)
}

func TestHandlerBatchAdd(t *testing.T) {
	r := newRouter(t)
	rr := do(t, r, http.MethodPost, "/cart/items", "s1", map[string]any{
		"items": []map[string]any{
			{"id": "a", "name": "A", "price": 5},
			{"id": "b", "name": "B", "qty": 3, "price": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, decodeData[[]line](t, rr), 2)

	rr = do(t, r, http.MethodPost, "/cart/items", "s1", map[string]any{
		"items": []map[string]any{{"id": "c", "name": "C", "price": 1}, {"name": "missing id"}},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	view := decodeData[cartView](t, do(t, r, http.MethodGet, "/cart/", "s1", nil))
	require.Equal(t, 2, view.Lines)
}

func TestHandlerUpdateAndRemove(t *testing.T) {
	r := newRouter(t)
	added := decodeData[line](t, do(t, r, http.MethodPost, "/cart/items", "s1", map[string]any{
		"id": "1", "name": "Mug", "price": 8,
	}))

	rr := do(t, r, http.MethodPatch, "/cart/items/"+added.Item.RowID, "s1", map[string]any{"qty": 4})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.Equal(t, 4.0, decodeData[line](t, rr).Item.Qty)

	rr = do(t, r, http.MethodPatch, "/cart/items/"+added.Item.RowID, "s1", map[string]any{"qty": -1})
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, r, http.MethodDelete, "/cart/items/"+added.Item.RowID, "s1", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerShippingAndFreeShipping(t *testing.T) {
	r := newRouter(t)
	rr := do(t, r, http.MethodPost, "/cart/free-shipping", "s1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, decodeData[map[string]bool](t, rr)["applied"])

	rr = do(t, r, http.MethodPost, "/cart/shipping", "s1", map[string]any{"id": "ups", "name": "UPS", "price": 5})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Equal(t, "shipping", decodeData[line](t, rr).Kind)

	rr = do(t, r, http.MethodPost, "/cart/free-shipping", "s1", nil)
	require.True(t, decodeData[map[string]bool](t, rr)["applied"])
}

func TestHandlerDiscountCounters(t *testing.T) {
	r := newRouter(t)
	rr := do(t, r, http.MethodPost, "/cart/discounts", "s1", map[string]any{
		"id": "promo", "name": "Promo", "value": 5, "type": "currency",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	view := decodeData[cartView](t, do(t, r, http.MethodGet, "/cart/", "s1", nil))
	require.Equal(t, 5.0, view.Discounts.Monetary)
	require.Zero(t, view.Totals.Total)
}

func TestHandlerStoreRestore(t *testing.T) {
	r := newRouter(t)
	do(t, r, http.MethodPost, "/cart/items?instance=wishlist", "s1", map[string]any{"id": "1", "name": "Lamp", "price": 30})

	rr := do(t, r, http.MethodPost, "/cart/store/user-7?instance=wishlist", "s1", nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	rr = do(t, r, http.MethodPost, "/cart/store/user-7?instance=wishlist", "s1", nil)
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, r, http.MethodPut, "/cart/store/user-7?instance=wishlist", "s1", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPost, "/cart/restore/user-7?instance=wishlist", "s2", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	view := decodeData[cartView](t, rr)
	require.Equal(t, "wishlist", view.Instance)
	require.Len(t, view.Items, 1)

	rr = do(t, r, http.MethodDelete, "/cart/store/user-7?instance=wishlist", "s2", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestHandlerDestroy(t *testing.T) {
	r := newRouter(t)
	do(t, r, http.MethodPost, "/cart/items", "s1", map[string]any{"id": "1", "name": "Lamp", "price": 30})

	rr := do(t, r, http.MethodDelete, "/cart/", "s1", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, decodeData[cartView](t, do(t, r, http.MethodGet, "/cart/", "s1", nil)).Items)
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	r := newRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/cart/items", bytes.NewBufferString("{"))
	req.Header.Set(obs.SessionHeader, "s1")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
