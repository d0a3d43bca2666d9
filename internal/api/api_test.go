package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"cart-service/internal/config"
	"cart-service/internal/entity"
	"cart-service/internal/events"
	"cart-service/internal/repository"
	"cart-service/internal/service"
	"cart-service/internal/session"
)

type mapRepo struct {
	rows map[string]*repository.StoredCart
}

func (r *mapRepo) Upsert(_ context.Context, stored *repository.StoredCart) error {
	r.rows[stored.Identifier+"|"+stored.Instance] = stored
	return nil
}

func (r *mapRepo) Find(_ context.Context, identifier, instance string) (*repository.StoredCart, error) {
	return r.rows[identifier+"|"+instance], nil
}

func (r *mapRepo) Exists(_ context.Context, identifier, instance string) (bool, error) {
	_, ok := r.rows[identifier+"|"+instance]
	return ok, nil
}

func (r *mapRepo) Delete(_ context.Context, identifier, instance string) (int64, error) {
	key := identifier + "|" + instance
	if _, ok := r.rows[key]; !ok {
		return 0, nil
	}
	delete(r.rows, key)
	return 1, nil
}

func newTestHandler() *CartHandler {
	cfg := config.Config{TaxRate: 21, Table: "shopping_cart", Format: entity.DefaultNumberFormat}
	repo := &mapRepo{rows: make(map[string]*repository.StoredCart)}
	cart := service.NewCart(session.NewMemoryStore(), repo, events.Nop{}, service.NewModelRegistry(), cfg)
	return NewCartHandler(cart)
}

func doRequest(t *testing.T, method, target, body string, handle func(echo.Context) error, params ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	for i := 0; i+1 < len(params); i += 2 {
		c.SetParamNames(params[i])
		c.SetParamValues(params[i+1])
	}

	if err := handle(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	return rec
}

func TestAddItemsSingle(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(t, http.MethodPost, "/cart/items", `{"id":"1","name":"First item","qty":2,"price":10}`, h.AddItems)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		RowID string  `json:"rowId"`
		Qty   float64 `json:"qty"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.RowID == "" || payload.Qty != 2 {
		t.Fatalf("unexpected payload: %s", rec.Body.String())
	}
}

func TestAddItemsBatch(t *testing.T) {
	h := newTestHandler()

	body := `[{"id":"1","name":"First item","price":10},{"id":"2","name":"Second item","price":20}]`
	rec := doRequest(t, http.MethodPost, "/cart/items", body, h.AddItems)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var items []json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("batch returned %d items", len(items))
	}
}

func TestAddItemsRejectsInvalidPayload(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(t, http.MethodPost, "/cart/items", `{"name":"No id","price":10}`, h.AddItems)
	if rec.Code != 400 {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetCartTotals(t *testing.T) {
	h := newTestHandler()

	doRequest(t, http.MethodPost, "/cart/items", `{"id":"1","name":"First item","qty":1,"price":10}`, h.AddItems)
	doRequest(t, http.MethodPost, "/cart/items", `{"id":"2","name":"Second item","qty":2,"price":20}`, h.AddItems)

	rec := doRequest(t, http.MethodGet, "/cart", "", h.GetCart)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	var payload struct {
		Count     float64           `json:"count"`
		Subtotal  float64           `json:"subtotal"`
		Tax       float64           `json:"tax"`
		Total     float64           `json:"total"`
		Formatted map[string]string `json:"formatted"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Count != 3 {
		t.Fatalf("count = %v, want 3", payload.Count)
	}
	if payload.Formatted["subtotal"] != "50.00" {
		t.Fatalf("formatted subtotal = %q, want 50.00", payload.Formatted["subtotal"])
	}
	if payload.Formatted["total"] != "60.50" {
		t.Fatalf("formatted total = %q, want 60.50", payload.Formatted["total"])
	}
}

func TestUpdateItemToZeroReportsRemoval(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(t, http.MethodPost, "/cart/items", `{"id":"1","name":"First item","qty":1,"price":10}`, h.AddItems)
	var added struct {
		RowID string `json:"rowId"`
	}
	json.Unmarshal(rec.Body.Bytes(), &added)

	rec = doRequest(t, http.MethodPut, "/cart/items/"+added.RowID, `{"qty":0}`, h.UpdateItem, "rowId", added.RowID)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "removed") {
		t.Fatalf("body = %s, want removal marker", rec.Body.String())
	}
}

func TestUnknownRowIDIs404(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(t, http.MethodGet, "/cart/items/missing", "", h.GetItem, "rowId", "missing")
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStoreAndRestoreEndpoints(t *testing.T) {
	h := newTestHandler()

	doRequest(t, http.MethodPost, "/cart/items", `{"id":"1","name":"First item","qty":1,"price":10}`, h.AddItems)

	rec := doRequest(t, http.MethodPost, "/cart/store/user-1", "", h.StoreCart, "identifier", "user-1")
	if rec.Code != 200 {
		t.Fatalf("store status = %d", rec.Code)
	}

	doRequest(t, http.MethodDelete, "/cart", "", h.DestroyCart)

	rec = doRequest(t, http.MethodPost, "/cart/restore/user-1", "", h.RestoreCart, "identifier", "user-1")
	if rec.Code != 200 {
		t.Fatalf("restore status = %d", rec.Code)
	}

	rec = doRequest(t, http.MethodGet, "/cart", "", h.GetCart)
	var payload struct {
		Count float64 `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload.Count != 1 {
		t.Fatalf("count after restore = %v, want 1", payload.Count)
	}
}

func TestInstanceQueryParam(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/cart/items?instance=wishlist", strings.NewReader(`{"id":"1","name":"First item","qty":1,"price":10}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if err := h.AddItems(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}

	// default instance stays empty
	rec = doRequest(t, http.MethodGet, "/cart", "", h.GetCart)
	var payload struct {
		Count float64 `json:"count"`
	}
	json.Unmarshal(rec.Body.Bytes(), &payload)
	if payload.Count != 0 {
		t.Fatalf("default instance count = %v, want 0", payload.Count)
	}
}
