package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"cart-service/internal/entity"
	"cart-service/internal/service"
)

type CartHandler struct {
	cart *service.Cart
}

// NewCartHandler creates a new instance of CartHandler
func NewCartHandler(cart *service.Cart) *CartHandler {
	return &CartHandler{cart: cart}
}

// cartFor selects the cart instance from the ?instance= query parameter.
// The shared cart is reused for its own instance so extra costs survive
// across requests; other instances get a request-scoped view.
func (h *CartHandler) cartFor(c echo.Context) *service.Cart {
	name := c.QueryParam("instance")
	if name == "" || name == h.cart.CurrentInstance() {
		return h.cart
	}
	return h.cart.Instance(name)
}

// identifier resolves the stored-cart identifier, preferring the JWT subject
// when the route runs behind the JWT middleware.
func (h *CartHandler) identifier(c echo.Context) string {
	if token, ok := c.Get("user").(*jwt.Token); ok {
		if sub, err := token.Claims.GetSubject(); err == nil && sub != "" {
			return sub
		}
	}
	return c.Param("identifier")
}

// AddItems adds one item or a batch of items --> POST /cart/items
func (h *CartHandler) AddItems(c echo.Context) error {
	ctx := c.Request().Context()
	cart := h.cartFor(c)

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
		var recs []entity.ItemRecord
		if err := json.Unmarshal(body, &recs); err != nil {
			return c.JSON(400, map[string]string{"error": "Invalid request payload"})
		}

		items, err := cart.AddBatch(ctx, recs)
		if err != nil {
			return jsonError(c, err)
		}
		return c.JSON(200, items)
	}

	var rec entity.ItemRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	item, err := cart.AddRecord(ctx, rec)
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, item)
}

type updateRequest struct {
	Qty  *float64           `json:"qty,omitempty"`
	Item *entity.ItemRecord `json:"item,omitempty"`
}

// UpdateItem updates the item with the given rowId --> PUT /cart/items/:rowId
func (h *CartHandler) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	cart := h.cartFor(c)
	rowID := c.Param("rowId")

	req := updateRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}

	item, err := cart.Update(ctx, rowID, entity.ItemPatch{Qty: req.Qty, Record: req.Item})
	if err != nil {
		return jsonError(c, err)
	}
	if item == nil {
		// quantity dropped to zero, the row is gone
		return c.JSON(200, map[string]string{"removed": rowID})
	}

	return c.JSON(200, item)
}

// RemoveItem removes the item with the given rowId --> DELETE /cart/items/:rowId
func (h *CartHandler) RemoveItem(c echo.Context) error {
	if err := h.cartFor(c).Remove(c.Request().Context(), c.Param("rowId")); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, map[string]string{"removed": c.Param("rowId")})
}

// GetItem returns the item with the given rowId --> GET /cart/items/:rowId
func (h *CartHandler) GetItem(c echo.Context) error {
	item, err := h.cartFor(c).Get(c.Request().Context(), c.Param("rowId"))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, item)
}

// GetCart returns the content and the totals --> GET /cart
func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	cart := h.cartFor(c)

	content, err := cart.Content(ctx)
	if err != nil {
		return jsonError(c, err)
	}
	count, err := cart.Count(ctx)
	if err != nil {
		return jsonError(c, err)
	}
	subtotal, err := cart.Subtotal(ctx)
	if err != nil {
		return jsonError(c, err)
	}
	tax, err := cart.Tax(ctx)
	if err != nil {
		return jsonError(c, err)
	}
	total, err := cart.Total(ctx)
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(200, map[string]interface{}{
		"instance": cart.CurrentInstance(),
		"items":    content.Items(),
		"count":    count,
		"subtotal": subtotal,
		"tax":      tax,
		"total":    total,
		"formatted": map[string]string{
			"subtotal": cart.Format(subtotal),
			"tax":      cart.Format(tax),
			"total":    cart.Format(total),
		},
	})
}

type costRequest struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// AddCost adds an extra cost onto the cart --> POST /cart/costs
func (h *CartHandler) AddCost(c echo.Context) error {
	req := costRequest{}
	if err := c.Bind(&req); err != nil {
		return c.JSON(400, map[string]string{"error": "Invalid request payload"})
	}
	if req.Name == "" {
		return c.JSON(400, map[string]string{"error": "Cost name is required"})
	}

	cart := h.cartFor(c)
	cart.AddCost(req.Name, req.Amount)

	return c.JSON(200, map[string]interface{}{"name": req.Name, "amount": cart.GetCost(req.Name)})
}

// DestroyCart clears the instance's session content --> DELETE /cart
func (h *CartHandler) DestroyCart(c echo.Context) error {
	if err := h.cartFor(c).Destroy(c.Request().Context()); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, map[string]string{"status": "destroyed"})
}

// StoreCart persists the cart --> POST /cart/store/:identifier
func (h *CartHandler) StoreCart(c echo.Context) error {
	if err := h.cartFor(c).Store(c.Request().Context(), h.identifier(c)); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, map[string]string{"status": "stored"})
}

// RestoreCart restores a stored cart --> POST /cart/restore/:identifier
func (h *CartHandler) RestoreCart(c echo.Context) error {
	if err := h.cartFor(c).Restore(c.Request().Context(), h.identifier(c)); err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, map[string]string{"status": "restored"})
}

// MergeCart merges a stored cart into the current one --> POST /cart/merge/:identifier
func (h *CartHandler) MergeCart(c echo.Context) error {
	keepTax, _ := strconv.ParseBool(c.QueryParam("keepTax"))
	dispatch := true
	if v := c.QueryParam("dispatch"); v != "" {
		dispatch, _ = strconv.ParseBool(v)
	}

	found, err := h.cartFor(c).Merge(c.Request().Context(), h.identifier(c), keepTax, dispatch, c.QueryParam("into"))
	if err != nil {
		return jsonError(c, err)
	}

	return c.JSON(200, map[string]interface{}{"merged": found})
}

// DeleteStored deletes a stored cart --> DELETE /cart/stored/:identifier
func (h *CartHandler) DeleteStored(c echo.Context) error {
	deleted, err := h.cartFor(c).Delete(c.Request().Context(), h.identifier(c))
	if err != nil {
		return jsonError(c, err)
	}
	return c.JSON(200, map[string]interface{}{"deleted": deleted})
}

func jsonError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, entity.ErrInvalidRowID):
		return c.JSON(404, map[string]string{"error": err.Error()})
	case errors.Is(err, entity.ErrUnknownModel), errors.Is(err, entity.ErrInvalidArgument):
		return c.JSON(400, map[string]string{"error": err.Error()})
	default:
		return c.JSON(500, map[string]string{"error": err.Error()})
	}
}
