package cart

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/cartkit/internal/cache"
	"github.com/noah-isme/cartkit/internal/common"
	"github.com/noah-isme/cartkit/internal/item"
	"github.com/noah-isme/cartkit/internal/obs"
)

// Factory opens the cart of one session.
type Factory func(sessionID string) (*Cart, error)

// SessionFactory returns a Factory that copies base and binds it to the session
// store returned by open. The session id also scopes the lock key.
func SessionFactory(base Config, open func(sessionID string) SessionStore) Factory {
	return func(sessionID string) (*Cart, error) {
		cfg := base
		cfg.Session = open(sessionID)
		cfg.LockKey = sessionID
		return New(cfg)
	}
}

// Handler exposes a session-scoped cart over HTTP.
type Handler struct {
	Carts  Factory
	Logger zerolog.Logger
}

// Routes mounts the cart endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Destroy)
		r.Post("/items", h.AddItems)
		r.Patch("/items/{rowId}", h.UpdateItem)
		r.Delete("/items/{rowId}", h.RemoveItem)
		r.Post("/shipping", h.SetShipping)
		r.Post("/discounts", h.AddDiscount)
		r.Post("/free-shipping", h.FreeShipping)
		r.Post("/store/{identifier}", h.Store)
		r.Put("/store/{identifier}", h.Sync)
		r.Delete("/store/{identifier}", h.StoreDestroy)
		r.Post("/restore/{identifier}", h.Restore)
		r.Post("/logout", h.Logout)
	})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*Cart, bool) {
	if h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart not configured", nil)
		return nil, false
	}
	session := strings.TrimSpace(r.Header.Get(obs.SessionHeader))
	if session == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing "+obs.SessionHeader+" header", nil)
		return nil, false
	}
	if !cache.ValidSessionID(session) {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid "+obs.SessionHeader+" header", nil)
		return nil, false
	}
	c, err := h.Carts(session)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return c.Instance(r.URL.Query().Get("instance")), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	err := dec.Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
		return false
	}
	common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrUnknownModel):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrInvalidRowID):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrCartAlreadyStored):
		common.JSONError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
	default:
		h.Logger.Error().Err(err).Msg("cart request failed")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}

func lineJSON(it item.Item) any {
	env, err := item.Wrap(it)
	if err != nil {
		return nil
	}
	return env
}

// Get returns the content and totals of the active instance.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	h.writeCart(w, r, c, http.StatusOK)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, c *Cart, status int) {
	ctx := r.Context()
	content, err := c.Content(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	weight, err := c.Weight(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	counters, err := c.DiscountCounters(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	totals := ComputeTotals(content)
	var count float64
	perLine := make(map[string]map[string]string)
	for _, it := range content.Items() {
		count += it.Qty()
		if priced, ok := it.(item.Priced); ok {
			perLine[it.RowID()] = c.Format(priced).Map()
		}
	}
	f := c.Formatter()
	common.Data(w, status, map[string]any{
		"instance": c.CurrentInstance(),
		"items":    content,
		"count":    count,
		"lines":    content.OfKind(item.KindProduct).Len(),
		"weight":   weight,
		"totals":   totals,
		"formatted": map[string]string{
			"subtotal": f.Format(totals.Subtotal),
			"tax":      f.Format(totals.Tax),
			"total":    f.Format(totals.Total),
			"discount": f.Format(totals.Discount),
		},
		"formattedItems": perLine,
		"discounts":      counters,
	})
}

type addItemsRequest struct {
	item.Attributes
	Items []item.Attributes `json:"items,omitempty"`
}

// AddItems adds one line, or every entry of "items" as one batch.
func (h *Handler) AddItems(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	var req addItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Items) > 0 {
		added, err := c.AddBatch(r.Context(), req.Items)
		if err != nil {
			h.writeError(w, err)
			return
		}
		out := make([]any, 0, len(added))
		for _, p := range added {
			out = append(out, lineJSON(p))
		}
		common.Data(w, http.StatusCreated, out)
		return
	}
	p, err := c.AddAttributes(r.Context(), req.Attributes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, lineJSON(p))
}

// UpdateItem applies a partial update. A body holding only qty sets the quantity;
// a quantity of zero or less removes the row and answers 204.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	var attrs item.Attributes
	if !decodeBody(w, r, &attrs) {
		return
	}
	rowID := chi.URLParam(r, "rowId")
	var (
		updated item.Item
		err     error
	)
	if onlyQty(attrs) {
		updated, err = c.Update(r.Context(), rowID, *attrs.Qty)
	} else {
		updated, err = c.UpdateAttributes(r.Context(), rowID, attrs)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	if updated == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	common.Data(w, http.StatusOK, lineJSON(updated))
}

func onlyQty(a item.Attributes) bool {
	if a.Qty == nil {
		return false
	}
	a.Qty = nil
	return a.ID == nil && a.Name == nil && a.Price == nil && a.Weight == nil && a.WeightUnit == nil &&
		a.Options == nil && a.TaxRate == nil && a.Value == nil && a.Type == nil &&
		a.FreeShipping == nil && a.ShippingDiscount == nil
}

// RemoveItem deletes one row.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.Remove(r.Context(), chi.URLParam(r, "rowId")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetShipping replaces the shipping line.
func (h *Handler) SetShipping(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	var attrs item.Attributes
	if !decodeBody(w, r, &attrs) {
		return
	}
	s, err := c.ShippingAttributes(r.Context(), attrs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, lineJSON(s))
}

// AddDiscount adds a discount line.
func (h *Handler) AddDiscount(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	var attrs item.Attributes
	if !decodeBody(w, r, &attrs) {
		return
	}
	d, err := c.DiscountAttributes(r.Context(), attrs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, lineJSON(d))
}

// FreeShipping marks the shipping line as free.
func (h *Handler) FreeShipping(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	applied, err := c.ApplyFreeShipping(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]bool{"applied": applied})
}

// Destroy clears the active instance.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.Destroy(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Store saves the active instance under the path identifier.
func (h *Handler) Store(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	identifier := chi.URLParam(r, "identifier")
	if err := c.Store(r.Context(), identifier); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusCreated, map[string]string{"identifier": identifier, "instance": c.CurrentInstance()})
}

// Sync overwrites the saved copy of the active instance.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	identifier := chi.URLParam(r, "identifier")
	if err := c.SyncDB(r.Context(), identifier); err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, map[string]string{"identifier": identifier, "instance": c.CurrentInstance()})
}

// StoreDestroy deletes the saved copy of the active instance.
func (h *Handler) StoreDestroy(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.StoreDestroy(r.Context(), chi.URLParam(r, "identifier")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore merges a saved cart back into the session and returns the active instance.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.Restore(r.Context(), chi.URLParam(r, "identifier")); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeCart(w, r, c, http.StatusOK)
}

// Logout drops the session carts when destroy-on-logout is enabled.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	c, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := c.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
