package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

const (
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

type OrderService interface {
	PlaceOrder(ctx context.Context, userID string, items []orders.LineItem) (orders.Order, error)
	GetOrder(ctx context.Context, orderID string) (orders.Order, error)
	CancelOrder(ctx context.Context, orderID string) (orders.Order, error)
}

type Idempotency interface {
	// Claim returns a non-empty token when the caller now holds the key, or
	// the order id a finished request already bound to it.
	Claim(ctx context.Context, userID, key string) (orderID, token string, err error)
	Complete(ctx context.Context, userID, key, token, orderID string) error
	Release(ctx context.Context, userID, key, token string) error
}

type OrdersHandler struct {
	Orders  OrderService
	Idem    Idempotency // optional
	Timeout time.Duration
	Log     zerolog.Logger
}

type PlaceOrderReq struct {
	Items []orders.LineItem `json:"items"`
}

type PlaceOrderResp struct {
	OrderID string        `json:"order_id"`
	Total   string        `json:"total"`
	Status  orders.Status `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Delete("/orders/{id}", h.cancelOrder)
}

func (h *OrdersHandler) timeout() time.Duration {
	if h.Timeout > 0 {
		return h.Timeout
	}
	return 5 * time.Second
}

func toResp(o orders.Order) PlaceOrderResp {
	return PlaceOrderResp{OrderID: o.ID, Total: o.Total.StringFixed(2), Status: o.Status}
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(HeaderUserID)
	var req PlaceOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid json"})
		return
	}
	// validasi dulu supaya request invalid tidak memakan idempotency key
	if err := orders.ValidateLineItems(userID, req.Items); err != nil {
		writeError(w, h.Log, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	key := r.Header.Get(HeaderIdempotencyKey)
	if h.Idem == nil {
		key = ""
	}
	var token string
	if key != "" {
		existing, claimToken, err := h.Idem.Claim(ctx, userID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			writeError(w, h.Log, err)
			return
		case err != nil:
			// redis tidak tersedia: lanjut tanpa idempotency, DB tetap jadi kebenaran
			h.Log.Warn().Err(err).Str("user_id", userID).Msg("idempotency claim failed")
		case claimToken != "":
			token = claimToken
		default:
			o, err := h.Orders.GetOrder(ctx, existing)
			if err != nil {
				writeError(w, h.Log, err)
				return
			}
			w.Header().Set(HeaderReplayed, "true")
			writeJSON(w, http.StatusCreated, toResp(o))
			return
		}
	}

	o, err := h.Orders.PlaceOrder(ctx, userID, req.Items)
	if err != nil {
		if token != "" {
			if rerr := h.Idem.Release(context.WithoutCancel(ctx), userID, key, token); rerr != nil {
				h.Log.Warn().Err(rerr).Msg("idempotency release failed")
			}
		}
		writeError(w, h.Log, err)
		return
	}
	if token != "" {
		if cerr := h.Idem.Complete(context.WithoutCancel(ctx), userID, key, token, o.ID); cerr != nil {
			h.Log.Warn().Err(cerr).Str("order_id", o.ID).Msg("idempotency complete failed")
		}
	}
	writeJSON(w, http.StatusCreated, toResp(o))
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	o, err := h.Orders.CancelOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
