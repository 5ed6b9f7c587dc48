package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders/internal/redisx"
)

type errorResp struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Anything unrecognised is a
// 500 and its message is not echoed to the client.
func writeError(w http.ResponseWriter, log zerolog.Logger, err error) {
	var (
		verr     *orders.ValidationError
		stockErr *orders.InsufficientStockError
		nfErr    *orders.NotFoundError
		conflict *orders.TransactionConflictError
	)
	switch {
	case errors.As(err, &stockErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResp{
			Error:     err.Error(),
			ProductID: stockErr.ProductID,
			Requested: &stockErr.Requested,
			Remaining: &stockErr.Remaining,
		})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error(), Field: verr.Field})
	case errors.As(err, &nfErr):
		writeJSON(w, http.StatusNotFound, errorResp{Error: err.Error()})
	case errors.As(err, &conflict), errors.Is(err, redisx.ErrInFlight):
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResp{Error: "internal error"})
	}
}
