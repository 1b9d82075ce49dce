package httpd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Brownred/mpesa-callback-stk-push/internal/domain"
	"github.com/Brownred/mpesa-callback-stk-push/internal/mpesa"
	"github.com/Brownred/mpesa-callback-stk-push/internal/repository"
	"github.com/Brownred/mpesa-callback-stk-push/internal/usecase"
)

// TransactionReader covers the read-only queries the handler serves
// directly, without going through the payment usecase.
type TransactionReader interface {
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, f repository.TxFilter, limit, offset int) ([]domain.Transaction, error)
}

type Handler struct {
	uc       *usecase.PaymentUsecase
	reader   TransactionReader
	validate *validator.Validate
}

func NewHandler(uc *usecase.PaymentUsecase, reader TransactionReader) *Handler {
	return &Handler{
		uc:       uc,
		reader:   reader,
		validate: validator.New(),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(RequestIDMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/health", h.Health)
	r.Post("/initiate", h.Initiate)
	r.Post("/callback", h.Callback)
	r.Get("/transactions", h.ListTransactions)
	r.Get("/transactions/{checkoutRequestId}", h.GetTransaction)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResp{Success: true, Message: "Server is running"})
}

// POST /initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req InitiateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	tx, pushResp, err := h.uc.InitiatePayment(r.Context(), usecase.InitiateInput{
		ProductID:        req.ProductID,
		PhoneNumber:      req.PhoneNumber,
		Amount:           req.Amount,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
	})
	if err != nil {
		paymentsInitiatedTotal.WithLabelValues("error").Inc()
		if isValidationErr(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	paymentsInitiatedTotal.WithLabelValues("pending").Inc()
	writeJSON(w, http.StatusOK, InitiateResp{
		Success:         true,
		Message:         pushResp.CustomerMessage,
		Transaction:     toTxItem(*tx),
		StkPushResponse: pushResp,
	})
}

// POST /callback
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	var env mpesa.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	if !env.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid callback data structure"})
		return
	}

	tx, err := h.uc.ReconcileCallback(r.Context(), env.Body.StkCallback)
	switch {
	case err == nil:
		callbacksProcessedTotal.WithLabelValues(string(tx.Status)).Inc()
		writeJSON(w, http.StatusOK, CallbackResp{Success: true, Transaction: toTxItem(*tx)})
	case errors.Is(err, domain.ErrAlreadyFinalized):
		// Duplicate delivery: acknowledge with the stored record so the
		// gateway stops retrying, but never overwrite the terminal state.
		callbacksProcessedTotal.WithLabelValues("duplicate").Inc()
		writeJSON(w, http.StatusOK, CallbackResp{Success: true, Transaction: toTxItem(*tx)})
	case errors.Is(err, domain.ErrNotFound):
		callbacksProcessedTotal.WithLabelValues("unknown").Inc()
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
	default:
		callbacksProcessedTotal.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// GET /transactions?status=&phoneNumber=&productId=&limit=&offset=
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.TxFilter{
		PhoneNumber: q.Get("phoneNumber"),
		ProductID:   q.Get("productId"),
	}
	if st := q.Get("status"); st != "" {
		filter.Status = domain.TxStatus(st)
	}

	limit := 50
	offset := 0
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	items, err := h.reader.ListTransactions(r.Context(), filter, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := make([]TxItem, 0, len(items))
	for _, t := range items {
		out = append(out, toTxItem(t))
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /transactions/{checkoutRequestId}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "checkoutRequestId")
	t, err := h.reader.GetByCheckoutRequestID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transaction not found"})
		return
	}

	writeJSON(w, http.StatusOK, toTxItem(*t))
}

func isValidationErr(err error) bool {
	return errors.Is(err, domain.ErrPhoneRequired) ||
		errors.Is(err, domain.ErrAmountRequired) ||
		errors.Is(err, domain.ErrProductRequired)
}
