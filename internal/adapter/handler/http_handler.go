package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/cart-store/internal/core/domain"
	"github.com/rl1809/cart-store/internal/core/service"
	"github.com/rl1809/cart-store/internal/port"
)

const (
	sessionHeader   = "X-Session-ID"
	requestIDHeader = "X-Request-ID"
)

type ctxKeyLog struct{}

type HTTPHandler struct {
	sessions *service.Sessions
	catalog  port.CatalogAPI
	log      logrus.FieldLogger
}

type UpdateAmountHTTPRequest struct {
	Amount *int `json:"amount"`
}

type CartHTTPResponse struct {
	Success     bool        `json:"success"`
	Message     string      `json:"message,omitempty"`
	Cart        domain.Cart `json:"cart"`
	TotalAmount int         `json:"total_amount"`
}

type ErrorHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewHTTPHandler serves the cart API. catalog may be nil, in which case the
// /stock and /products endpoints are not registered.
func NewHTTPHandler(sessions *service.Sessions, catalog port.CatalogAPI, log logrus.FieldLogger) *HTTPHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPHandler{sessions: sessions, catalog: catalog, log: log}
}

func (h *HTTPHandler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api/cart").Subrouter()
	api.HandleFunc("", h.GetCart).Methods(http.MethodGet)
	api.HandleFunc("/items/{id:[0-9]+}", h.AddProduct).Methods(http.MethodPost)
	api.HandleFunc("/items/{id:[0-9]+}", h.RemoveProduct).Methods(http.MethodDelete)
	api.HandleFunc("/items/{id:[0-9]+}", h.UpdateProductAmount).Methods(http.MethodPut)

	if h.catalog != nil {
		r.HandleFunc("/stock/{id:[0-9]+}", h.GetStock).Methods(http.MethodGet)
		r.HandleFunc("/products/{id:[0-9]+}", h.GetProduct).Methods(http.MethodGet)
	}

	return r
}

// GetCart without a session header has nothing to read; it answers with an
// empty cart and does not open a session.
func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(sessionHeader) == "" {
		writeCart(w, http.StatusOK, domain.Cart{}, "")
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	writeCart(w, http.StatusOK, store.Cart(), "")
}

func (h *HTTPHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDFrom(w, r)
	if !ok {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	err := store.AddProduct(r.Context(), productID)
	h.reply(w, r, store, domain.OpAdd, err)
}

func (h *HTTPHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDFrom(w, r)
	if !ok {
		return
	}
	store, ok := h.store(w, r)
	if !ok {
		return
	}

	err := store.RemoveProduct(r.Context(), productID)
	h.reply(w, r, store, domain.OpRemove, err)
}

func (h *HTTPHandler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDFrom(w, r)
	if !ok {
		return
	}

	var req UpdateAmountHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount == nil {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	store, ok := h.store(w, r)
	if !ok {
		return
	}

	err := store.UpdateProductAmount(r.Context(), service.UpdateProductAmount{
		ProductID: productID,
		Amount:    *req.Amount,
	})
	h.reply(w, r, store, domain.OpUpdate, err)
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDFrom(w, r)
	if !ok {
		return
	}

	stock, err := h.catalog.GetStock(r.Context(), productID)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stock)
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDFrom(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		h.catalogError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// store resolves the caller's session, minting one when the header is absent.
func (h *HTTPHandler) store(w http.ResponseWriter, r *http.Request) (*service.CartStore, bool) {
	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(sessionHeader, sessionID)

	store, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		requestLog(r.Context(), h.log).WithError(err).Error("failed to load cart")
		writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{
			Success: false,
			Message: "internal error",
		})
		return nil, false
	}
	return store, true
}

func (h *HTTPHandler) reply(w http.ResponseWriter, r *http.Request, store *service.CartStore, op domain.Operation, err error) {
	if err == nil {
		writeCart(w, http.StatusOK, store.Cart(), "")
		return
	}

	status := http.StatusInternalServerError
	switch domain.Classify(err) {
	case domain.OutcomeOutOfStock:
		status = http.StatusConflict
	case domain.OutcomeNotFound:
		status = http.StatusNotFound
	}
	writeCart(w, status, store.Cart(), domain.NoticeFor(op, err))
}

func (h *HTTPHandler) catalogError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrUnknownProduct) {
		writeJSON(w, http.StatusNotFound, ErrorHTTPResponse{Success: false, Message: "not found"})
		return
	}
	requestLog(r.Context(), h.log).WithError(err).Error("catalog lookup failed")
	writeJSON(w, http.StatusInternalServerError, ErrorHTTPResponse{Success: false, Message: "internal error"})
}

func (h *HTTPHandler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		log := h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), ctxKeyLog{}, log)))

		log.WithFields(logrus.Fields{
			"status":  rec.status,
			"elapsed": time.Since(start).String(),
		}).Debug("request complete")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func requestLog(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if log, ok := ctx.Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return log
	}
	return fallback
}

func productIDFrom(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, ErrorHTTPResponse{
			Success: false,
			Message: "invalid product id",
		})
		return 0, false
	}
	return id, true
}

func writeCart(w http.ResponseWriter, status int, cart domain.Cart, message string) {
	writeJSON(w, status, CartHTTPResponse{
		Success:     message == "",
		Message:     message,
		Cart:        cart,
		TotalAmount: cart.TotalAmount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
