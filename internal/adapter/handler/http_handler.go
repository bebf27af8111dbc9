package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sirazahmedsyed/product-stock-service/internal/core/domain"
	"github.com/sirazahmedsyed/product-stock-service/internal/core/service"
)

// HTTPHandler re-exposes the stock coordination operations to browser-style
// clients as a JSON API, including a streaming subscription endpoint.
type HTTPHandler struct {
	stock  *service.StockService
	logger zerolog.Logger
}

func NewHTTPHandler(stock *service.StockService, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{stock: stock, logger: logger}
}

type AdjustRequest struct {
	ProductID      string `json:"product_id"`
	QuantityChange int    `json:"quantity_change"`
	TransactionID  string `json:"transaction_id"`
}

type ReserveRequest struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	TransactionID string `json:"transaction_id"`
}

type TransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type ThresholdRequest struct {
	ProductID    string `json:"product_id"`
	MinimumLevel int    `json:"minimum_level"`
}

type ProductResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Price     string `json:"price"`
	Stock     int    `json:"stock"`
}

type StockResponse struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
}

type AvailabilityResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

type LowStockResponse struct {
	Products []string `json:"products"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Register wires all routes onto the mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/products", h.GetProduct)
	mux.HandleFunc("/api/stock", h.GetStock)
	mux.HandleFunc("/api/stock/available", h.GetAvailability)
	mux.HandleFunc("/api/stock/adjust", h.AdjustStock)
	mux.HandleFunc("/api/stock/subscribe", h.SubscribeStock)
	mux.HandleFunc("/api/reservations", h.ReserveStock)
	mux.HandleFunc("/api/reservations/commit", h.CommitReservation)
	mux.HandleFunc("/api/reservations/cancel", h.CancelReservation)
	mux.HandleFunc("/api/alerts/threshold", h.SetThreshold)
	mux.HandleFunc("/api/alerts/low-stock", h.ListLowStock)
	mux.Handle("/metrics", promhttp.Handler())
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		h.badRequest(w, "product_id is required")
		return
	}

	product, err := h.stock.GetProduct(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProductResponse{
		ProductID: product.ID,
		Name:      product.Name,
		Price:     product.Price.String(),
		Stock:     product.Stock,
	})
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		h.badRequest(w, "product_id is required")
		return
	}

	level, err := h.stock.GetStock(r.Context(), productID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{ProductID: productID, Stock: level})
}

func (h *HTTPHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	productID := r.URL.Query().Get("product_id")
	quantity, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if productID == "" || err != nil || quantity <= 0 {
		h.badRequest(w, "product_id and a positive quantity are required")
		return
	}

	available, err := h.stock.IsAvailable(r.Context(), productID, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		ProductID: productID,
		Quantity:  quantity,
		Available: available,
	})
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req AdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" || req.TransactionID == "" {
		h.badRequest(w, "product_id and transaction_id are required")
		return
	}

	evt, err := h.stock.Adjust(r.Context(), req.ProductID, req.QuantityChange, req.TransactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (h *HTTPHandler) ReserveStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" || req.TransactionID == "" || req.Quantity <= 0 {
		h.badRequest(w, "product_id, transaction_id, and a positive quantity are required")
		return
	}

	evt, err := h.stock.Reserve(r.Context(), req.ProductID, req.Quantity, req.TransactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (h *HTTPHandler) CommitReservation(w http.ResponseWriter, r *http.Request) {
	h.finishReservation(w, r, h.stock.Commit)
}

func (h *HTTPHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	h.finishReservation(w, r, h.stock.Cancel)
}

func (h *HTTPHandler) finishReservation(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, transactionID string) (domain.StockUpdateEvent, error),
) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.TransactionID == "" {
		h.badRequest(w, "transaction_id is required")
		return
	}

	evt, err := op(r.Context(), req.TransactionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

// SubscribeStock streams stock-change events as newline-delimited JSON until
// the client disconnects. Disconnection tears down only this subscriber.
func (h *HTTPHandler) SubscribeStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	productIDs := r.URL.Query()["product_id"]
	events, cancel := h.stock.Subscribe(productIDs...)
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	encoder := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug().Msg("subscriber disconnected")
			return
		case evt, open := <-events:
			if !open {
				return
			}
			if err := encoder.Encode(evt); err != nil {
				h.logger.Debug().Err(err).Msg("subscriber write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *HTTPHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if req.ProductID == "" {
		h.badRequest(w, "product_id is required")
		return
	}

	h.stock.SetThreshold(req.ProductID, req.MinimumLevel)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *HTTPHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	products, err := h.stock.LowStockProducts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LowStockResponse{Products: products})
}

func (h *HTTPHandler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: message})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "product not found"})
	case errors.Is(err, domain.ErrNoReservationFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: "no reservation found for transaction"})
	case errors.Is(err, domain.ErrLockTimeout):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Message: "stock busy, retry later"})
	default:
		h.logger.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
