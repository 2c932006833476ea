package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/lyncz-relay/relay/internal/relayer"
	"github.com/lyncz-relay/relay/internal/settlement"
	"github.com/lyncz-relay/relay/internal/store"
	"github.com/lyncz-relay/relay/internal/verifier"
)

// apiHandlers bundles the read/write HTTP surface the relay exposes. Route
// parsing is deliberately minimal (path-prefix trimming, no router
// dependency) — the teacher itself reaches for bare net/http ServeMux
// wiring in main.go rather than a routing library.
type apiHandlers struct {
	repos   *store.Repositories
	coord   *settlement.Coordinator
	gateway *relayer.Gateway
	logger  *log.Logger
	started time.Time
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// orderDTO is the wire shape for an Order; sql.NullString fields collapse
// to plain strings (empty when not set) since this is a read-only public
// projection, not a round-trippable record.
type orderDTO struct {
	OrderID         string `json:"orderId"`
	Seller          string `json:"seller"`
	Token           string `json:"token"`
	TotalAmount     string `json:"totalAmount"`
	RemainingAmount string `json:"remainingAmount"`
	ExchangeRate    string `json:"exchangeRate"`
	Rail            int32  `json:"rail"`
	AccountName     string `json:"accountName,omitempty"`
	IsPublic        bool   `json:"isPublic"`
}

func toOrderDTO(o *store.Order) orderDTO {
	return orderDTO{
		OrderID:         o.OrderID,
		Seller:          o.Seller,
		Token:           o.Token,
		TotalAmount:     o.TotalAmount,
		RemainingAmount: o.RemainingAmount,
		ExchangeRate:    o.ExchangeRate,
		Rail:            int32(o.Rail),
		AccountName:     nullStr(o.AccountName),
		IsPublic:        o.IsPublic,
	}
}

type tradeDTO struct {
	TradeID          string `json:"tradeId"`
	OrderID          string `json:"orderId"`
	Buyer            string `json:"buyer"`
	TokenAmount      string `json:"tokenAmount"`
	CNYAmount        string `json:"cnyAmount"`
	FeeAmount        string `json:"feeAmount"`
	Status           int32  `json:"status"`
	CreatedAt        int64  `json:"createdAt"`
	ExpiresAt        int64  `json:"expiresAt"`
	SettlementTxHash string `json:"settlementTxHash,omitempty"`
	SettlementError  string `json:"settlementError,omitempty"`
}

func toTradeDTO(t *store.Trade) tradeDTO {
	return tradeDTO{
		TradeID:          t.TradeID,
		OrderID:          t.OrderID,
		Buyer:            t.Buyer,
		TokenAmount:      t.TokenAmount,
		CNYAmount:        t.CNYAmount,
		FeeAmount:        t.FeeAmount,
		Status:           int32(t.Status),
		CreatedAt:        t.CreatedAt.Unix(),
		ExpiresAt:        t.ExpiresAt,
		SettlementTxHash: nullStr(t.SettlementTxHash),
		SettlementError:  nullStr(t.SettlementError),
	}
}

func nullStr(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

func (h *apiHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// handleActiveOrders serves GET /api/orders/active, with an optional
// ?token= filter matching the Rust handler's query parameter.
func (h *apiHandlers) handleActiveOrders(w http.ResponseWriter, r *http.Request) {
	tokenFilter := r.URL.Query().Get("token")
	orders, err := h.repos.Orders.GetActiveOrders(r.Context(), tokenFilter, 100)
	if err != nil {
		writeJSONError(w, "failed to list orders", http.StatusInternalServerError)
		return
	}
	dtos := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, toOrderDTO(o))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// handleTrade serves GET /api/trades/{id}.
func (h *apiHandlers) handleTrade(w http.ResponseWriter, r *http.Request, tradeID string) {
	trade, err := h.repos.Trades.Get(r.Context(), tradeID)
	if errors.Is(err, store.ErrTradeNotFound) {
		writeJSONError(w, "trade not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to load trade", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toTradeDTO(trade))
}

// handleTradesByWallet serves GET /api/trades?buyer=0x... or ?seller=0x...,
// the dynamic-queries supplement carried over from the Rust handler.
func (h *apiHandlers) handleTradesByWallet(w http.ResponseWriter, r *http.Request) {
	var trades []*store.Trade
	var err error
	if buyer := r.URL.Query().Get("buyer"); buyer != "" {
		trades, err = h.repos.Trades.GetTradesByBuyer(r.Context(), buyer)
	} else if seller := r.URL.Query().Get("seller"); seller != "" {
		trades, err = h.repos.Trades.GetTradesBySeller(r.Context(), seller)
	} else {
		trades, err = h.repos.Trades.GetAllTrades(r.Context())
	}
	if err != nil {
		writeJSONError(w, "failed to list trades", http.StatusInternalServerError)
		return
	}
	dtos := make([]tradeDTO, 0, len(trades))
	for _, t := range trades {
		dtos = append(dtos, toTradeDTO(t))
	}
	writeJSON(w, http.StatusOK, dtos)
}

type validateResponse struct {
	Code          string `json:"code"`
	SettlementRun bool   `json:"settlementRun"`
}

const maxReceiptBytes = 10 << 20 // 10 MiB, well above any real Alipay receipt PDF

// handleValidate serves POST /api/trades/{id}/validate: the buyer uploads
// their payment receipt PDF as the raw request body.
func (h *apiHandlers) handleValidate(w http.ResponseWriter, r *http.Request, tradeID string) {
	if h.coord == nil {
		writeJSONError(w, "relayer disabled: RELAYER_PRIVATE_KEY not set", http.StatusServiceUnavailable)
		return
	}
	pdf, err := io.ReadAll(io.LimitReader(r.Body, maxReceiptBytes+1))
	if err != nil {
		writeJSONError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(pdf) > maxReceiptBytes {
		writeJSONError(w, "receipt too large", http.StatusRequestEntityTooLarge)
		return
	}

	result, err := h.coord.Validate(r.Context(), tradeID, pdf)
	if err != nil {
		h.logger.Printf("validate trade %s: %v", tradeID, err)
		writeJSONError(w, "validation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{Code: string(result.Code), SettlementRun: result.SettlementRun})
}

// handleSettleRetry serves POST /api/trades/{id}/settle: it schedules the
// background settle task for the trade. Settle works from the prover input
// that Validate cached and removes that input when it returns, whether it
// succeeded or failed, so after any settle attempt this call has nothing to
// work from until a new Validate call caches the input again.
func (h *apiHandlers) handleSettleRetry(w http.ResponseWriter, r *http.Request, tradeID string) {
	if h.coord == nil {
		writeJSONError(w, "relayer disabled: RELAYER_PRIVATE_KEY not set", http.StatusServiceUnavailable)
		return
	}
	go h.coord.Settle(context.WithoutCancel(r.Context()), tradeID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "settle scheduled"})
}

type setPaymentInfoRequest struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
}

const maxPaymentInfoBytes = 4 << 10

// handleSetPaymentInfo serves POST /api/orders/{id}/payment-info: the
// seller's one-time, out-of-band submission of their payment account
// details (§3 "plain fields filled by a seller API call, first-write-wins;
// updates rejected"). The posted fields must hash to the order's already
// on-chain accountLinesHash before this relay stores them in the clear,
// matching the invariant the Chain Reconciler re-checks on every
// OrderCreated event that races against this call.
func (h *apiHandlers) handleSetPaymentInfo(w http.ResponseWriter, r *http.Request, orderID string) {
	if h.gateway == nil {
		writeJSONError(w, "relayer disabled: RELAYER_PRIVATE_KEY not set", http.StatusServiceUnavailable)
		return
	}
	var req setPaymentInfoRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPaymentInfoBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AccountID == "" || req.AccountName == "" {
		writeJSONError(w, "accountId and accountName are required", http.StatusBadRequest)
		return
	}

	order, err := h.repos.Orders.Get(r.Context(), orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		writeJSONError(w, "order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to load order", http.StatusInternalServerError)
		return
	}
	if order.AccountID.Valid && order.AccountID.String != "" {
		writeJSONError(w, "payment info already set", http.StatusConflict)
		return
	}

	decoded, err := hex.DecodeString(strings.TrimPrefix(orderID, "0x"))
	if err != nil || len(decoded) != 32 {
		writeJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}
	var id [32]byte
	copy(id[:], decoded)

	onChain, err := h.gateway.GetOrderHash(r.Context(), id)
	if err != nil {
		writeJSONError(w, "failed to read on-chain commitment", http.StatusInternalServerError)
		return
	}
	computed := verifier.AccountLinesHashFromPlainFields(req.AccountName, req.AccountID)
	if [32]byte(computed) != onChain {
		writeJSONError(w, "account fields do not match the order's on-chain commitment", http.StatusBadRequest)
		return
	}

	if err := h.repos.Orders.UpdatePaymentInfo(r.Context(), orderID, req.AccountID, req.AccountName); err != nil {
		writeJSONError(w, "failed to save payment info", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *apiHandlers) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/api/orders/active", h.handleActiveOrders)
	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		if strings.HasSuffix(rest, "/payment-info") && r.Method == http.MethodPost {
			h.handleSetPaymentInfo(w, r, strings.TrimSuffix(rest, "/payment-info"))
			return
		}
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/api/trades", h.handleTradesByWallet)
	mux.HandleFunc("/api/trades/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/trades/")
		switch {
		case strings.HasSuffix(rest, "/validate") && r.Method == http.MethodPost:
			h.handleValidate(w, r, strings.TrimSuffix(rest, "/validate"))
		case strings.HasSuffix(rest, "/settle") && r.Method == http.MethodPost:
			h.handleSettleRetry(w, r, strings.TrimSuffix(rest, "/settle"))
		case rest != "" && r.Method == http.MethodGet:
			h.handleTrade(w, r, rest)
		default:
			writeJSONError(w, "not found", http.StatusNotFound)
		}
	})
}
