// Copyright (C) 2025, RadStarter Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package api exposes the controller's entry points over HTTP. Credentials
// travel as resource-id headers; the ledger buckets themselves stay inside
// the process.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radstarter/dutchd/pkg/asset"
	"github.com/radstarter/dutchd/pkg/auction"
	"github.com/radstarter/dutchd/pkg/ids"
	"github.com/radstarter/dutchd/pkg/log"
	"github.com/radstarter/dutchd/pkg/metric"
)

const (
	operatorHeader = "X-Operator-Credential"
	clearingHeader = "X-Clearing-Credential"
)

// Server is the HTTP surface over one controller.
type Server struct {
	controller *auction.Controller
	metrics    *metric.Metrics
	log        log.Logger

	streamInterval time.Duration
	upgrader       websocket.Upgrader
}

// NewServer creates the HTTP surface. metrics may be nil.
func NewServer(controller *auction.Controller, metrics *metric.Metrics, streamInterval time.Duration, logger log.Logger) *Server {
	if streamInterval <= 0 {
		streamInterval = time.Second
	}
	return &Server{
		controller:     controller,
		metrics:        metrics,
		log:            logger,
		streamInterval: streamInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/offerings", s.handleCreateOffering).Methods(http.MethodPost)
	r.HandleFunc("/offerings/{id}", s.handleOffering).Methods(http.MethodGet)
	r.HandleFunc("/offerings/{id}/price", s.handlePrice).Methods(http.MethodGet)
	r.HandleFunc("/offerings/{id}/price/stream", s.handlePriceStream).Methods(http.MethodGet)
	r.HandleFunc("/offerings/{id}/buy", s.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/offerings/{id}/clear", s.handleClear).Methods(http.MethodPost)
	r.HandleFunc("/offerings/{id}/liquidity", s.handleProvideLiquidity).Methods(http.MethodPost)
	r.HandleFunc("/admin/circuit", s.handleToggleCircuit).Methods(http.MethodPost)
	r.HandleFunc("/admin/offerings/{id}/liquidity-provisioned", s.handleForceProvisioned).Methods(http.MethodPost)

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.GetGatherer(), promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"active": s.controller.Active(),
	})
}

type createOfferingRequest struct {
	TokenName     string `json:"token_name"`
	TokenSymbol   string `json:"token_symbol"`
	Supply        string `json:"supply"`
	StartingPrice string `json:"starting_price"`
	DecayRate     string `json:"decay_rate"`
	StartTick     uint64 `json:"start_tick"`
	DurationTicks uint64 `json:"duration_ticks"`
	LiquidityPct  string `json:"liquidity_pct"`
}

type credentialResponse struct {
	ResourceID string            `json:"resource_id"`
	Tags       map[string]string `json:"tags"`
}

func (s *Server) handleCreateOffering(w http.ResponseWriter, r *http.Request) {
	var req createOfferingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	supply, err := decimal.NewFromString(req.Supply)
	if err != nil || supply.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("supply %q must be a positive decimal", req.Supply))
		return
	}

	// The seller's deposit: the daemon escrows the freshly issued supply
	// on the seller's behalf. The external ledger transfer is assumed to
	// have settled before this call.
	tokens, err := asset.NewBucket(asset.NewResource(req.TokenName, req.TokenSymbol), supply)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	cred, err := s.controller.CreateOffering(
		s.operatorCredential(r),
		tokens,
		req.StartingPrice,
		req.DecayRate,
		req.StartTick,
		req.DurationTicks,
		req.LiquidityPct,
	)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}

	id, _ := cred.Tag("id")
	writeJSON(w, http.StatusCreated, map[string]any{
		"id": id,
		"clearing_credential": credentialResponse{
			ResourceID: cred.TypeID().String(),
			Tags:       cred.Tags,
		},
	})
}

func (s *Server) handleOffering(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	info, err := s.controller.OfferingInfo(id)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	quote, err := s.controller.PriceQuote(id)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

// handlePriceStream pushes a quote every stream interval until the auction
// window closes or the peer goes away.
func (s *Server) handlePriceStream(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := s.controller.PriceQuote(id); err != nil {
		writeTaxonomyError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		quote, err := s.controller.PriceQuote(id)
		if err != nil {
			return
		}
		if err := conn.WriteJSON(quote); err != nil {
			return
		}
		if quote.State == auction.StateEnded {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

type buyRequest struct {
	Payment string `json:"payment"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := decimal.NewFromString(req.Payment)
	if err != nil || amount.Sign() <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("payment %q must be a positive decimal", req.Payment))
		return
	}

	// Buyer currency entering the process; the external transfer in is
	// assumed settled.
	payment, err := asset.NewBucket(s.controller.Currency(), amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tokens, change, err := s.controller.Buy(id, payment)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokens": tokens.Amount(),
		"change": change.Amount(),
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	proceeds, tokens, err := s.controller.ClearOffering(s.clearingCredential(r, id))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"proceeds": proceeds.Amount(),
		"tokens":   tokens.Amount(),
	})
}

func (s *Server) handleProvideLiquidity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	shares, address, err := s.controller.ProvideLiquidity(s.clearingCredential(r, id))
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool_shares":  shares.Amount(),
		"pool_address": address,
	})
}

func (s *Server) handleToggleCircuit(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.ToggleCircuit(s.operatorCredential(r)); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": s.controller.Active()})
}

func (s *Server) handleForceProvisioned(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.controller.SetLiquidityProvisioned(s.operatorCredential(r), id); err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"liquidity_provisioned": true})
}

// operatorCredential rebuilds the operator capability from the request
// header. Wrong or missing ids fail the controller's type check.
func (s *Server) operatorCredential(r *http.Request) *asset.Credential {
	rid, err := ids.FromString(r.Header.Get(operatorHeader))
	if err != nil {
		return nil
	}
	return &asset.Credential{Resource: asset.Resource{ID: rid}, Tags: map[string]string{}}
}

func (s *Server) clearingCredential(r *http.Request, id uint32) *asset.Credential {
	rid, err := ids.FromString(r.Header.Get(clearingHeader))
	if err != nil {
		return nil
	}
	return &asset.Credential{
		Resource: asset.Resource{ID: rid},
		Tags:     map[string]string{"id": strconv.FormatUint(uint64(id), 10)},
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid offering id %q", raw))
		return 0, false
	}
	return uint32(id), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeTaxonomyError maps controller sentinels to HTTP status codes.
func writeTaxonomyError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, auction.ErrUnauthorized), errors.Is(err, auction.ErrWrongCredential):
		status = http.StatusForbidden
	case errors.Is(err, auction.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auction.ErrInvalidParameters), errors.Is(err, auction.ErrWrongCurrency):
		status = http.StatusBadRequest
	case errors.Is(err, auction.ErrCircuitOpen):
		status = http.StatusServiceUnavailable
	case errors.Is(err, auction.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, auction.ErrAdapterFailure):
		status = http.StatusBadGateway
	case errors.Is(err, auction.ErrAuctionNotStarted),
		errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrAuctionNotEnded),
		errors.Is(err, auction.ErrSoldOut),
		errors.Is(err, auction.ErrLiquidityNotProvisioned),
		errors.Is(err, auction.ErrAlreadyProvisioned),
		errors.Is(err, auction.ErrInsufficientReserve):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	writeError(w, status, err)
}
