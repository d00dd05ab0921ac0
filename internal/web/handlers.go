package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/camuig/strategy-trader/internal/bot"
	"github.com/camuig/strategy-trader/internal/config"
	"github.com/camuig/strategy-trader/internal/scheduler"
	"github.com/camuig/strategy-trader/internal/strategy"
)

type tradeRequest struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Reason   string  `json:"reason"`
}

type sessionResponse struct {
	TradingHours bool                `json:"tradingHours"`
	Countdown    scheduler.Countdown `json:"countdown"`
	Remaining    string              `json:"remaining"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bot.ErrNotInitialized),
		errors.Is(err, bot.ErrCycleInProgress),
		errors.Is(err, scheduler.ErrAlreadyRunning),
		errors.Is(err, scheduler.ErrNoTradingDays):
		return http.StatusConflict
	case errors.Is(err, bot.ErrUnknownStrategy):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Start(s.runCtx); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Status().Scheduler)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.svc.Stop()
	writeJSON(w, http.StatusOK, s.svc.Status().Scheduler)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RunCycleOnce(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, strategy.ActionBuy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, strategy.ActionSell)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, action strategy.Action) {
	var req tradeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if !s.svc.Initialized() {
		writeError(w, http.StatusConflict, bot.ErrNotInitialized.Error())
		return
	}

	trade := s.svc.Buy
	if action == strategy.ActionSell {
		trade = s.svc.Sell
	}
	outcome := trade(r.Context(), req.Symbol, req.Quantity, req.Reason)

	status := http.StatusOK
	if !outcome.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, outcome)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Config())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.BotPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := s.svc.UpdateConfig(patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Schedule())
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var patch config.SchedulePatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := s.svc.UpdateSchedule(patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.ListStrategies())
}

func (s *Server) handleUpdateStrategy(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var patch strategy.ConfigPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := s.svc.UpdateStrategyConfig(name, patch)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleRemoveStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RemoveStrategy(mux.Vars(r)["name"]); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetMetrics(w http.ResponseWriter, r *http.Request) {
	s.svc.ResetMetrics()
	writeJSON(w, http.StatusOK, s.svc.Status().Metrics)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	countdown, err := s.svc.TimeUntilNextSession()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		TradingHours: countdown.Duration() == 0,
		Countdown:    countdown,
		Remaining:    countdown.String(),
	})
}
