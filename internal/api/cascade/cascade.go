package cascade

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	dto "infinity_stones/internal/api/dto/cascade"
	"infinity_stones/internal/api/middleware"
	"infinity_stones/internal/converter"
	"infinity_stones/internal/engine"
	"infinity_stones/internal/errs"
	"infinity_stones/internal/service"
	"infinity_stones/pkg/req"
	"infinity_stones/pkg/resp"
)

const idempotencyHeader = "Idempotency-Key"

type HandlerDeps struct {
	Serv   service.CascadeService
	Logger *zap.Logger
}

type Handler struct {
	serv   service.CascadeService
	logger *zap.Logger
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{serv: deps.Serv, logger: deps.Logger}
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	opened, err := h.serv.Open(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, converter.ToOpenResponse(*opened))
}

func (h *Handler) Spin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	payload, err := req.Decode[dto.SpinRequest](r.Body)
	if err != nil {
		resp.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	requestID, ok := idempotencyKey(w, r, payload.RequestID)
	if !ok {
		return
	}

	result, err := h.serv.Spin(r.Context(), converter.ToCascadeSpin(sessionID, requestID, payload))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, converter.ToSpinResponse(*result))
}

func (h *Handler) BuyBonus(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	payload, err := req.Decode[dto.BuyBonusRequest](r.Body)
	if err != nil {
		resp.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	requestID, ok := idempotencyKey(w, r, payload.RequestID)
	if !ok {
		return
	}

	result, err := h.serv.BuyBonus(r.Context(), converter.ToBuyBonus(sessionID, requestID, payload))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, converter.ToBuyBonusResponse(*result))
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	payload, err := req.Decode[dto.DepositRequest](r.Body)
	if err != nil {
		resp.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	requestID, ok := idempotencyKey(w, r, payload.RequestID)
	if !ok {
		return
	}

	balance, err := h.serv.Deposit(r.Context(), converter.ToDeposit(sessionID, requestID, payload))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, dto.DepositResponse{Balance: balance.StringFixed(2)})
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	data, err := h.serv.CheckData(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, converter.ToStateResponse(data.State, data.Balance))
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := h.serv.Result(r.Context(), sessionID, chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp.WriteJSONResponse(w, http.StatusOK, converter.ToSpinResponse(*result))
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	requestID := chi.URLParam(r, "requestID")

	err := h.serv.Verify(r.Context(), sessionID, requestID)
	if err != nil && !errors.Is(err, engine.ErrVerifyMismatch) {
		h.writeError(w, err)
		return
	}

	out := dto.VerifyResponse{RequestID: requestID, Valid: err == nil}
	if err != nil {
		out.Reason = err.Error()
	}
	resp.WriteJSONResponse(w, http.StatusOK, out)
}

func (h *Handler) Desync(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.session(w, r)
	if !ok {
		return
	}
	payload, err := req.Decode[dto.DesyncRequest](r.Body)
	if err != nil {
		resp.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.serv.ReportDesync(r.Context(), converter.ToDesyncReport(sessionID, payload)); err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp.WriteJSONResponse(w, http.StatusOK, converter.ToStatsResponse(h.serv.Stats()))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID, ok := middleware.SessionID(r.Context())
	if !ok {
		resp.WriteError(w, http.StatusUnauthorized, "no session")
	}
	return sessionID, ok
}

// idempotencyKey заголовок Idempotency-Key важнее тела. Только UUID
func idempotencyKey(w http.ResponseWriter, r *http.Request, fromBody string) (string, bool) {
	id := r.Header.Get(idempotencyHeader)
	if id == "" {
		id = fromBody
	}
	if _, err := uuid.Parse(id); err != nil {
		resp.WriteError(w, http.StatusBadRequest, "request id must be a UUID")
		return "", false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidWager), errors.Is(err, errs.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrInsufficientFunds):
		status = http.StatusPaymentRequired
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrDuplicateRequest), errors.Is(err, errs.ErrNotAllowed):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrSessionBusy):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		resp.WriteError(w, status, "internal error")
		return
	}
	resp.WriteError(w, status, err.Error())
}

// Register маршруты /cascade, авторизация навешивается снаружи
func (h *Handler) Register(r chi.Router) {
	r.Post("/open", h.Open)
	r.Post("/spin", h.Spin)
	r.Post("/buy-bonus", h.BuyBonus)
	r.Post("/deposit", h.Deposit)
	r.Get("/state", h.State)
	r.Get("/result/{requestID}", h.Result)
	r.Get("/verify/{requestID}", h.Verify)
	r.Post("/desync", h.Desync)
	r.Get("/stats", h.Stats)
}
