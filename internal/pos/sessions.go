package pos

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/feliperosa/pos-cart-engine/internal/session"
)

type openSessionRequest struct {
	OpeningFloat decimal.Decimal `json:"opening_float"`
}

func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OpeningFloat.Sign() < 0 {
		h.writeError(w, http.StatusBadRequest, "opening float must not be negative")
		return
	}

	sess, err := h.sessions.Open(r.Context(), terminal, req.OpeningFloat)
	if err != nil {
		if errors.Is(err, session.ErrAlreadyOpen) {
			h.writeError(w, http.StatusConflict, "cash session already open")
			return
		}
		h.logger.Error("failed to open cash session", "error", err, "terminal", terminal)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cash session opened", "terminal", terminal, "session_id", sess.ID)
	h.writeJSON(w, http.StatusCreated, sess)
}

type closeSessionRequest struct {
	CountedCash decimal.Decimal `json:"counted_cash"`
}

func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	var req closeSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := h.sessions.Close(r.Context(), terminal, req.CountedCash)
	if err != nil {
		if errors.Is(err, session.ErrNotOpen) {
			h.writeError(w, http.StatusConflict, "no open cash session")
			return
		}
		h.logger.Error("failed to close cash session", "error", err, "terminal", terminal)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("cash session closed", "terminal", terminal, "session_id", sess.ID,
		"expected_cash", sess.ExpectedCash, "variance", sess.Variance)
	h.writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) HandleCurrentSession(w http.ResponseWriter, r *http.Request) {
	terminal := r.PathValue("terminal")

	sess, err := h.sessions.Current(r.Context(), terminal)
	if err != nil {
		h.logger.Error("failed to get cash session", "error", err, "terminal", terminal)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if sess == nil {
		h.writeError(w, http.StatusNotFound, "no open cash session")
		return
	}

	h.writeJSON(w, http.StatusOK, sess)
}
