package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/pvzzle/ethwallet/internal/ledger"
	klog "github.com/pvzzle/ethwallet/internal/log"
	"github.com/pvzzle/ethwallet/internal/wallet"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type Handler struct {
	ledger  *ledger.Service
	wallets *wallet.Service
	store   string
	log     zerolog.Logger
}

// NewHandler wires the API. store names the storage backend for /health.
func NewHandler(l *ledger.Service, w *wallet.Service, store string) *Handler {
	return &Handler{
		ledger:  l,
		wallets: w,
		store:   store,
		log:     klog.WithComponent("http"),
	}
}

type recordRequest struct {
	Hash      flexString `json:"hash"`
	From      flexString `json:"from"`
	To        flexString `json:"to"`
	Amount    flexString `json:"amount"`
	Timestamp flexString `json:"timestamp"`
}

type estimateRequest struct {
	From  flexString `json:"from"`
	To    flexString `json:"to"`
	Value flexString `json:"value"`
}

type newWalletRequest struct {
	Passphrase string `json:"passphrase"`
}

type signRequest struct {
	Address     string     `json:"address"`
	Transaction string     `json:"transaction"`
	MFACode     flexString `json:"mfa_code"`
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.ledger.GetBalance(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (h *Handler) getHistory(w http.ResponseWriter, r *http.Request) {
	txs, err := h.ledger.GetHistory(r.Context(), mux.Vars(r)["address"])
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) recordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}

	rec, err := h.ledger.RecordTransaction(r.Context(), ledger.RecordInput{
		Hash:      string(req.Hash),
		From:      string(req.From),
		To:        string(req.To),
		Amount:    string(req.Amount),
		Timestamp: string(req.Timestamp),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) estimateGas(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}

	est, err := h.ledger.EstimateGas(r.Context(), ledger.EstimateInput{
		From:  string(req.From),
		To:    string(req.To),
		Value: string(req.Value),
	})
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	rc, err := h.ledger.GetReceipt(r.Context(), mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, rc)
}

func (h *Handler) newWallet(w http.ResponseWriter, r *http.Request) {
	var req newWalletRequest
	// empty body: no passphrase
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.badJSON(w, r, err)
		return
	}

	created, err := h.wallets.Create(r.Context(), req.Passphrase)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (h *Handler) signTransaction(w http.ResponseWriter, r *http.Request) {
	var req signRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.badJSON(w, r, err)
		return
	}

	sig, err := h.wallets.Sign(req.Address, req.Transaction, string(req.MFACode))
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, sig)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"store":  h.store,
	})
}

func (h *Handler) badJSON(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	msg := msgInvalidJSON

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		status = http.StatusRequestEntityTooLarge
		msg = "request body too large"
	}

	h.log.Warn().Err(err).Str("request_id", RequestIDFrom(r.Context())).Msg("bad request body")
	writeJSON(w, status, errorBody{Error: msg})
}
