package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/pvzzle/ethwallet/internal/ledger"
	"github.com/pvzzle/ethwallet/internal/wallet"

	"github.com/rs/zerolog"
)

const (
	msgInternal    = "internal server error"
	msgInvalidJSON = "invalid JSON body"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status and a message safe to show to clients.
// The unsanitized error goes to the log only.
func writeError(w http.ResponseWriter, r *http.Request, log zerolog.Logger, err error) {
	status, msg := classify(err)

	ev := log.Warn()
	if status >= 500 {
		ev = log.Error()
	}
	ev.Err(err).
		Str("request_id", RequestIDFrom(r.Context())).
		Int("status", status).
		Msg("request failed")

	writeJSON(w, status, errorBody{Error: msg})
}

func classify(err error) (int, string) {
	var le *ledger.Error
	if errors.As(err, &le) {
		switch le.Kind {
		case ledger.KindValidation:
			return http.StatusBadRequest, le.Message
		case ledger.KindNotFound:
			return http.StatusNotFound, le.Message
		case ledger.KindProvider:
			msg := le.Message
			if le.Err != nil {
				msg += ": " + SanitizeMessage(le.Err.Error())
			}
			return http.StatusInternalServerError, msg
		default:
			return http.StatusInternalServerError, msgInternal
		}
	}

	switch {
	case errors.Is(err, wallet.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, wallet.ErrUnknownAddress):
		return http.StatusNotFound, "Wallet not found"
	case errors.Is(err, wallet.ErrInvalidMFA):
		return http.StatusUnauthorized, "Invalid MFA code"
	}
	return http.StatusInternalServerError, msgInternal
}

var (
	reURLUserinfo = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`)
	reURLAPIKey   = regexp.MustCompile(`(?i)([?&](?:api[_-]?key|key|token)=)[^&\s"]+`)
	rePrivateHost = regexp.MustCompile(`\b(?:127\.\d{1,3}\.\d{1,3}\.\d{1,3}|10\.\d{1,3}\.\d{1,3}\.\d{1,3}|192\.168\.\d{1,3}\.\d{1,3}|172\.(?:1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}|localhost)(?::\d+)?`)
	rePath        = regexp.MustCompile(`(?:/home/|/var/|/usr/|/opt/|/tmp/|/root/|/Users/|[A-Z]:\\)[^\s:"]*`)
)

// SanitizeMessage strips credentials, internal hosts and file paths from a
// provider error before it is shown to a client.
func SanitizeMessage(msg string) string {
	msg = reURLUserinfo.ReplaceAllString(msg, "$1")
	msg = reURLAPIKey.ReplaceAllString(msg, "${1}[redacted]")
	msg = rePrivateHost.ReplaceAllString(msg, "[rpc-host]")
	msg = rePath.ReplaceAllString(msg, "[path]")
	return strings.TrimSpace(msg)
}
