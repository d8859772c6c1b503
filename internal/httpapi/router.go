// Package httpapi serves the wallet JSON API and the static UI.
package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

// NewRouter returns the API wrapped in the middleware chain. When staticDir
// is set, unmatched GETs are served from it with index.html as fallback.
func NewRouter(h *Handler, staticDir string) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/balance/{address}", h.getBalance).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{address}", h.getHistory).Methods(http.MethodGet)
	api.HandleFunc("/transactions", h.recordTransaction).Methods(http.MethodPost)
	api.HandleFunc("/estimate-gas", h.estimateGas).Methods(http.MethodPost)
	api.HandleFunc("/receipt/{hash}", h.getReceipt).Methods(http.MethodGet)
	api.HandleFunc("/wallet/new", h.newWallet).Methods(http.MethodPost)
	api.HandleFunc("/transaction/sign", h.signTransaction).Methods(http.MethodPost)
	api.NotFoundHandler = http.HandlerFunc(notFound)
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	if staticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: staticDir}).Methods(http.MethodGet, http.MethodHead)
	}
	r.NotFoundHandler = http.HandlerFunc(notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	var handler http.Handler = r
	handler = CORS(handler)
	handler = Recovery(h.log)(handler)
	handler = AccessLog(h.log)(handler)
	handler = RequestID(handler)
	return handler
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
}

// spaHandler serves files from dir and falls back to index.html for paths
// that do not name a file.
type spaHandler struct {
	dir string
}

func (s spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clean := filepath.Clean("/" + r.URL.Path)
	p := filepath.Join(s.dir, filepath.FromSlash(clean))

	if !strings.HasPrefix(p, filepath.Clean(s.dir)) {
		notFound(w, r)
		return
	}

	if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
		http.ServeFile(w, r, p)
		return
	}
	index := filepath.Join(s.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		notFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
