package httptransport

import (
	"encoding/json"
	"net/http"
)

// Handler processes one route's request body and returns a status code
// plus a JSON-encodable response value, or an error to be rendered as a
// JSON error body.
type Handler func(r *http.Request) (status int, response any, err error)

// ErrorResponse is the JSON shape written when a Handler returns an error,
// matching the {error, code} convention used across the example pack's
// hand-rolled HTTP servers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// CodedError lets a Handler attach a stable machine-readable code (the
// relay's error taxonomy) to an otherwise plain error.
type CodedError struct {
	Code    string
	Message string
}

func (e *CodedError) Error() string { return e.Message }

// Mux is a minimal route table over net/http.ServeMux, used by the relay
// to register its fixed set of REST endpoints without pulling in a router
// framework — the same choice the teacher made for this concern.
type Mux struct {
	mux *http.ServeMux
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux()}
}

// Handle registers h for pattern, wrapping it with uniform JSON
// encoding/error handling.
func (m *Mux) Handle(pattern string, h Handler) {
	m.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		status, resp, err := h(r)
		w.Header().Set("Content-Type", "application/json")

		if err != nil {
			code := "InternalError"
			if ce, ok := err.(*CodedError); ok {
				code = ce.Code
			}
			if status == 0 {
				status = http.StatusInternalServerError
			}
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
			return
		}

		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		if resp != nil {
			_ = json.NewEncoder(w).Encode(resp)
		}
	})
}

// ServeHTTP implements http.Handler.
func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}
