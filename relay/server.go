package relay

import (
	"encoding/json"
	"io"
	"net"
	"net/http"

	"github.com/sage-x-project/securemsg/internal/metrics"
	"github.com/sage-x-project/securemsg/ledger"
	"github.com/sage-x-project/securemsg/transport/httptransport"
)

// Server exposes a Validator as the 8 REST endpoints of spec.md §6 over
// plain net/http, grounded on the teacher's pkg/agent/transport/http
// server and the shared httptransport.Mux built for this module.
type Server struct {
	Validator *Validator
	Auth      BearerAuthenticator

	mux *httptransport.Mux
}

// NewServer wires and returns a ready-to-serve Server.
func NewServer(v *Validator, auth BearerAuthenticator) *Server {
	s := &Server{Validator: v, Auth: auth, mux: httptransport.NewMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("POST /keys/exchange/initiate", s.handleInitiate)
	s.mux.Handle("POST /keys/exchange/respond", s.handleRespond)
	s.mux.Handle("POST /keys/exchange/confirm", s.handleConfirm)
	s.mux.Handle("GET /keys/exchange/session/{id}", s.handleGetSession)
	s.mux.Handle("GET /keys/exchange/status/{id}", s.handleGetStatus)
	s.mux.Handle("GET /keys/exchange/pending", s.handleListPending)
	s.mux.Handle("POST /messages", s.handlePostMessage)
	s.mux.Handle("GET /messages/conversation/{userId}", s.handleListConversation)
}

// authenticated runs the bearer-token gate and attaches the caller id and
// remote address to the request context, returning a *CodedError the Mux
// can render on failure.
func (s *Server) authenticated(r *http.Request) (string, *http.Request, error) {
	ctx, callerID, err := authenticate(r, s.Auth)
	if err != nil {
		return "", r, toCodedError(err)
	}
	ctx = withRemoteAddr(ctx, clientIP(r))
	return callerID, r.WithContext(ctx), nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func toCodedError(err error) *httptransport.CodedError {
	if re, ok := err.(*Error); ok {
		return &httptransport.CodedError{Code: string(re.Code), Message: re.Message}
	}
	return &httptransport.CodedError{Code: string(CodeInternal), Message: err.Error()}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return newError(CodeInvalidEncoding, "read body: %v", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return newError(CodeInvalidEncoding, "decode body: %v", err)
	}
	return nil
}

func statusFor(err *Error) int {
	return err.Status()
}

func (s *Server) handleInitiate(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	var req InitiateRequest
	if derr := decodeJSON(r, &req); derr != nil {
		ve := derr.(*Error)
		return ve.Status(), nil, toCodedError(ve)
	}
	resp, verr := s.Validator.Init(r.Context(), callerID, req)
	if verr != nil {
		metrics.SessionsCreated.WithLabelValues("failure").Inc()
		return statusFor(verr), nil, toCodedError(verr)
	}
	metrics.HandshakesInitiated.WithLabelValues("server").Inc()
	metrics.SessionsCreated.WithLabelValues("success").Inc()
	return http.StatusCreated, resp, nil
}

func (s *Server) handleRespond(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	var req RespondRequest
	if derr := decodeJSON(r, &req); derr != nil {
		ve := derr.(*Error)
		return ve.Status(), nil, toCodedError(ve)
	}
	resp, verr := s.Validator.Respond(r.Context(), callerID, req)
	if verr != nil {
		return statusFor(verr), nil, toCodedError(verr)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handleConfirm(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	var req ConfirmRequest
	if derr := decodeJSON(r, &req); derr != nil {
		ve := derr.(*Error)
		return ve.Status(), nil, toCodedError(ve)
	}
	resp, verr := s.Validator.Confirm(r.Context(), callerID, req)
	if verr != nil {
		metrics.HandshakesCompleted.WithLabelValues("failure").Inc()
		return statusFor(verr), nil, toCodedError(verr)
	}
	if resp.Status == string(ledger.StatusCompleted) {
		metrics.HandshakesCompleted.WithLabelValues("success").Inc()
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handleGetSession(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	resp, verr := s.Validator.GetSession(r.Context(), callerID, r.PathValue("id"))
	if verr != nil {
		return statusFor(verr), nil, toCodedError(verr)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handleGetStatus(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	resp, verr := s.Validator.GetStatus(r.Context(), callerID, r.PathValue("id"))
	if verr != nil {
		return statusFor(verr), nil, toCodedError(verr)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handleListPending(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	resp, verr := s.Validator.ListPending(r.Context(), callerID)
	if verr != nil {
		return statusFor(verr), nil, toCodedError(verr)
	}
	return http.StatusOK, resp, nil
}

func (s *Server) handlePostMessage(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	var req SendMessageRequest
	if derr := decodeJSON(r, &req); derr != nil {
		ve := derr.(*Error)
		return ve.Status(), nil, toCodedError(ve)
	}
	resp, verr := s.Validator.Message(r.Context(), callerID, req)
	if verr != nil {
		status := "failure"
		if verr.Code == CodeReplayDetected {
			metrics.ReplayAttacksDetected.Inc()
		}
		metrics.MessagesProcessed.WithLabelValues(req.MessageType, status).Inc()
		return statusFor(verr), nil, toCodedError(verr)
	}
	metrics.MessagesProcessed.WithLabelValues(req.MessageType, "success").Inc()
	metrics.MessageSize.Observe(float64(len(req.Ciphertext)))
	return http.StatusCreated, resp, nil
}

func (s *Server) handleListConversation(r *http.Request) (int, any, error) {
	callerID, r, err := s.authenticated(r)
	if err != nil {
		return http.StatusUnauthorized, nil, err
	}
	resp, verr := s.Validator.ListConversation(r.Context(), callerID, r.PathValue("userId"))
	if verr != nil {
		return statusFor(verr), nil, toCodedError(verr)
	}
	return http.StatusOK, resp, nil
}
