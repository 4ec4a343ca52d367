package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/core"
	"gwi.com/analyst-assistant/internal/history"
	"gwi.com/analyst-assistant/internal/store"
)

type Handler struct {
	sessions      *auth.Registry
	tokens        *auth.TokenIssuer
	pipeline      *core.Pipeline
	logger        *zap.Logger
	secureCookies bool
}

type Option func(*Handler)

// WithSecureCookies marks the session cookie Secure, for HTTPS deployments.
func WithSecureCookies(secure bool) Option {
	return func(h *Handler) { h.secureCookies = secure }
}

func NewHandler(sessions *auth.Registry, tokens *auth.TokenIssuer, pipeline *core.Pipeline, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		sessions: sessions,
		tokens:   tokens,
		pipeline: pipeline,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// authStatus maps sign-up and login failures to HTTP status codes.
func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrWriteFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingField):
		return "Email and password are required."
	case errors.Is(err, auth.ErrDuplicateEmail):
		return "⚠️ Email already exists."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "❌ Invalid credentials"
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, store.ErrWriteFailed):
		return "The account store is unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}

type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	if err := sess.SignUp(r.Context(), req.Email, req.Password); err != nil {
		if authStatus(err) >= http.StatusInternalServerError {
			h.logger.Error("sign up failed", zap.Error(err))
		}
		http.Error(w, authMessage(err), authStatus(err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"email": store.NormalizeEmail(req.Email)})
}

type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r.Context())
	if _, err := sess.Login(r.Context(), req.Email, req.Password); err != nil {
		if authStatus(err) >= http.StatusInternalServerError {
			h.logger.Error("login failed", zap.Error(err))
		}
		http.Error(w, authMessage(err), authStatus(err))
		return
	}

	token, err := h.tokens.Generate(sess.ID())
	if err != nil {
		h.logger.Error("failed to generate token", zap.Error(err))
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Email: sess.Identity()})
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r.Context()).Logout()
	w.WriteHeader(http.StatusNoContent)
}

type AskRequest struct {
	Question string `json:"question"`
}

type AskResponse struct {
	Kind     string `json:"kind"`
	Notice   string `json:"notice,omitempty"`
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.pipeline.Submit(r.Context(), memberFrom(r.Context()), req.Question)
	if err != nil {
		if errors.Is(err, auth.ErrSessionEnded) {
			http.Error(w, "Login required", http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusBadGateway, AskResponse{Kind: core.ErrorKind(err), Error: core.DescribeError(err)})
		return
	}

	writeJSON(w, http.StatusOK, AskResponse{
		Kind:     outcome.Kind.String(),
		Notice:   outcome.Notice,
		Question: outcome.Exchange.Question,
		Answer:   outcome.Exchange.Answer,
	})
}

type HistoryResponse struct {
	Count     int                `json:"count"`
	Exchanges []history.Exchange `json:"exchanges"`
}

// HistoryHandler lists the session history newest first, optionally
// filtered by the q query parameter.
func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	log := memberFrom(r.Context()).History()

	resp := HistoryResponse{Exchanges: []history.Exchange{}}
	for ex := range log.Search(r.URL.Query().Get("q")) {
		resp.Exchanges = append(resp.Exchanges, ex)
	}
	resp.Count = len(resp.Exchanges)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	h.pipeline.ClearHistory(memberFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportHistoryHandler(w http.ResponseWriter, r *http.Request) {
	h.writeExport(w, r)
}

func (h *Handler) writeExport(w http.ResponseWriter, r *http.Request) {
	data, err := h.pipeline.ExportHistory(memberFrom(r.Context()))
	if err != nil {
		h.logger.Error("failed to export history", zap.Error(err))
		http.Error(w, "Failed to export history", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="chat_history.csv"`)
	w.Write(data)
}

type FeedbackRequest struct {
	Helpful bool `json:"helpful"`
}

func (h *Handler) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.mark(r, req.Helpful); err != nil {
		if errors.Is(err, core.ErrNoExchange) {
			http.Error(w, "Nothing to rate yet", http.StatusConflict)
			return
		}
		h.logger.Error("failed to record feedback", zap.Error(err))
		http.Error(w, "Failed to record feedback", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) mark(r *http.Request, helpful bool) error {
	member := memberFrom(r.Context())
	if helpful {
		return h.pipeline.MarkHelpful(member)
	}
	return h.pipeline.MarkNotHelpful(member)
}
