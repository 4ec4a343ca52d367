package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gwi.com/analyst-assistant/internal/auth"
)

const sessionCookie = "assistant_session"

type contextKey int

const (
	sessionKey contextKey = iota
	memberKey
)

func sessionFrom(ctx context.Context) *auth.Session {
	sess, _ := ctx.Value(sessionKey).(*auth.Session)
	return sess
}

func memberFrom(ctx context.Context) *auth.Member {
	m, _ := ctx.Value(memberKey).(*auth.Member)
	return m
}

// RequestLogger logs one line per request once the response is written.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}

// SessionMiddleware attaches the caller's session to the request, starting
// an anonymous one when the token is missing, invalid or expired. The token
// is re-issued on every response so active sessions do not lapse.
func (h *Handler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := h.resolveSession(r)
		if sess == nil {
			sess = h.sessions.Create()
		}

		if err := h.setSessionCookie(w, sess); err != nil {
			h.logger.Error("failed to issue session token", zap.Error(err))
			http.Error(w, "Failed to start session", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) resolveSession(r *http.Request) *auth.Session {
	token := ""
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	} else if c, err := r.Cookie(sessionCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		return nil
	}

	sid, err := h.tokens.Validate(token)
	if err != nil {
		h.logger.Debug("discarding session token", zap.Error(err))
		return nil
	}
	sess, ok := h.sessions.Get(sid)
	if !ok {
		return nil
	}
	return sess
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess *auth.Session) error {
	token, err := h.tokens.Generate(sess.ID())
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// RequireMember rejects anonymous API callers with 401.
func (h *Handler) RequireMember(next http.Handler) http.Handler {
	return h.requireMember(next, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Login required", http.StatusUnauthorized)
	})
}

// RequireMemberPage sends anonymous browsers back to the login page.
func (h *Handler) RequireMemberPage(next http.Handler) http.Handler {
	return h.requireMember(next, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
}

func (h *Handler) requireMember(next http.Handler, onAnonymous http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r.Context())
		if sess == nil {
			onAnonymous(w, r)
			return
		}
		member, ok := sess.Member()
		if !ok {
			onAnonymous(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), memberKey, member)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
