package http

import (
	"net/http"

	"intentdash/internal/log"
	"intentdash/internal/store"
)

const sessionCookie = "intentdash_session"

// withSession resolves the caller's session, starting one when needed, and
// puts its IntentStore in the request context.
func (s *Server) withSession(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}

		st, id, created := s.registry.Resolve(id)
		if created {
			http.SetCookie(w, s.sessionCookie(r, id))
		}

		ctx := store.NewContext(r.Context(), st)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldSessionID, id))
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) sessionCookie(r *http.Request, id string) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

// handleEndSession discards the caller's session state and cookie.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.registry.End(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
