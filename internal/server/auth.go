package server

import (
	"net/http"
	"strings"

	"github.com/TobiSchelling/Folio/internal/database"
)

const tokenCookie = "folio_token"

type userHandler func(w http.ResponseWriter, r *http.Request, u *database.User)

// auth resolves the caller from a bearer token, the folio_token cookie or
// a token query parameter, in that order.
func (s *Server) auth(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, fromQuery := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		u, err := s.DB.UserByToken(token)
		if err != nil {
			internalError(w, r, err)
			return
		}
		if u == nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if fromQuery {
			http.SetCookie(w, &http.Cookie{
				Name:     tokenCookie,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		h(w, r, u)
	}
}

func requestToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t), false
		}
	}
	if c, err := r.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, false
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, true
	}
	return "", false
}
