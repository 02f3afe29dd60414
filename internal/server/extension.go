package server

import (
	"errors"
	"net/http"

	"github.com/TobiSchelling/Folio/internal/extension"
	"github.com/TobiSchelling/Folio/internal/extract"
)

type extractRequest struct {
	URL  string `json:"url" validate:"required"`
	HTML string `json:"html" validate:"required"`
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "url and html are required")
		return
	}
	c, err := extract.FromHTML(req.URL, req.HTML)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// clientID identifies one extension instance. Messages and event streams
// of the same instance share it.
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("client")
}

func (s *Server) handleExtensionMessage(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "client id is required")
		return
	}
	var m extension.Message
	if err := decode(w, r, &m); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := s.Relay.Handle(id, m)
	switch {
	case errors.Is(err, extension.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, extension.ErrUnknownType), errors.Is(err, extension.ErrBadMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleExtensionEvents(w http.ResponseWriter, r *http.Request) {
	id := clientID(r)
	if id == "" {
		writeError(w, http.StatusBadRequest, "client id is required")
		return
	}
	s.Relay.ServeEvents(w, r, id)
}
