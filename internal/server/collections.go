package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/TobiSchelling/Folio/internal/collection"
	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/metadata"
	"github.com/TobiSchelling/Folio/internal/profile"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, u *database.User) {
	q := r.URL.Query()
	limit := queryInt(r, "limit", defaultPageSize)
	if limit == 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)
	offset := queryInt(r, "offset", 0)

	items, total, err := s.DB.ListItems(u.ID, database.ItemFilter{
		Platform: q.Get("platform"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		internalError(w, r, err)
		return
	}
	if items == nil {
		items = []database.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": items,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (s *Server) handleSaveItem(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req collection.SaveRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	it, err := s.Collection.Save(r.Context(), u.ID, req)
	switch {
	case errors.Is(err, collection.ErrMissingURL), errors.Is(err, collection.ErrMissingTitle):
		writeError(w, http.StatusBadRequest, "URL and title are required")
	case errors.Is(err, collection.ErrInvalidPlatform), errors.Is(err, collection.ErrInvalidContentType):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, it)
	}
}

type urlRequest struct {
	URL string `json:"url" validate:"required"`
}

func (s *Server) handleFetchMetadata(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req urlRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, metadata.ErrMissingURL.Error())
		return
	}
	m, err := s.Fetcher.Fetch(r.Context(), req.URL)
	switch {
	case errors.Is(err, metadata.ErrMissingURL), errors.Is(err, metadata.ErrInvalidURL), errors.Is(err, metadata.ErrUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

// itemWithAnalysis is an item together with its DNA, when analyzed.
type itemWithAnalysis struct {
	*database.Item
	Analysis *database.ItemAnalysis `json:"analysis"`
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, u *database.User) {
	it, err := s.DB.GetItem(u.ID, r.PathValue("id"))
	if err != nil {
		internalError(w, r, err)
		return
	}
	if it == nil {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	a, err := s.DB.GetAnalysis(it.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemWithAnalysis{Item: it, Analysis: a})
}

type itemPatch struct {
	Title *string   `json:"title"`
	Notes *string   `json:"notes"`
	Tags  *[]string `json:"tags"`
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, u *database.User) {
	var p itemPatch
	if err := decode(w, r, &p); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	ok, err := s.DB.UpdateItem(u.ID, id, database.ItemPatch{Title: p.Title, Notes: p.Notes, Tags: p.Tags})
	if err != nil {
		internalError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	it, err := s.DB.GetItem(u.ID, id)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, u *database.User) {
	ok, err := s.DB.DeleteItem(u.ID, r.PathValue("id"))
	if err != nil {
		internalError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRescan(w http.ResponseWriter, r *http.Request, u *database.User) {
	res, err := s.Collection.Rescan(r.Context(), u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refreshRequest struct {
	ItemID string `json:"itemId"`
}

// handleRefreshMetrics always answers 200; per-item failures are counted
// in the result.
func (s *Server) handleRefreshMetrics(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req refreshRequest
	if r.ContentLength > 0 {
		if err := decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	res, err := s.Collection.RefreshMetrics(r.Context(), u.ID, req.ItemID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analyzeRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "itemId is required")
		return
	}
	it, a, err := s.Collection.Analyze(r.Context(), u.ID, req.ItemID)
	switch {
	case errors.Is(err, collection.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"item": it, "analysis": a})
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, u *database.User) {
	v, err := s.Profile.Get(u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	sum, err := s.Profile.CollectionSummary(u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"profile": v, "collectionSummary": sum})
}

func (s *Server) handleProfileSource(w http.ResponseWriter, r *http.Request, u *database.User) {
	v, err := s.Profile.Source(u.ID, r.URL.Query().Get("mode"))
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request, u *database.User) {
	force := r.URL.Query().Get("force") == "true"
	res, err := s.Profile.Rebuild(r.Context(), u.ID, force)
	switch {
	case errors.Is(err, profile.ErrNoItems):
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"itemCount": res.ItemCount,
			"analyzed":  res.Analyzed,
			"profile":   res.Profile,
		})
	}
}
