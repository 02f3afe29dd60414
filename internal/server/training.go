package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/TobiSchelling/Folio/internal/database"
	"github.com/TobiSchelling/Folio/internal/generate"
	"github.com/TobiSchelling/Folio/internal/profile"
)

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request, u *database.User) {
	var in profile.RatingInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rating, v, err := s.Profile.RecordRating(r.Context(), u.ID, in)
	switch {
	case errors.Is(err, profile.ErrInvalidRating):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, "Suggestion not found")
		return
	case err != nil:
		internalError(w, r, err)
		return
	}
	s.Metrics.IncRating(rating.RatingType, rating.Outcome)

	// Top up the queue so the next pair is ready.
	if _, err := s.Discoverer.Ensure(u.ID); err != nil {
		log.Warn().Err(err).Str("user", u.ID).Msg("checking pending suggestions")
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "rating": rating, "profile": v})
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request, u *database.User) {
	res, err := s.Profile.Refine(r.Context(), u.ID)
	switch {
	case errors.Is(err, profile.ErrNotEnoughRatings):
		count := 0
		if res != nil {
			count = res.RatingCount
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success":     false,
			"error":       err.Error(),
			"ratingCount": count,
		})
	case err != nil:
		internalError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, u *database.User) {
	ctx := r.Context()
	switch mode := r.URL.Query().Get("mode"); mode {
	case "", "pair":
		if _, err := s.Discoverer.Ensure(u.ID); err != nil {
			internalError(w, r, err)
			return
		}
		pair, err := s.Discoverer.NextPair(ctx, u.ID)
		if err != nil {
			internalError(w, r, err)
			return
		}
		pending, err := s.DB.CountPending(u.ID)
		if err != nil {
			internalError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"pair": pair, "pendingCount": pending})

	case "list":
		list, err := s.Discoverer.PendingList(ctx, u.ID)
		if err != nil {
			internalError(w, r, err)
			return
		}
		if list == nil {
			list = []database.Suggestion{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": list, "pendingCount": len(list)})

	case "discover":
		count := queryInt(r, "count", s.Discoverer.BatchSize())
		stored, err := s.Discoverer.Discover(ctx, u.ID, count)
		if err != nil {
			internalError(w, r, err)
			return
		}
		if stored == nil {
			stored = []database.Suggestion{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"discovered": len(stored), "suggestions": stored})

	default:
		writeError(w, http.StatusBadRequest, "mode must be pair, list or discover")
	}
}

func (s *Server) handleTrainingStats(w http.ResponseWriter, r *http.Request, u *database.User) {
	st, err := s.Profile.Stats(u.ID)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req generate.Request
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	variants, err := s.Generator.Generate(r.Context(), u.ID, req)
	switch {
	case errors.Is(err, generate.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "AI generation is not available. Configure an LLM provider.")
	case errors.Is(err, generate.ErrMissingTopic), errors.Is(err, generate.ErrInvalidPlatform),
		errors.Is(err, generate.ErrNoReferences):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		log.Error().Err(err).Str("user", u.ID).Msg("generation failed")
		writeError(w, http.StatusBadGateway, "Failed to generate variants")
	default:
		s.Metrics.IncGenerated(req.Mode, len(variants))
		writeJSON(w, http.StatusOK, map[string]any{"variants": variants})
	}
}

type translateRequest struct {
	Text           string `json:"text" validate:"required"`
	TargetLanguage string `json:"targetLanguage" validate:"required"`
	SourceLanguage string `json:"sourceLanguage"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request, u *database.User) {
	var req translateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Text and target language are required")
		return
	}
	tr, err := s.Translator.Translate(r.Context(), req.Text, req.TargetLanguage, req.SourceLanguage)
	switch {
	case errors.Is(err, generate.ErrMissingText), errors.Is(err, generate.ErrMissingLanguage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, generate.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Translation is not available. Configure an LLM provider.")
	case err != nil:
		log.Error().Err(err).Str("user", u.ID).Msg("translation failed")
		writeError(w, http.StatusBadGateway, "Translation failed")
	default:
		writeJSON(w, http.StatusOK, tr)
	}
}

// handleProfilePage renders the combined profile for reading in a browser.
func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request, u *database.User) {
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
	data := map[string]any{"User": u, "Profile": v, "Summary": sum}
	if v != nil {
		data["Markdown"] = profile.Markdown(v)
	}
	s.render(w, "profile.html", data)
}

