package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/brioai/brio/internal/provider"
)

type providerRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

func (s *Server) handleProviderValidate(w http.ResponseWriter, r *http.Request) {
	var body providerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := s.providers.Validate(r.Context(), provider.TransportKind(body.Type), body.URL)
	if err != nil {
		s.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProviderRegister(w http.ResponseWriter, r *http.Request) {
	var body providerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := s.providers.Register(r.Context(), UserID(r.Context()), provider.TransportKind(body.Type), body.URL, body.Name)
	if err != nil {
		s.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleProviderList(w http.ResponseWriter, r *http.Request) {
	provs, err := s.providers.List(r.Context(), UserID(r.Context()))
	if err != nil {
		s.providerError(w, err)
		return
	}
	if provs == nil {
		provs = []provider.Provider{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": provs})
}

func (s *Server) handleProviderToggle(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider ID")
		return
	}
	p, err := s.providers.Toggle(r.Context(), id, UserID(r.Context()))
	if err != nil {
		s.providerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProviderDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid provider ID")
		return
	}
	if err := s.providers.Delete(r.Context(), id, UserID(r.Context())); err != nil {
		s.providerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// providerError maps provider failures onto HTTP statuses.
func (s *Server) providerError(w http.ResponseWriter, err error) {
	var (
		verr        *provider.ValidationError
		unavailable *provider.UnavailableError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, provider.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, provider.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &unavailable):
		writeError(w, http.StatusUnprocessableEntity, unavailable.Error())
	default:
		s.logger.Error("provider request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "provider request failed")
	}
}
