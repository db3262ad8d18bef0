package server

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/telemetry/logging"
)

// POST /v1/holds
func (s *Server) placeHold(w http.ResponseWriter, r *http.Request) {
	var h retention.RecordHold
	if err := decodeJSON(r, &h); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	h.ID = ""
	h.CreatedAt = time.Time{}
	if user := logging.GetUser(r.Context()); user != "" {
		h.PlacedBy = user
	}
	if err := validateHold(&h); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := logging.WithOrganizationID(r.Context(), h.OrganizationID)
	if err := s.deps.Holds.PlaceHold(ctx, &h); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.InfoContext(ctx, "record hold placed",
		"hold_id", h.ID,
		"collection", h.Collection,
		"record_id", h.RecordID,
	)
	writeJSON(w, http.StatusCreated, h)
}

// GET /v1/holds?organizationId=
func (s *Server) listHolds(w http.ResponseWriter, r *http.Request) {
	holds, err := s.deps.Holds.ListHolds(r.Context(), r.URL.Query().Get("organizationId"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"holds": holds})
}

// DELETE /v1/holds/{id}
func (s *Server) releaseHold(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.deps.Holds.ReleaseHold(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "record hold released", "hold_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func validateHold(h *retention.RecordHold) error {
	var errs []retention.FieldError
	if strings.TrimSpace(h.OrganizationID) == "" {
		errs = append(errs, retention.FieldError{Field: "organizationId", Message: "organization id is required"})
	}
	if !slices.Contains(retention.GovernedCollections(), h.Collection) {
		errs = append(errs, retention.FieldError{
			Field:   "collection",
			Message: "must be one of " + strings.Join(retention.GovernedCollections(), ", "),
		})
	}
	if strings.TrimSpace(h.RecordID) == "" {
		errs = append(errs, retention.FieldError{Field: "recordId", Message: "record id is required"})
	}
	if strings.TrimSpace(h.Reason) == "" {
		errs = append(errs, retention.FieldError{Field: "reason", Message: "reason is required"})
	}
	if len(errs) > 0 {
		return &retention.ValidationError{Errors: errs}
	}
	return nil
}
