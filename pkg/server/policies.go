package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/telemetry/logging"
)

// policyRequest is the body of create and update calls. IsActive shadows
// the embedded field so an omitted value can default to true.
type policyRequest struct {
	retention.Policy
	IsActive *bool `json:"isActive"`
}

// policy returns the administrative part of the request. Stats, lease and
// timestamps are owned by the service and never taken from clients.
func (req *policyRequest) policy() *retention.Policy {
	p := req.Policy
	p.IsActive = req.IsActive == nil || *req.IsActive
	p.Stats = retention.Stats{}
	p.Lease = nil
	p.CreatedAt = time.Time{}
	p.UpdatedAt = time.Time{}
	return &p
}

// GET /v1/policies?organizationId=&entityType=&active=
func (s *Server) listPolicies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := retention.PolicyFilter{
		OrganizationID: q.Get("organizationId"),
		EntityType:     retention.EntityType(q.Get("entityType")),
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_query", "active must be a boolean")
			return
		}
		filter.ActiveOnly = active
	}
	if filter.EntityType != "" && !filter.EntityType.Valid() {
		writeError(w, r, http.StatusBadRequest, "invalid_query", "unknown entityType "+string(filter.EntityType))
		return
	}

	policies, err := s.deps.Policies.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

// POST /v1/policies
func (s *Server) createPolicy(w http.ResponseWriter, r *http.Request) {
	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	p := req.policy()
	p.ID = ""
	if user := logging.GetUser(r.Context()); user != "" {
		p.CreatedBy = user
	}
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := logging.WithOrganizationID(r.Context(), p.OrganizationID)
	if err := s.deps.Policies.Create(ctx, p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.InfoContext(logging.WithPolicyID(ctx, p.ID), "retention policy created",
		"entity_type", p.EntityType,
	)
	w.Header().Set("Location", "/v1/policies/"+p.ID)
	writeJSON(w, http.StatusCreated, p)
}

// GET /v1/policies/{id}
func (s *Server) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Policies.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PUT /v1/policies/{id}
func (s *Server) updatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req policyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	p := req.policy()
	if p.ID != "" && p.ID != id {
		writeError(w, r, http.StatusBadRequest, "invalid_body", "body id does not match path")
		return
	}
	p.ID = id
	p.ApplyDefaults()
	if err := p.Validate(); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	ctx := logging.WithPolicyID(r.Context(), id)
	if err := s.deps.Policies.Update(ctx, p); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	updated, err := s.deps.Policies.Get(ctx, id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.InfoContext(ctx, "retention policy updated", "is_active", updated.IsActive)
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /v1/policies/{id} deactivates the policy.
func (s *Server) deactivatePolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithPolicyID(r.Context(), id)

	if err := s.deps.Policies.Deactivate(ctx, id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.InfoContext(ctx, "retention policy deactivated")
	w.WriteHeader(http.StatusNoContent)
}

// POST /v1/policies/{id}/run executes the policy now. A run that fails
// after starting still answers 200; the outcome is in the body.
func (s *Server) runPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithPolicyID(r.Context(), id)

	res, err := s.deps.Runner.RunNow(ctx, id, s.now())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunResponse(res))
}

// GET /v1/policies/{id}/preview
func (s *Server) previewPolicy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithPolicyID(r.Context(), id)

	p, err := s.deps.Policies.Get(ctx, id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewRunResponse(s.deps.Previewer.Preview(ctx, p, s.now())))
}
