package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"chryso-hq/forms/pkg/retention"
	"chryso-hq/forms/pkg/retention/engine"
	"chryso-hq/forms/pkg/retention/scheduler"
	"chryso-hq/forms/pkg/telemetry/logging"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Fields    []FieldIssue `json:"fields,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

// FieldIssue is one invalid field of a rejected policy or hold.
type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RunResponse is the JSON form of a run or preview result.
type RunResponse struct {
	RunID            string               `json:"runId"`
	PolicyID         string               `json:"policyId"`
	OrganizationID   string               `json:"organizationId"`
	EntityType       retention.EntityType `json:"entityType"`
	Outcome          retention.Outcome    `json:"outcome"`
	Cutoff           time.Time            `json:"cutoff"`
	Matched          int64                `json:"matched"`
	Archived         int64                `json:"archived"`
	ArchivedBytes    int64                `json:"archivedBytes"`
	Deleted          int64                `json:"deleted"`
	ArchiveLocations []string             `json:"archiveLocations,omitempty"`
	HeldExcluded     int                  `json:"heldExcluded"`
	PolicyHeld       bool                 `json:"policyHeld"`
	DryRun           bool                 `json:"dryRun"`
	StartedAt        time.Time            `json:"startedAt"`
	DurationMS       int64                `json:"durationMs"`
	Error            string               `json:"error,omitempty"`
}

// NewRunResponse converts an engine result to its JSON form.
func NewRunResponse(res *engine.Result) RunResponse {
	out := RunResponse{
		RunID:            res.RunID,
		PolicyID:         res.PolicyID,
		OrganizationID:   res.OrganizationID,
		EntityType:       res.EntityType,
		Outcome:          res.Outcome(),
		Cutoff:           res.Cutoff,
		Matched:          res.Matched,
		Archived:         res.Archived,
		ArchivedBytes:    res.ArchivedBytes,
		Deleted:          res.Deleted,
		ArchiveLocations: res.ArchiveLocations,
		HeldExcluded:     res.HeldExcluded,
		PolicyHeld:       res.PolicyHeld,
		DryRun:           res.DryRun,
		StartedAt:        res.StartedAt,
		DurationMS:       res.Duration.Milliseconds(),
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: logging.GetRequestID(r.Context()),
	}})
}

// writeStoreError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as a 500.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *retention.ValidationError
	switch {
	case errors.As(err, &verr):
		body := ErrorBody{Error: ErrorDetail{
			Code:      "validation_failed",
			Message:   "policy validation failed",
			RequestID: logging.GetRequestID(r.Context()),
		}}
		for _, fe := range verr.Errors {
			body.Error.Fields = append(body.Error.Fields, FieldIssue{Field: fe.Field, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, retention.ErrPolicyNotFound):
		writeError(w, r, http.StatusNotFound, "policy_not_found", err.Error())
	case errors.Is(err, retention.ErrHoldNotFound):
		writeError(w, r, http.StatusNotFound, "hold_not_found", err.Error())
	case errors.Is(err, retention.ErrPolicyConflict):
		writeError(w, r, http.StatusConflict, "policy_conflict", err.Error())
	case errors.Is(err, scheduler.ErrLeaseHeld):
		writeError(w, r, http.StatusConflict, "policy_running", err.Error())
	case errors.Is(err, scheduler.ErrPolicyInactive):
		writeError(w, r, http.StatusConflict, "policy_inactive", err.Error())
	default:
		s.logger.ErrorContext(r.Context(), "request failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, "internal", "an internal error occurred")
	}
}

// decodeJSON reads a single JSON document, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
