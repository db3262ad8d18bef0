// Package server implements the admin HTTP API.
//
// # Endpoints
//
//	GET    /v1/policies?organizationId=&entityType=&active=
//	POST   /v1/policies                  201, 400 invalid, 409 duplicate
//	GET    /v1/policies/{id}
//	PUT    /v1/policies/{id}
//	DELETE /v1/policies/{id}             soft delete, 204
//	POST   /v1/policies/{id}/run         run now, bypassing the schedule
//	GET    /v1/policies/{id}/preview     dry run
//	POST   /v1/holds
//	GET    /v1/holds?organizationId=
//	DELETE /v1/holds/{id}
//	GET    /health, /ready, /version, /metrics
//
// Routes under /v1 are rate limited per client address and, when auth is
// enabled, require an HS256 bearer token whose roles claim contains the
// configured role. Probe and metrics routes are public.
//
// Errors use a single envelope:
//
//	{"error": {"code": "validation_failed", "message": "...",
//	           "fields": [{"field": "retentionPeriod.unit", "message": "..."}],
//	           "requestId": "..."}}
package server
