// Package logging configures structured logging for the retention service.
//
// New builds a log/slog logger with JSON or text output and wraps its
// handler so that identifiers stored in a context (run, policy,
// organization, request, user) are attached to every record logged with
// that context:
//
//	logger, err := logging.Setup(logging.Config{Level: "info", Format: "json", RedactPII: true})
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithPolicyID(ctx, policy.ID)
//	logger.InfoContext(ctx, "retention run started") // includes policy_id
//
// Components obtain their logger from slog.Default() with a "component"
// attribute.
//
// # Redaction
//
// With RedactPII enabled, attributes whose keys look like secrets are
// replaced with "***", and string values are scrubbed of bearer tokens,
// URL credentials, passwords, email addresses and phone numbers.
package logging
