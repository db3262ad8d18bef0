// Package notify delivers retention run events.
//
// LogNotifier writes each event to the audit log. NATSNotifier publishes it
// as JSON on a per-organization subject:
//
//	chryso.retention.{organization}.{outcome}
//
// so consumers can subscribe to chryso.retention.> for everything,
// chryso.retention.*.failed for failures only, or one tenant's events.
// Multi fans out to several notifiers.
package notify
