// Package policyfile loads retention policies from YAML files and applies
// them to a policy store.
//
// A policy file holds a list of policies in snake_case:
//
//	policies:
//	  - organization_id: acme
//	    name: Expire closed forms
//	    entity_type: form
//	    retention_period: {value: 1, unit: years}
//	    archive_before_delete: true
//	    archive_location: /var/lib/chryso/archive/acme
//	    archive_format: compressed
//	    conditions:
//	      - {field: status, operator: equals, value: closed}
//	    execution_schedule: {frequency: daily, hour: 2}
//
// Policies default to active. Apply upserts by organization and entity type;
// counters and lease state in the store are never overwritten by a file.
// Policies removed from a file are left in the store untouched.
//
// Watcher reloads a file or directory when it changes.
package policyfile
