// Chryso is the data-retention service of Chryso Forms.
//
// It stores per-organization retention policies, evaluates them on a cron
// tick and deletes expired form submissions, audit logs, reports and other
// governed records, archiving them first when a policy asks for it.
//
// Usage:
//
//	# Start the scheduler and admin API
//	chryso run --config /etc/chryso/config.yaml
//
//	# Apply a policy file to the policy store
//	chryso policy apply policies.yaml
//
//	# Show what a policy would delete right now
//	chryso retention preview <policy-id>
//
//	# Run every policy due at this hour once and exit
//	chryso retention tick
package main

import "os"

func main() {
	os.Exit(Execute())
}
