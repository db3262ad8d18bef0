// Package health provides liveness and readiness probes for the retention
// service.
//
// Liveness (/health) only proves the process answers. Readiness (/ready)
// runs every registered check concurrently, each bounded by the checker's
// timeout, and answers 503 when any check fails:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("policy_store", health.PingCheck(policies))
//	checker.RegisterCheck("scheduler", health.SchedulerCheck(sched.IsRunning))
//
//	router.Get("/health", checker.LivenessHandler())
//	router.Get("/ready", checker.ReadinessHandler())
package health
