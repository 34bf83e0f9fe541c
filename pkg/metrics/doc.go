/*
Package metrics provides Prometheus metrics and process health for the auto-healer.

Metrics are package-level collectors registered at init, so every stage can
record without plumbing a registry through constructors. Under Lambda they are
collected but never scraped; under `autoheal serve` they are exposed on
/metrics next to the health endpoints.

# Metrics

	autoheal_invocations_total{status}          counter    final status of each invocation
	autoheal_invocation_duration_seconds        histogram  end-to-end latency
	autoheal_stage_duration_seconds{stage}      histogram  fetch, list, describe, remediate
	autoheal_unhealthy_targets                  histogram  remediable targets per invocation
	autoheal_unresolved_targets_total           counter    targets no running instance owned
	autoheal_address_conflicts_total            counter    addresses with more than one owner
	autoheal_stop_calls_total{result}           counter    stopped, failed, skipped
	autoheal_dependency_errors_total{source}    counter    load-balancer, orchestrator

Status label values are "no-unhealthy-targets", "no-running-instances",
"remediated" and "error".

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.InvocationDuration)

# Health

Components register their state with RegisterComponent/UpdateComponent.
Critical components (config and aws by default) gate readiness and make
/health return 503 when failing. The load-balancer and orchestrator
components only degrade health: the next alarm re-runs from scratch.
*/
package metrics
