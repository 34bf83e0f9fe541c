// Package remediator stops the running instances behind unhealthy targets.
//
// Instances are deduplicated by id, then stopped through a bounded work pool
// with a fixed audit reason. Each instance gets exactly one outcome: stopped,
// failed with the orchestrator's error text, or skipped in dry-run mode.
package remediator
