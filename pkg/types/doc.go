/*
Package types defines the data model shared by every stage of the auto-healer.

The auto-healer correlates two independently maintained views of the fleet:
the load balancer's target health and the orchestrator's task inventory.
The only join key between them is a network address (plus port for bridge and
host networking), so the types here are deliberately thin projections of the
AWS shapes that carry that key and nothing else.

# Data Flow

	Alarm ──► TargetHealthRecord ──► RunningInstance ──► RemediationOutcome
	(event)   (load balancer)        (orchestrator)      (remediator)
	                                        │
	                                        ▼
	                                     Result

# Results

An invocation always produces a Result. Two early exits are reported by
status only:

	{"status": "no-unhealthy-targets"}
	{"status": "no-running-instances"}

Every other invocation reports the instances stopped plus the per-instance
outcomes, the targets that could not be resolved and any address conflicts:

	{
	  "killedInstances": ["arn:aws:ecs:...:task/prod/abc"],
	  "outcomes": [{"instanceId": "...", "result": "stopped"}],
	  "unresolvedTargets": [],
	  "inconsistencies": []
	}

# Errors

MalformedEventError and DependencyError are fatal for the invocation and match
ErrMalformedEvent and ErrDependency with errors.Is. DataInconsistency is never
returned as an error; it is recorded on the Result.
*/
package types
