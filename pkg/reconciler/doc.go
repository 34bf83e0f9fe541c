/*
Package reconciler runs one auto-heal invocation from trigger to result.

An invocation moves through four stages in strict order, each needing the
previous stage's output:

	payload ──decode──▶ target group ──fetch──▶ unhealthy targets
	        ──correlate──▶ running instances ──remediate──▶ outcomes

Nothing is kept between invocations. Every call re-reads load-balancer health
and the orchestrator inventory, so a failed or timed-out invocation can be
re-run from scratch, and two overlapping invocations at worst stop the same
task twice, which ECS accepts.

# Results

	{"status":"no-unhealthy-targets"}     fetch returned nothing remediable
	{"status":"no-running-instances"}     the cluster has no running tasks
	{"killedInstances":[...], ...}        everything else, possibly empty

Stage failures (malformed event, load-balancer or orchestrator errors) are
returned as errors and the invocation stops. A failed stop call is reported
as a failed outcome and never aborts the remaining stops.

# Side channels

With WithRecorder every invocation, failed or not, is saved as a
types.InvocationRecord. With WithPublisher an event is published for the
start and end of the invocation, for each unresolved target, each address
conflict and each outcome. Neither can fail an invocation.
*/
package reconciler
