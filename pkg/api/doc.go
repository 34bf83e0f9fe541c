/*
Package api is the HTTP trigger surface used by `autoheal serve`.

	POST /v1/alarms   run one invocation for the request body
	GET  /health      component health (503 when a critical component fails)
	GET  /ready       readiness of critical components
	GET  /live        liveness
	GET  /metrics     Prometheus

The alarm webhook accepts the same payloads as the Lambda handler: an
EventBridge alarm state change, a Lambda-style SNS event, or an SNS HTTP
notification. SNS subscription confirmations are acknowledged and logged
with their subscribe URL; the server never fetches it.

Invocation errors map to status codes: malformed events to 400, load-balancer
and orchestrator failures to 502, timeouts to 504. A successful invocation
returns 200 with the result JSON.
*/
package api
